// Package dom is the in-memory host runtime Alpml components run against.
//
// A Document wraps a golang.org/x/net/html node tree and adds the pieces of a
// browser the component lifecycle depends on:
//
//   - tree mutations that connect custom elements as they enter the document
//   - a custom element registry (Define, upgrade, attribute callbacks)
//   - an event bus with one-shot listeners and bubbling
//   - CSS selector queries
//
// # Custom Elements
//
// Registry.Define registers a Definition for a hyphenated tag name and
// upgrades every connected element with that name in document order. An
// upgrade constructs the element, reports each observed attribute already
// present through OnAttributeChange, then calls OnConnect. Elements inserted
// later are upgraded when they become connected. SetAttribute and
// RemoveAttribute report changes to observed attributes of upgraded elements.
//
// # Threading
//
// A Document is single-threaded like the browser UI thread it models: every
// callback runs to completion on the goroutine that triggered it, and a
// Document must not be shared between goroutines without external locking.
package dom
