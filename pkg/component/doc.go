// Package component binds parsed Alpml templates to custom elements.
//
// Define parses a template source and registers a custom element whose
// instances render the template into the document:
//
//	c, err := component.Define(doc, "alp-navbar", source)
//
// # Lifecycle
//
// Each element instance owns a template.State keyed by a unique $key. When
// the element connects, the Renderer builds a display node from the template
// and state and places it next to the element, then the instance dispatches
// "initialized" on the element. Changes to observed attributes (the template's
// props) update the state; once the instance has rendered, each change
// replaces the display node and dispatches "attributesUpdated". Attribute
// values seen before the first render are only recorded, so the initial
// values are rendered once, on connect.
//
// # Children
//
// An element whose parent is another component is a child: its display node
// goes after the last ${children} slot of the parent's display node. If the
// parent has not rendered yet, insertion waits for the parent's "initialized"
// signal. A slotted child follows its parent through re-renders by inserting
// its display node again whenever the parent signals. A missing slot is
// logged and skipped; it never fails the page.
package component
