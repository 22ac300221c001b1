// Package page bootstraps Alpml components declared in a document.
//
// A page declares components with object elements:
//
//	<object type="text/x-alpml" is="alp-navbar" data="navbar.html"></object>
//
// Bootstrap.Run mounts the reactivity script, fetches every referenced
// document concurrently and, once all declarations have loaded and the
// script is ready, dispatches "componentsLoaded" on the document. Handling
// that signal defines each component from the text of the first <pre> in its
// document and removes the declaration.
//
// The load-order state (the number of declarations still loading and whether
// the script is ready) lives in the Bootstrap value, not in the document.
// Fetches run on their own goroutines but their results are applied on the
// goroutine that called Run, so the document is never touched concurrently.
package page
