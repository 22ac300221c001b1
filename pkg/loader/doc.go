// Package loader fetches the documents referenced by component declarations.
//
// A declaration's data attribute names a document whose first <pre> element
// holds the component's template source. References are resolved by scheme:
//
//	navbar.html              FS, relative to the pages directory
//	https://cdn.example/x    HTTP
//	s3://bucket/navbar.html  S3
//
// Mux dispatches a reference to the Loader registered for its scheme and
// falls back to a default Loader for relative references.
package loader
