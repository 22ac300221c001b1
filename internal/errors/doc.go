// Package errors provides structured, actionable error messages for Alpml.
//
// Every error raised by the template parser, the component lifecycle and the
// page bootstrap is an *AlpmlError carrying a stable code. The code maps to a
// short message, a longer explanation and a category that decides how the
// runtime treats it.
//
// # Error Categories
//
//   - template: malformed template sources (tag mismatch, missing root tag)
//   - component: invalid component definitions (name without a hyphen)
//   - insertion: child slot lookups that failed at runtime
//   - props: props attributes that could not be decoded
//   - declaration: component declarations whose document could not be used
//   - config: alpml.json / alpml.yaml problems
//   - cli: command line usage errors
//
// Template and component errors are fatal and surface at definition time.
// Insertion, props and declaration errors are logged and swallowed by the
// runtime so a single broken component does not take the page down.
//
// # Usage
//
//	err := errors.New("A001").
//	    WithDetail("opening tag 'div' closed by 'span'").
//	    WithSource(src, offset)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR A001: Template tags do not match
//	//
//	//   navbar.html:3:1
//	//
//	//        1 │ <template props="name">
//	//        2 │   <div>${name}
//	//   →    3 │ </span></template>
//	//          │ ^
//	//
//	//   Hint: Close the root element with the same tag that opened it
package errors
