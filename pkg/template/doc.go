// Package template parses Alpml component templates and interpolates them
// against component state.
//
// A template source is a single root element, optionally wrapped in a
// <template> element whose props attribute declares the component's observed
// attributes:
//
//	<template props="name, count">
//	  <div class="counter">
//	    <span>${count}</span>
//	    ${children}
//	  </div>
//	</template>
//
// # Parsing
//
// Parse scans the source with the html tokenizer, tracking the nesting depth
// of elements spelled like the root so nested same-named tags and attribute
// values containing '>' do not end the root early. The body between the root
// tags is kept byte-for-byte, placeholders included. A <template> root is
// unwrapped once; a second <template> inside it is an ordinary root element.
//
// # Interpolation
//
// Interpolate replaces every ${identifier} with the state value for that
// identifier. The reserved ${children} becomes a hidden slot element tagged
// with the state's key, where child components are inserted later. Values are
// inserted as raw markup without escaping; attribute values are trusted.
package template
