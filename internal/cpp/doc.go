// Package cpp wraps the tree-sitter C++ grammar and turns header text
// into declaration cursors (internal/decl). It is the only package that
// touches the parser; everything downstream consumes plain cursors.
//
// tree-sitter does not run the preprocessor, so a light prepass rewrites
// the handful of COM annotation macros that would otherwise derail the
// grammar: MIDL_INTERFACE("...") becomes the struct keyword with the GUID
// recorded as an annotation, calling-convention and SAL words are blanked.
// Every rewrite preserves byte length, so spans still point into the
// original file.
package cpp
