// Package glsl implements the GLSL ES 1.00 / 3.00 front end: a
// recursive-descent parser producing a typed AST, semantic analysis,
// the shading-language limitation checks, and lowering to the linear
// shader IR.
//
// The pipeline inside the package is:
//
//	preprocessed tokens → Parser → typed AST → ValidateLimitations → Lower → ir.Program
//
// Compile ties the stages together, including the preprocessor, and
// accumulates all diagnostics into one info log, so a broken shader
// reports every error it contains rather than the first.
package glsl
