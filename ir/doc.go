// Package ir defines the shader intermediate representation for swgl.
//
// The IR is a linear, register-based program emitted by the GLSL
// front end and consumed by the pipeline specializer. It is designed
// to be:
//   - Self-contained: No references back to the AST after emission
//   - Linear: An ordered instruction list with explicit structured
//     control-flow opcodes and label ids, no expression trees
//   - Register-addressed: Operands name registers in typed banks
//     (constant, uniform, temporary, input, output, sampler, address)
//
// # Structure
//
// A Program holds the instruction list plus the declarations the
// specializer needs: input/output linkage (locations and
// interpolation qualifiers), uniform and sampler declarations, and
// the constant pool.
//
// # Translation pipeline
//
// The typical pipeline is:
//
//	GLSL ES source → preprocessor → AST → ir.Program → reactor routine
//
// The same Program feeds the vertex and pixel specializers; it can
// also be serialized to the in-memory binary word format (see
// encode.go) for caching and for the swgldis disassembler.
package ir
