// Package pipeline specializes the rendering pipeline: given the
// current GL state vector and a linked program's shader IR, it builds
// the vertex, setup, and pixel routines as reactor programs and
// materializes them through the backend.
//
// Specialization bakes every state decision (blend equation, depth
// and stencil functions, varying layout, sampler addressing) into the
// generated code, so the per-pixel inner loops carry no state
// branches. Routines are cached by a key derived from the serialized
// state vector.
//
// The shader IR is translated opcode by opcode into reactor calls by
// a translator shared between the vertex and pixel builders; the two
// differ only in how input and output registers bind to memory.
package pipeline
