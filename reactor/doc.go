// Package reactor is a runtime code-generation DSL: executing its
// builder calls on the host constructs an SSA program that the
// backend package materializes into an executable routine.
//
// The pipeline specializer uses reactor to synthesize vertex, setup,
// and pixel routines with the current GL state baked in, eliminating
// per-pixel branching over state.
//
// # Model
//
// A Function is built one basic block at a time. Values are SSA nodes
// carrying a type from the closed reactor type set (scalar and
// small-vector integers and floats, pointers, bool). Variables (Var)
// are stack slots with lazy materialization: a Var that is only read
// and written in straight-line code stays a pure SSA value; taking its
// address, or entering a structured control-flow construct (or a
// Return) while it holds a value, materializes it into an alloca that
// the backend's SROA pass can promote back.
//
// Control flow is expressed with structured helpers (If, While, For,
// Do) that create the blocks and branches and force materialization
// of live variables at block boundaries.
package reactor
