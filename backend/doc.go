// Package backend materializes reactor functions into executable
// routines.
//
// The pipeline is: verify (optional) → optimize → emit. The
// optimizer runs a configurable pass list over the SSA; the emitter
// lowers the result to a flat register program whose constant pool
// and code stream live in pages from the executable-memory
// allocator, write-protected after materialization. The routine's
// entry points drive the backend's register-program engine, the
// portable lowering of the reactor operation set. Host CPU features
// are detected at initialization and reported by HostFeatures; no
// lowering is selected by them, so every intrinsic takes the portable
// path.
//
// Routines are reference counted: the pages are returned to the
// allocator when the last reference drops.
package backend
