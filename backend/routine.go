package backend

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/swgl/reactor"
)

// Routine is an owned unit of materialized code: the flat program
// plus the pages holding its image. Routines are reference counted;
// the pages are released when the last reference drops.
type Routine struct {
	program *Program
	refs    int32
}

// Build materializes a reactor function into a routine.
func Build(f *reactor.Function, cfg Config) (*Routine, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	if cfg.Verify {
		if errs := Verify(f); len(errs) > 0 {
			return nil, fmt.Errorf("backend: verification of %s failed: %w", f.Name, errs[0])
		}
	}

	if !cfg.NoOptimize {
		passes := cfg.Passes
		if len(passes) == 0 {
			passes = DefaultPasses
		}
		Optimize(f, passes)
	}

	program, err := emit(f)
	if err != nil {
		return nil, err
	}
	if err := program.materializePages(); err != nil {
		return nil, err
	}

	return &Routine{program: program, refs: 1}, nil
}

// Name returns the routine's name.
func (r *Routine) Name() string {
	return r.program.Name
}

// Call invokes the routine's entry point. Pointer arguments are
// passed as addresses, float arguments as float32 bit patterns.
func (r *Routine) Call(args ...uint64) uint64 {
	return r.program.Run(args)
}

// Retain adds a reference.
func (r *Routine) Retain() {
	atomic.AddInt32(&r.refs, 1)
}

// Release drops a reference; the last release frees the pages.
func (r *Routine) Release() {
	if atomic.AddInt32(&r.refs, -1) == 0 {
		r.program.release()
	}
}
