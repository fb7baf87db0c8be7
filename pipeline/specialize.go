package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/swgl/backend"
	"github.com/gogpu/swgl/ir"
	"github.com/gogpu/swgl/reactor"
)

var errNotFragment = errors.New("pipeline: program is not a fragment shader")

// Routines bundles the three specialized routines of one draw
// configuration.
type Routines struct {
	Vertex *backend.Routine
	Setup  *backend.Routine
	Pixel  *backend.Routine
}

// Release drops one reference from each routine.
func (r *Routines) Release() {
	if r.Vertex != nil {
		r.Vertex.Release()
	}
	if r.Setup != nil {
		r.Setup.Release()
	}
	if r.Pixel != nil {
		r.Pixel.Release()
	}
}

// Specializer builds and caches routines keyed by the state vector.
// One specializer serves one linked program pair.
type Specializer struct {
	vertexIR *ir.Program
	pixelIR  *ir.Program
	linkage  *Linkage
	config   backend.Config

	mu    sync.Mutex
	cache map[[32]byte]*Routines
}

// NewSpecializer links the two programs and prepares the cache.
func NewSpecializer(vertex, fragment *ir.Program, cfg backend.Config) (*Specializer, error) {
	if err := validateVertexProgram(vertex); err != nil {
		return nil, err
	}
	if err := validatePixelProgram(fragment); err != nil {
		return nil, err
	}
	link, err := LinkVaryings(vertex, fragment)
	if err != nil {
		return nil, err
	}
	return &Specializer{
		vertexIR: vertex,
		pixelIR:  fragment,
		linkage:  link,
		config:   cfg,
		cache:    make(map[[32]byte]*Routines),
	}, nil
}

// Linkage exposes the varying layout agreed at link time.
func (s *Specializer) Linkage() *Linkage {
	return s.linkage
}

// buildRoutine materializes one reactor function, retrying once with
// the optimizer disabled when the first materialization fails.
func (s *Specializer) buildRoutine(f *reactor.Function) (*backend.Routine, error) {
	routine, err := backend.Build(f, s.config)
	if err == nil {
		return routine, nil
	}
	retry := s.config
	retry.NoOptimize = true
	routine, retryErr := backend.Build(f, retry)
	if retryErr != nil {
		return nil, fmt.Errorf("pipeline: routine %s failed twice: %w", f.Name, err)
	}
	return routine, nil
}

// Specialize returns the routines for a state vector, building them
// on first use.
func (s *Specializer) Specialize(state *State) (*Routines, error) {
	key := state.Key()

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	vertexFn, err := BuildVertexRoutine(state, s.vertexIR, s.linkage)
	if err != nil {
		return nil, err
	}
	setupFn, err := BuildSetupRoutine(state, s.linkage)
	if err != nil {
		return nil, err
	}
	pixelFn, err := BuildPixelRoutine(state, s.pixelIR, s.linkage)
	if err != nil {
		return nil, err
	}

	routines := &Routines{}
	if routines.Vertex, err = s.buildRoutine(vertexFn); err != nil {
		return nil, err
	}
	if routines.Setup, err = s.buildRoutine(setupFn); err != nil {
		routines.Vertex.Release()
		return nil, err
	}
	if routines.Pixel, err = s.buildRoutine(pixelFn); err != nil {
		routines.Vertex.Release()
		routines.Setup.Release()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[key]; ok {
		// Another caller won the race; keep its routines.
		routines.Release()
		return cached, nil
	}
	s.cache[key] = routines
	return routines, nil
}

// Close releases every cached routine.
func (s *Specializer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, routines := range s.cache {
		routines.Release()
		delete(s.cache, key)
	}
}
