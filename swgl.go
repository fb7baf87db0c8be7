// Package swgl is a software implementation of the OpenGL ES 2.0/3.0
// rendering core: a GLSL ES compiler, a runtime code generator, and a
// CPU rasterization pipeline.
//
// swgl turns shader source and pipeline state into pixel-accurate
// rendered images without touching a GPU:
//   - glsl — GLSL ES 1.00/3.00 front end producing the shader IR
//   - ir — the linear register IR linking the compiler to the pipeline
//   - reactor — the SSA-building DSL routines are written in
//   - backend — routine materialization, optimization, execution
//   - pipeline — vertex/setup/pixel routine specialization per state
//   - renderer — primitive assembly, clipping, parallel rasterization
//
// Example usage (compile a shader pair and draw):
//
//	vs := swgl.CompileVertex(vertexSource)
//	fs := swgl.CompileFragment(fragmentSource)
//	spec, err := swgl.Link(vs, fs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r := renderer.New(renderer.DefaultConfig())
//	fb := renderer.NewFramebuffer(640, 480)
//	err = r.Draw(&renderer.DrawCall{Specializer: spec, ...})
//
// The individual packages expose every intermediate stage for tools
// that need them (the swglc compiler CLI, the swgldis disassembler,
// the snapshot tests).
package swgl

import (
	"errors"

	"github.com/gogpu/swgl/backend"
	"github.com/gogpu/swgl/glsl"
	"github.com/gogpu/swgl/pipeline"
)

// CompileVertex compiles GLSL ES vertex shader source.
func CompileVertex(source string) *glsl.CompileResult {
	return glsl.Compile([]string{source}, glsl.VertexShaderKind)
}

// CompileFragment compiles GLSL ES fragment shader source.
func CompileFragment(source string) *glsl.CompileResult {
	return glsl.Compile([]string{source}, glsl.FragmentShaderKind)
}

// Link pairs two successful compiles into a specializer ready for
// drawing. Compilation failures surface here with their info logs.
func Link(vertex, fragment *glsl.CompileResult) (*pipeline.Specializer, error) {
	if vertex == nil || !vertex.OK {
		return nil, errors.New("swgl: vertex shader did not compile: " + infoLog(vertex))
	}
	if fragment == nil || !fragment.OK {
		return nil, errors.New("swgl: fragment shader did not compile: " + infoLog(fragment))
	}
	return pipeline.NewSpecializer(vertex.Program, fragment.Program, backend.DefaultConfig())
}

func infoLog(r *glsl.CompileResult) string {
	if r == nil {
		return "no result"
	}
	return r.InfoLog
}
