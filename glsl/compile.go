package glsl

import (
	"github.com/gogpu/swgl/ir"
	pp "github.com/gogpu/swgl/preprocessor"
)

// CompileResult carries the outcome of one shader compile.
type CompileResult struct {
	Program *ir.Program
	Unit    *TranslationUnit

	// InfoLog aggregates every diagnostic in info-log format.
	InfoLog string

	// OK mirrors the GL compile status.
	OK bool

	// Extensions holds the behaviors requested by #extension.
	Extensions map[string]pp.ExtensionBehavior

	// Pragmas records #pragma directives for the linker.
	Pragmas []pp.Pragma
}

// Compile runs the full front end over the concatenated source
// strings: preprocess, parse, validate, lower. All diagnostics are
// accumulated; Program is nil when compilation failed.
func Compile(sources []string, shaderType ShaderKind) *CompileResult {
	var errs SourceErrors

	sink := &pp.CountingSink{}
	handler := pp.NewDefaultHandler()
	tokens := pp.Preprocess(sources, sink, handler, pp.Options{})

	for _, d := range sink.Diagnostics {
		if d.ID.Severity() == pp.Warning {
			errs.AddWarning(d.Location, d.Text, "%s", d.ID.Message())
		} else {
			errs.Add(d.Location, d.Text, "%s", d.ID.Message())
		}
	}
	for _, e := range handler.Errors {
		errs.Add(e.Location, "", "%s", e.Message)
	}

	version := handler.Version

	parser := NewParser(tokens, version, shaderType, &errs)
	unit := parser.Parse()

	ValidateLimitations(unit, shaderType, &errs)

	result := &CompileResult{
		Unit:       unit,
		Extensions: handler.Extensions,
		Pragmas:    handler.Pragmas,
	}
	if errs.HasErrors() {
		result.InfoLog = errs.InfoLog()
		return result
	}

	program := Lower(unit, shaderType, &errs)
	if errs.HasErrors() {
		result.InfoLog = errs.InfoLog()
		return result
	}

	if verrs := ir.Validate(program); verrs != nil {
		for _, ve := range verrs {
			errs.Add(pp.Location{}, "", "internal: %s", ve.Error())
		}
		result.InfoLog = errs.InfoLog()
		return result
	}

	result.Program = program
	result.InfoLog = errs.InfoLog()
	result.OK = true
	return result
}

// CompileVertex compiles a vertex shader from one source string.
func CompileVertex(source string) *CompileResult {
	return Compile([]string{source}, VertexShaderKind)
}

// CompileFragment compiles a fragment shader from one source string.
func CompileFragment(source string) *CompileResult {
	return Compile([]string{source}, FragmentShaderKind)
}
