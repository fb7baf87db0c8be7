package glsl

import (
	"strings"
	"testing"

	"github.com/gogpu/swgl/ir"
)

const minimalFragment = `
precision mediump float;
void main()
{
    gl_FragColor = vec4(0.0, 0.0, 0.0, 1.0);
}
`

const minimalVertex = `
attribute vec4 a_position;
void main()
{
    gl_Position = a_position;
}
`

func TestCompileMinimalFragment(t *testing.T) {
	result := CompileFragment(minimalFragment)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	p := result.Program
	if p.Type != ir.FragmentShader {
		t.Errorf("shader type = %v", p.Type)
	}
	// The output write must land in the output bank.
	found := false
	for _, inst := range p.Instructions {
		if inst.Op == ir.OpMov && inst.Dst.Bank == ir.BankOutput && inst.Dst.Index == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("no write to output register 0:\n%s", p.Listing())
	}
}

func TestCompileMinimalVertex(t *testing.T) {
	result := CompileVertex(minimalVertex)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	p := result.Program
	if len(p.Inputs) == 0 || p.Inputs[len(p.Inputs)-1].Name != "a_position" {
		t.Errorf("attribute not declared: %+v", p.Inputs)
	}
	if p.Outputs[0].Name != "gl_Position" || p.Outputs[0].Register != RegPosition {
		t.Errorf("gl_Position not at register %d: %+v", RegPosition, p.Outputs)
	}
}

func TestCompileVaryingLinkage(t *testing.T) {
	result := CompileVertex(`
attribute vec4 a_position;
attribute vec2 a_uv;
varying vec2 v_uv;
void main()
{
    v_uv = a_uv;
    gl_Position = a_position;
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	var uv *ir.Varying
	for i := range result.Program.Outputs {
		if result.Program.Outputs[i].Name == "v_uv" {
			uv = &result.Program.Outputs[i]
		}
	}
	if uv == nil {
		t.Fatal("v_uv missing from outputs")
	}
	if uv.Register < RegFirstVarying {
		t.Errorf("v_uv register %d collides with builtins", uv.Register)
	}
	if uv.Components != 2 {
		t.Errorf("v_uv components = %d, want 2", uv.Components)
	}
}

func TestCompileUniformsAndUnusedMarking(t *testing.T) {
	result := CompileFragment(`
precision mediump float;
uniform vec4 u_color;
uniform vec4 u_dead;
void main()
{
    gl_FragColor = u_color;
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	byName := map[string]ir.Uniform{}
	for _, u := range result.Program.Uniforms {
		byName[u.Name] = u
	}
	if byName["u_color"].Unused {
		t.Error("u_color should be marked used")
	}
	if !byName["u_dead"].Unused {
		t.Error("u_dead should be marked unused")
	}
}

func TestCompileSamplerLoop_Unroll(t *testing.T) {
	result := CompileFragment(`
precision mediump float;
uniform sampler2D s;
varying vec2 v_uv;
void main()
{
    vec4 c = vec4(0.0);
    for(int i = 0; i < 4; ++i)
        c += texture2D(s, vec2(i * 0.25, 0.0));
    gl_FragColor = c;
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	var loop *ir.Instruction
	for i := range result.Program.Instructions {
		if result.Program.Instructions[i].Op == ir.OpLoop {
			loop = &result.Program.Instructions[i]
		}
	}
	if loop == nil {
		t.Fatalf("no loop instruction:\n%s", result.Program.Listing())
	}
	if !loop.Unroll {
		t.Errorf("integer-indexed sampler loop not flagged unroll")
	}
}

func TestCompileMatrixTransform(t *testing.T) {
	result := CompileVertex(`
attribute vec4 a_position;
uniform mat4 u_mvp;
void main()
{
    gl_Position = u_mvp * a_position;
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	// The matrix product expands to one mul plus three mads.
	muls, mads := 0, 0
	for _, inst := range result.Program.Instructions {
		switch inst.Op {
		case ir.OpMul:
			muls++
		case ir.OpMad:
			mads++
		}
	}
	if muls < 1 || mads < 3 {
		t.Errorf("mat4*vec4 expansion: %d muls, %d mads\n%s", muls, mads, result.Program.Listing())
	}
	// The uniform spans four registers.
	if result.Program.Uniforms[0].Size != 4 {
		t.Errorf("mat4 uniform size = %d", result.Program.Uniforms[0].Size)
	}
}

func TestCompileESSL3(t *testing.T) {
	result := Compile([]string{`#version 300 es
precision highp float;
layout(location = 2) in vec4 a_position;
in vec2 a_uv;
out vec2 v_uv;
void main()
{
    v_uv = a_uv;
    gl_Position = a_position;
}
`}, VertexShaderKind)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	var pos *ir.Varying
	for i := range result.Program.Inputs {
		if result.Program.Inputs[i].Name == "a_position" {
			pos = &result.Program.Inputs[i]
		}
	}
	if pos == nil || pos.Register != 2 {
		t.Errorf("layout(location=2) not honored: %+v", result.Program.Inputs)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		kind   ShaderKind
		source string
		want   string
	}{
		{
			name: "missing main",
			kind: FragmentShaderKind,
			source: `precision mediump float;
float helper() { return 1.0; }`,
			want: "missing entry point",
		},
		{
			name:   "undeclared identifier",
			kind:   FragmentShaderKind,
			source: `precision mediump float; void main() { gl_FragColor = nothing; }`,
			want:   "undeclared identifier",
		},
		{
			name:   "sampler arithmetic",
			kind:   FragmentShaderKind,
			source: `precision mediump float; uniform sampler2D s; void main() { gl_FragColor = vec4(s + s); }`,
			want:   "sampler",
		},
		{
			name:   "sampler assignment",
			kind:   FragmentShaderKind,
			source: `precision mediump float; uniform sampler2D s; uniform sampler2D t; void main() { s = t; gl_FragColor = vec4(1.0); }`,
			want:   "sampler",
		},
		{
			name:   "assign to uniform",
			kind:   FragmentShaderKind,
			source: `precision mediump float; uniform vec4 u; void main() { u = vec4(1.0); gl_FragColor = u; }`,
			want:   "uniform",
		},
		{
			name:   "type mismatch",
			kind:   FragmentShaderKind,
			source: `precision mediump float; void main() { gl_FragColor = vec3(1.0); }`,
			want:   "cannot assign",
		},
		{
			name:   "void main returns value",
			kind:   FragmentShaderKind,
			source: `precision mediump float; void main() { gl_FragColor = vec4(1.0); return 1.0; }`,
			want:   "void function cannot return a value",
		},
		{
			name:   "discard in vertex shader",
			kind:   VertexShaderKind,
			source: `void main() { discard; gl_Position = vec4(0.0); }`,
			want:   "discard",
		},
		{
			name:   "no fragment float default precision",
			kind:   FragmentShaderKind,
			source: `void main() { float x = 1.0; gl_FragColor = vec4(x); }`,
			want:   "precision",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Compile([]string{tt.source}, tt.kind)
			if result.OK {
				t.Fatalf("expected failure, log:\n%s", result.InfoLog)
			}
			if !strings.Contains(result.InfoLog, tt.want) {
				t.Errorf("log missing %q:\n%s", tt.want, result.InfoLog)
			}
		})
	}
}

func TestCompileUserFunction(t *testing.T) {
	result := CompileFragment(`
precision mediump float;
float brighten(float c, out float doubled)
{
    doubled = c * 2.0;
    return c + 0.25;
}
void main()
{
    float d;
    float b = brighten(0.5, d);
    gl_FragColor = vec4(b, d, 0.0, 1.0);
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	calls, labels, rets := 0, 0, 0
	for _, inst := range result.Program.Instructions {
		switch inst.Op {
		case ir.OpCall:
			calls++
		case ir.OpLabel:
			labels++
		case ir.OpRet:
			rets++
		}
	}
	if calls != 1 || labels != 1 || rets < 2 {
		t.Errorf("call/label/ret = %d/%d/%d\n%s", calls, labels, rets, result.Program.Listing())
	}
}

func TestCompileConditional(t *testing.T) {
	result := CompileFragment(`
precision mediump float;
uniform float u_t;
void main()
{
    if (u_t > 0.5) {
        gl_FragColor = vec4(1.0);
    } else {
        gl_FragColor = vec4(0.0);
    }
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	var ops []ir.Opcode
	for _, inst := range result.Program.Instructions {
		switch inst.Op {
		case ir.OpIf, ir.OpElse, ir.OpEndIf:
			ops = append(ops, inst.Op)
		}
	}
	if len(ops) != 3 || ops[0] != ir.OpIf || ops[1] != ir.OpElse || ops[2] != ir.OpEndIf {
		t.Errorf("structured control flow = %v", ops)
	}
}

func TestCompileDiscard(t *testing.T) {
	result := CompileFragment(`
precision mediump float;
varying float v_alpha;
void main()
{
    if (v_alpha < 0.5)
        discard;
    gl_FragColor = vec4(1.0);
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	if !result.Program.ContainsDiscard() {
		t.Error("discard opcode missing")
	}
}

func TestCompileSwizzleStore(t *testing.T) {
	result := CompileFragment(`
precision mediump float;
void main()
{
    vec4 c = vec4(0.0);
    c.zx = vec2(1.0, 2.0);
    gl_FragColor = c;
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	// One mov must write exactly the x and z lanes.
	found := false
	for _, inst := range result.Program.Instructions {
		if inst.Op == ir.OpMov && inst.Dst.Mask == 0x5 {
			found = true
		}
	}
	if !found {
		t.Errorf("no masked xz store:\n%s", result.Program.Listing())
	}
}

func TestConstantFolding(t *testing.T) {
	result := CompileFragment(`
precision mediump float;
const float HALF = 0.5;
const int COUNT = 2 + 2;
void main()
{
    float xs[4];
    xs[COUNT - 1] = HALF;
    gl_FragColor = vec4(xs[3]);
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
}

func TestMadFusion(t *testing.T) {
	result := CompileFragment(`
precision mediump float;
uniform float a;
uniform float b;
uniform float c;
void main()
{
    gl_FragColor = vec4(a * b + c);
}
`)
	if !result.OK {
		t.Fatalf("compile failed:\n%s", result.InfoLog)
	}
	for _, inst := range result.Program.Instructions {
		if inst.Op == ir.OpMad {
			return
		}
	}
	t.Errorf("a*b+c did not fuse to mad:\n%s", result.Program.Listing())
}
