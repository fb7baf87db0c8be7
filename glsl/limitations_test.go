package glsl

import (
	"strings"
	"testing"
)

func compileFrag(t *testing.T, body string) *CompileResult {
	t.Helper()
	return CompileFragment("precision mediump float;\n" + body)
}

func TestLoopRestrictions(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "while rejected",
			source: `void main() { float x = 0.0; while (x < 4.0) { x += 1.0; } gl_FragColor = vec4(x); }`,
			want:   "loop is not allowed",
		},
		{
			name:   "do-while rejected",
			source: `void main() { float x = 0.0; do { x += 1.0; } while (x < 4.0); gl_FragColor = vec4(x); }`,
			want:   "loop is not allowed",
		},
		{
			name:   "non-constant init",
			source: `uniform float u; void main() { float s = 0.0; for (float i = u; i < 4.0; ++i) s += 1.0; gl_FragColor = vec4(s); }`,
			want:   "non-constant expression",
		},
		{
			name:   "non-constant limit",
			source: `uniform float u; void main() { float s = 0.0; for (float i = 0.0; i < u; ++i) s += 1.0; gl_FragColor = vec4(s); }`,
			want:   "non-constant expression",
		},
		{
			name:   "index assigned in body",
			source: `void main() { float s = 0.0; for (float i = 0.0; i < 4.0; ++i) { i = 2.0; s += 1.0; } gl_FragColor = vec4(s); }`,
			want:   "cannot be statically assigned",
		},
		{
			name:   "invalid step",
			source: `void main() { float s = 0.0; for (float i = 0.0; i < 4.0; i *= 2.0) s += 1.0; gl_FragColor = vec4(s); }`,
			want:   "invalid operator",
		},
		{
			name: "index into out parameter",
			source: `
void set(out float x) { x = 1.0; }
void main() {
    float s = 0.0;
    for (float i = 0.0; i < 4.0; ++i) set(i);
    gl_FragColor = vec4(s);
}`,
			want: "out or inout parameter",
		},
		{
			name:   "dynamic index",
			source: `uniform float u; void main() { float xs[4]; xs[int(u)] = 1.0; gl_FragColor = vec4(xs[0]); }`,
			want:   "must be constant",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := compileFrag(t, tt.source)
			if result.OK {
				t.Fatalf("expected failure:\n%s", result.InfoLog)
			}
			if !strings.Contains(result.InfoLog, tt.want) {
				t.Errorf("log missing %q:\n%s", tt.want, result.InfoLog)
			}
		})
	}
}

func TestLoopIndexReadIsLegal(t *testing.T) {
	result := compileFrag(t, `
void main() {
    float s = 0.0;
    for (float i = 0.0; i < 4.0; ++i) s += i;
    gl_FragColor = vec4(s);
}`)
	if !result.OK {
		t.Fatalf("reading the loop index must be legal:\n%s", result.InfoLog)
	}
}

func TestLoopIndexAsConstantIndex(t *testing.T) {
	// A loop index is a valid constant-index-expression inside the
	// loop.
	result := compileFrag(t, `
void main() {
    float xs[4];
    for (int i = 0; i < 4; ++i) xs[i] = float(i);
    gl_FragColor = vec4(xs[0], xs[1], xs[2], xs[3]);
}`)
	if !result.OK {
		t.Fatalf("loop-index array addressing must be legal:\n%s", result.InfoLog)
	}
}

func TestVertexUniformDynamicIndexAllowed(t *testing.T) {
	result := CompileVertex(`
uniform vec4 u_rows[4];
uniform int u_i;
attribute vec4 a_position;
void main() {
    gl_Position = a_position + u_rows[u_i];
}`)
	if !result.OK {
		t.Fatalf("dynamic uniform indexing in vertex shaders must be legal:\n%s", result.InfoLog)
	}
}

func TestESSL3AllowsGeneralLoops(t *testing.T) {
	result := Compile([]string{`#version 300 es
precision mediump float;
out vec4 fragColor;
void main() {
    float x = 0.0;
    while (x < 4.0) { x += 1.0; }
    fragColor = vec4(x);
}
`}, FragmentShaderKind)
	if !result.OK {
		t.Fatalf("while loops must be legal in ESSL3:\n%s", result.InfoLog)
	}
}
