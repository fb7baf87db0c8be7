package swgl

import (
	"strings"
	"testing"
)

const testVS = `
attribute vec4 a_position;
varying vec4 v_color;
void main() {
    v_color = a_position * 0.5 + 0.5;
    gl_Position = a_position;
}
`

const testFS = `
precision mediump float;
varying vec4 v_color;
void main() {
    gl_FragColor = v_color;
}
`

func TestCompileAndLink(t *testing.T) {
	vs := CompileVertex(testVS)
	if !vs.OK {
		t.Fatalf("vertex compile failed:\n%s", vs.InfoLog)
	}
	fs := CompileFragment(testFS)
	if !fs.OK {
		t.Fatalf("fragment compile failed:\n%s", fs.InfoLog)
	}
	spec, err := Link(vs, fs)
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	defer spec.Close()
	if spec.Linkage().SlotCount != 1 {
		t.Errorf("varying slots = %d, want 1", spec.Linkage().SlotCount)
	}
}

func TestLinkRejectsBrokenShader(t *testing.T) {
	vs := CompileVertex("this is not a shader")
	fs := CompileFragment(testFS)
	if _, err := Link(vs, fs); err == nil {
		t.Fatal("linking a failed compile must error")
	} else if !strings.Contains(err.Error(), "vertex shader") {
		t.Errorf("error = %v", err)
	}
}

func TestLinkRejectsUnmatchedVarying(t *testing.T) {
	vs := CompileVertex(`
attribute vec4 a_position;
void main() { gl_Position = a_position; }
`)
	fs := CompileFragment(testFS) // reads v_color, which vs never writes
	if _, err := Link(vs, fs); err == nil {
		t.Fatal("unmatched varying must fail the link")
	}
}
