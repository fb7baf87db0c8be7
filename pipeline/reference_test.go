package pipeline

import (
	"math"
	"math/rand"
	"testing"
	"unsafe"
)

// TestShaderMatchesReferenceEvaluator runs a fragment program over
// many random uniform vectors and compares every pixel against a
// host-side reference evaluation of the same expression.
func TestShaderMatchesReferenceEvaluator(t *testing.T) {
	spec := compilePrograms(t, passthroughVS, `
precision mediump float;
uniform vec4 u_a;
uniform vec4 u_b;
uniform vec4 u_c;
void main() {
    vec4 v = u_a * u_b + u_c;
    gl_FragColor = clamp(v * 0.5 + abs(u_a) * 0.25, 0.0, 1.0);
}
`)
	defer spec.Close()
	state := DefaultState()
	routines, err := spec.Specialize(&state)
	if err != nil {
		t.Fatalf("specialize failed: %v", err)
	}

	tri := screenTriangle([3][2]float32{{0, 0}, {2, 0}, {0, 2}})
	prim, ok := runSetup(t, routines, tri)
	if !ok {
		t.Fatal("setup rejected the triangle")
	}

	reference := func(a, b, c [4]float32) [4]float32 {
		var out [4]float32
		for i := 0; i < 4; i++ {
			v := a[i]*b[i] + c[i]
			r := v*0.5 + float32(math.Abs(float64(a[i])))*0.25
			if r < 0 {
				r = 0
			}
			if r > 1 {
				r = 1
			}
			out[i] = r
		}
		return out
	}

	rng := rand.New(rand.NewSource(42))
	randVec := func() [4]float32 {
		var v [4]float32
		for i := range v {
			v[i] = rng.Float32()*4 - 2
		}
		return v
	}

	fb, color, _ := newFramebuffer(1, 1)
	draw := &DrawData{}

	const trials = 200
	for trial := 0; trial < trials; trial++ {
		a, b, c := randVec(), randVec(), randVec()
		draw.Uniforms[0] = a
		draw.Uniforms[1] = b
		draw.Uniforms[2] = c

		for i := range color {
			color[i] = 0
		}
		routines.Pixel.Call(
			uint64(uintptr(unsafe.Pointer(prim))),
			0, 1,
			uint64(uintptr(unsafe.Pointer(fb))),
			uint64(uintptr(unsafe.Pointer(draw))),
		)

		want := reference(a, b, c)
		for ch := 0; ch < 4; ch++ {
			wantByte := int(math.Floor(float64(want[ch])*255 + 0.5))
			got := int(color[ch])
			diff := got - wantByte
			if diff < -1 || diff > 1 {
				t.Fatalf("trial %d channel %d: got %d, reference %d (a=%v b=%v c=%v)",
					trial, ch, got, wantByte, a, b, c)
			}
		}
	}
}
