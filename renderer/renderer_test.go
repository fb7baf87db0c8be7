package renderer

import (
	"image"
	"testing"
	"unsafe"

	"github.com/gogpu/swgl/backend"
	"github.com/gogpu/swgl/glsl"
	"github.com/gogpu/swgl/pipeline"
)

func newSpecializer(t *testing.T, vs, fs string) *pipeline.Specializer {
	t.Helper()
	vr := glsl.Compile([]string{vs}, glsl.VertexShaderKind)
	if !vr.OK {
		t.Fatalf("vertex compile failed:\n%s", vr.InfoLog)
	}
	fr := glsl.Compile([]string{fs}, glsl.FragmentShaderKind)
	if !fr.OK {
		t.Fatalf("fragment compile failed:\n%s", fr.InfoLog)
	}
	spec, err := pipeline.NewSpecializer(vr.Program, fr.Program, backend.DefaultConfig())
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	return spec
}

const passthroughVS = `
attribute vec4 a_position;
void main() { gl_Position = a_position; }
`

// floatAttr points DrawData at a float attribute stream.
func floatAttr(data []float32) uint64 {
	return uint64(uintptr(unsafe.Pointer(&data[0])))
}

func drawTriangles(t *testing.T, fs string, positions []float32, w, h int) *Framebuffer {
	t.Helper()
	spec := newSpecializer(t, passthroughVS, fs)
	defer spec.Close()

	r := New(Config{Workers: 2})
	defer r.Close()

	state := pipeline.DefaultState()
	state.Attributes[0] = pipeline.Attribute{
		Enabled: true, Type: pipeline.AttribFloat, Count: 4, Stride: 16,
	}

	fb := NewFramebuffer(w, h)
	fb.ClearDepth(1)

	draw := &pipeline.DrawData{}
	draw.AttribBase[0] = floatAttr(positions)

	err := r.Draw(&DrawCall{
		Specializer: spec,
		State:       state,
		Mode:        Triangles,
		VertexCount: len(positions) / 4,
		Viewport:    Viewport{Width: w, Height: h},
		Data:        draw,
		Target:      fb,
	})
	if err != nil {
		t.Fatalf("draw failed: %v", err)
	}
	return fb
}

func TestFullscreenTriangleSinglePixel(t *testing.T) {
	// The empty-shader boundary scenario: one pixel, 0x000000FF.
	fb := drawTriangles(t, `
void main() { gl_FragColor = vec4(0.0, 0.0, 0.0, 1.0); }
`, []float32{
		-1, -1, 0, 1,
		3, -1, 0, 1,
		-1, 3, 0, 1,
	}, 1, 1)

	got := fb.ColorPlane
	if got[0] != 0x00 || got[1] != 0x00 || got[2] != 0x00 || got[3] != 0xFF {
		t.Errorf("pixel = %02x%02x%02x%02x, want 000000ff", got[0], got[1], got[2], got[3])
	}
}

func TestFullscreenCoversAllPixels(t *testing.T) {
	fb := drawTriangles(t, `
void main() { gl_FragColor = vec4(1.0, 1.0, 1.0, 1.0); }
`, []float32{
		-1, -1, 0, 1,
		3, -1, 0, 1,
		-1, 3, 0, 1,
	}, 16, 16)

	for i := 0; i < len(fb.ColorPlane); i += 4 {
		if fb.ColorPlane[i] != 0xFF {
			t.Fatalf("pixel %d not painted", i/4)
		}
	}
}

func TestHalfScreenTriangleIsClipped(t *testing.T) {
	// A triangle reaching far outside the volume still rasterizes
	// correctly after clipping.
	fb := drawTriangles(t, `
void main() { gl_FragColor = vec4(1.0); }
`, []float32{
		-9, -9, 0, 1,
		9, -9, 0, 1,
		-9, 9, 0, 1,
	}, 8, 8)

	painted := 0
	for i := 0; i < len(fb.ColorPlane); i += 4 {
		if fb.ColorPlane[i] != 0 {
			painted++
		}
	}
	if painted == 0 {
		t.Fatal("clipped triangle painted nothing")
	}
	if painted == 8*8 {
		// The hypotenuse passes through the framebuffer, so some
		// corner must stay unpainted.
		t.Fatal("clipped triangle painted everything")
	}
}

func TestDrawOrderIsPreserved(t *testing.T) {
	// Two overlapping fullscreen triangles: the second draw wins.
	spec := newSpecializer(t, passthroughVS, `
precision mediump float;
uniform vec4 u_color;
void main() { gl_FragColor = u_color; }
`)
	defer spec.Close()

	r := New(Config{Workers: 4})
	defer r.Close()

	state := pipeline.DefaultState()
	state.Attributes[0] = pipeline.Attribute{
		Enabled: true, Type: pipeline.AttribFloat, Count: 4, Stride: 16,
	}

	positions := []float32{
		-1, -1, 0, 1,
		3, -1, 0, 1,
		-1, 3, 0, 1,
	}
	fb := NewFramebuffer(8, 8)

	draw := &pipeline.DrawData{}
	draw.AttribBase[0] = floatAttr(positions)

	for pass, red := range []float32{0.25, 1.0} {
		draw.Uniforms[0] = [4]float32{red, 0, 0, 1}
		err := r.Draw(&DrawCall{
			Specializer: spec,
			State:       state,
			Mode:        Triangles,
			VertexCount: 3,
			Viewport:    Viewport{Width: 8, Height: 8},
			Data:        draw,
			Target:      fb,
		})
		if err != nil {
			t.Fatalf("draw %d failed: %v", pass, err)
		}
	}

	if fb.ColorPlane[0] != 0xFF {
		t.Errorf("red = %#x, want 0xff from the second draw", fb.ColorPlane[0])
	}
}

func TestPrimitiveAssemblyModes(t *testing.T) {
	tests := []struct {
		mode  PrimitiveMode
		count int
		want  int // primitives
	}{
		{Points, 3, 3},
		{Lines, 4, 2},
		{LineStrip, 4, 3},
		{LineLoop, 4, 4},
		{Triangles, 6, 2},
		{TriangleStrip, 5, 3},
		{TriangleFan, 5, 3},
	}
	for _, tt := range tests {
		indices := make([]uint32, tt.count)
		for i := range indices {
			indices[i] = uint32(i)
		}
		got := assemble(tt.mode, indices)
		if len(got) != tt.want {
			t.Errorf("%s over %d indices: %d primitives, want %d", tt.mode, tt.count, len(got), tt.want)
		}
	}
}

func TestTriangleStripWinding(t *testing.T) {
	prims := assemble(TriangleStrip, []uint32{0, 1, 2, 3})
	if len(prims) != 2 {
		t.Fatalf("strip yielded %d triangles", len(prims))
	}
	// The second triangle swaps its leading vertices.
	if prims[1][0] != 2 || prims[1][1] != 1 || prims[1][2] != 3 {
		t.Errorf("odd strip triangle = %v, want [2 1 3]", prims[1])
	}
}

func TestClipTriangle(t *testing.T) {
	inside := clipVertex{pos: [4]float32{0, 0, 0, 1}}
	right := clipVertex{pos: [4]float32{2, 0, 0, 1}}
	top := clipVertex{pos: [4]float32{0, 2, 0, 1}}

	poly := clipTriangle(inside, right, top)
	if len(poly) < 3 {
		t.Fatalf("clip produced %d vertices", len(poly))
	}
	for _, v := range poly {
		if outcode(v.pos) != 0 {
			t.Errorf("clipped vertex %v still outside", v.pos)
		}
	}

	// Fully outside.
	far := clipVertex{pos: [4]float32{5, 5, 0, 1}}
	farther := clipVertex{pos: [4]float32{6, 5, 0, 1}}
	above := clipVertex{pos: [4]float32{5, 6, 0, 1}}
	if poly := clipTriangle(far, farther, above); len(poly) != 0 {
		t.Errorf("fully outside triangle produced %d vertices", len(poly))
	}
}

func TestClipInterpolatesVaryings(t *testing.T) {
	a := clipVertex{pos: [4]float32{0, 0, 0, 1}}
	a.varyings[0] = [4]float32{1, 0, 0, 0}
	b := clipVertex{pos: [4]float32{3, 0, 0, 1}} // outside x <= w
	b.varyings[0] = [4]float32{0, 1, 0, 0}

	mid := lerpClip(&a, &b, 0.5)
	if mid.varyings[0][0] != 0.5 || mid.varyings[0][1] != 0.5 {
		t.Errorf("varying lerp = %v", mid.varyings[0])
	}
	if mid.pos[0] != 1.5 {
		t.Errorf("position lerp = %v", mid.pos)
	}
}

func TestBlitScaling(t *testing.T) {
	src := NewFramebuffer(2, 2)
	// Top-left red, others green.
	src.ColorPlane[0] = 0xFF
	src.ColorPlane[3] = 0xFF
	for p := 1; p < 4; p++ {
		src.ColorPlane[p*4+1] = 0xFF
		src.ColorPlane[p*4+3] = 0xFF
	}

	dst := NewFramebuffer(4, 4)
	src.Blit(dst, image.Rect(0, 0, 2, 2), image.Rect(0, 0, 4, 4))

	// Nearest upscale: the top-left 2×2 block is red.
	if dst.ColorPlane[0] != 0xFF || dst.ColorPlane[(1*4+1)*4] != 0xFF {
		t.Error("nearest blit did not replicate the red texel")
	}
	if dst.ColorPlane[(3*4+3)*4+1] != 0xFF {
		t.Error("nearest blit lost the green texel")
	}
}

func TestFramebufferClearAndImage(t *testing.T) {
	fb := NewFramebuffer(2, 1)
	fb.ClearColor(1, 0.5, 0, 1)
	img := fb.Image()
	r, g, b, a := img.At(0, 0).RGBA()
	if r>>8 != 0xFF || b>>8 != 0 || a>>8 != 0xFF {
		t.Errorf("cleared pixel = %v %v %v %v", r>>8, g>>8, b>>8, a>>8)
	}
	if g>>8 < 0x7E || g>>8 > 0x81 {
		t.Errorf("green = %#x, want about 0x80", g>>8)
	}
}

func TestTextureSampling(t *testing.T) {
	spec := newSpecializer(t, `
attribute vec4 a_position;
varying vec2 v_uv;
void main() {
    v_uv = a_position.xy * 0.5 + 0.5;
    gl_Position = a_position;
}
`, `
precision mediump float;
uniform sampler2D u_tex;
varying vec2 v_uv;
void main() { gl_FragColor = texture2D(u_tex, v_uv); }
`)
	defer spec.Close()

	r := New(Config{Workers: 1})
	defer r.Close()

	state := pipeline.DefaultState()
	state.Attributes[0] = pipeline.Attribute{
		Enabled: true, Type: pipeline.AttribFloat, Count: 4, Stride: 16,
	}

	positions := []float32{
		-1, -1, 0, 1,
		3, -1, 0, 1,
		-1, 3, 0, 1,
	}
	// 2×2 texture: solid blue.
	texels := make([]byte, 2*2*4)
	for p := 0; p < 4; p++ {
		texels[p*4+2] = 0xFF
		texels[p*4+3] = 0xFF
	}

	fb := NewFramebuffer(4, 4)
	draw := &pipeline.DrawData{}
	draw.AttribBase[0] = floatAttr(positions)
	draw.Samplers[0] = pipeline.SamplerData{
		Data:  uint64(uintptr(unsafe.Pointer(&texels[0]))),
		Width: 2, Height: 2,
	}

	err := r.Draw(&DrawCall{
		Specializer: spec,
		State:       state,
		Mode:        Triangles,
		VertexCount: 3,
		Viewport:    Viewport{Width: 4, Height: 4},
		Data:        draw,
		Target:      fb,
	})
	if err != nil {
		t.Fatalf("draw failed: %v", err)
	}

	center := fb.ColorPlane[(2*4+2)*4:]
	if center[2] != 0xFF {
		t.Errorf("sampled blue = %#x, want 0xff", center[2])
	}
	if center[0] != 0 {
		t.Errorf("sampled red = %#x, want 0", center[0])
	}
}
