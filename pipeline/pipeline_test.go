package pipeline

import (
	"math/rand"
	"testing"
	"unsafe"

	"github.com/gogpu/swgl/backend"
	"github.com/gogpu/swgl/glsl"
)

func compilePrograms(t *testing.T, vs, fs string) *Specializer {
	t.Helper()
	vr := glsl.Compile([]string{vs}, glsl.VertexShaderKind)
	if !vr.OK {
		t.Fatalf("vertex compile failed:\n%s", vr.InfoLog)
	}
	fr := glsl.Compile([]string{fs}, glsl.FragmentShaderKind)
	if !fr.OK {
		t.Fatalf("fragment compile failed:\n%s", fr.InfoLog)
	}
	spec, err := NewSpecializer(vr.Program, fr.Program, backend.DefaultConfig())
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	return spec
}

const passthroughVS = `
attribute vec4 a_position;
void main() { gl_Position = a_position; }
`

const blackFS = `
void main() { gl_FragColor = vec4(0.0, 0.0, 0.0, 1.0); }
`

// screenTriangle builds a Triangle directly in screen space.
func screenTriangle(coords [3][2]float32) *Triangle {
	tri := &Triangle{}
	verts := []*Vertex{&tri.V0, &tri.V1, &tri.V2}
	for i, v := range verts {
		v.Position = [4]float32{coords[i][0], coords[i][1], 0.5, 1}
	}
	return tri
}

func runSetup(t *testing.T, routines *Routines, tri *Triangle) (*Primitive, bool) {
	t.Helper()
	prim := &Primitive{}
	ok := routines.Setup.Call(
		uint64(uintptr(unsafe.Pointer(tri))),
		uint64(uintptr(unsafe.Pointer(prim))),
	)
	return prim, ok != 0
}

func newFramebuffer(w, h int) (*Framebuffer, []byte, []float32) {
	color := make([]byte, w*h*4)
	depth := make([]float32, w*h)
	fb := &Framebuffer{
		Color:  uint64(uintptr(unsafe.Pointer(&color[0]))),
		Depth:  uint64(uintptr(unsafe.Pointer(&depth[0]))),
		Width:  int32(w),
		Height: int32(h),
		Pitch:  int32(w),
	}
	return fb, color, depth
}

func runPixel(routines *Routines, prim *Primitive, fb *Framebuffer, draw *DrawData, y0, y1 int) {
	routines.Pixel.Call(
		uint64(uintptr(unsafe.Pointer(prim))),
		uint64(int64(y0)),
		uint64(int64(y1)),
		uint64(uintptr(unsafe.Pointer(fb))),
		uint64(uintptr(unsafe.Pointer(draw))),
	)
}

func TestSinglePixelFill(t *testing.T) {
	// A fullscreen triangle over a 1×1 target paints exactly one
	// pixel with 0x000000FF.
	spec := compilePrograms(t, passthroughVS, blackFS)
	defer spec.Close()
	state := DefaultState()
	state.DepthTest = false
	routines, err := spec.Specialize(&state)
	if err != nil {
		t.Fatalf("specialize failed: %v", err)
	}

	tri := screenTriangle([3][2]float32{{0, 0}, {2, 0}, {0, 2}})
	prim, ok := runSetup(t, routines, tri)
	if !ok {
		t.Fatal("setup rejected the triangle")
	}

	fb, color, _ := newFramebuffer(1, 1)
	draw := &DrawData{}
	runPixel(routines, prim, fb, draw, 0, 1)

	if color[0] != 0 || color[1] != 0 || color[2] != 0 || color[3] != 0xFF {
		t.Errorf("pixel = %02x%02x%02x%02x, want 000000ff", color[0], color[1], color[2], color[3])
	}
}

func TestTriangleCoverage4x4(t *testing.T) {
	// Triangle (0,0) (2,0) (0,2) at integer pixel centers covers
	// exactly (0,0), (1,0), (0,1).
	spec := compilePrograms(t, passthroughVS, `
void main() { gl_FragColor = vec4(1.0, 1.0, 1.0, 1.0); }
`)
	defer spec.Close()
	state := DefaultState()
	state.DepthTest = false
	routines, err := spec.Specialize(&state)
	if err != nil {
		t.Fatalf("specialize failed: %v", err)
	}

	tri := screenTriangle([3][2]float32{{0, 0}, {2, 0}, {0, 2}})
	prim, ok := runSetup(t, routines, tri)
	if !ok {
		t.Fatal("setup rejected the triangle")
	}

	fb, color, _ := newFramebuffer(4, 4)
	draw := &DrawData{}
	runPixel(routines, prim, fb, draw, 0, 4)

	want := map[[2]int]bool{{0, 0}: true, {1, 0}: true, {0, 1}: true}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			painted := color[(y*4+x)*4] != 0
			if painted != want[[2]int{x, y}] {
				t.Errorf("pixel (%d,%d) painted = %v, want %v", x, y, painted, want[[2]int{x, y}])
			}
		}
	}
}

func TestSetupInvariants(t *testing.T) {
	spec := compilePrograms(t, passthroughVS, blackFS)
	defer spec.Close()
	state := DefaultState()
	routines, err := spec.Specialize(&state)
	if err != nil {
		t.Fatalf("specialize failed: %v", err)
	}

	tri := screenTriangle([3][2]float32{{1.5, 0.5}, {10.25, 3.5}, {2.5, 9.75}})
	prim, ok := runSetup(t, routines, tri)
	if !ok {
		t.Fatal("setup rejected the triangle")
	}
	if prim.YMin > prim.YMax {
		t.Fatalf("yMin %d > yMax %d", prim.YMin, prim.YMax)
	}
	for y := prim.YMin; y < prim.YMax; y++ {
		s := prim.Outline[y]
		if s.Left <= s.Right {
			continue
		}
		// Empty spans keep the initialized sentinel values.
		if s.Left != 0xFFFF || s.Right != 0 {
			t.Errorf("scanline %d: left %d > right %d", y, s.Left, s.Right)
		}
	}
}

// edgeFunctionCount rasterizes the triangle by evaluating the three
// edge functions at integer pixel centers, the reference for the
// outline invariant.
func edgeFunctionCount(coords [3][2]float32, w, h int) int {
	x0, y0 := float64(coords[0][0]), float64(coords[0][1])
	x1, y1 := float64(coords[1][0]), float64(coords[1][1])
	x2, y2 := float64(coords[2][0]), float64(coords[2][1])
	area := (x1-x0)*(y2-y0) - (x2-x0)*(y1-y0)
	if area == 0 {
		return 0
	}
	if area < 0 {
		x1, y1, x2, y2 = x2, y2, x1, y1
	}
	edge := func(ax, ay, bx, by, px, py float64) float64 {
		return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
	}
	topLeft := func(ax, ay, bx, by float64) bool {
		return (ay == by && bx > ax) || by < ay
	}
	count := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px, py := float64(x), float64(y)
			inside := true
			for _, e := range [3][4]float64{
				{x0, y0, x1, y1}, {x1, y1, x2, y2}, {x2, y2, x0, y0},
			} {
				v := edge(e[0], e[1], e[2], e[3], px, py)
				if v < 0 || (v == 0 && !topLeft(e[0], e[1], e[2], e[3])) {
					inside = false
					break
				}
			}
			if inside {
				count++
			}
		}
	}
	return count
}

func TestOutlineMatchesEdgeFunctions(t *testing.T) {
	spec := compilePrograms(t, passthroughVS, blackFS)
	defer spec.Close()
	state := DefaultState()
	routines, err := spec.Specialize(&state)
	if err != nil {
		t.Fatalf("specialize failed: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	const size = 32
	for trial := 0; trial < 50; trial++ {
		var coords [3][2]float32
		for i := range coords {
			// Quarter-pixel grid positions keep the arithmetic exact,
			// so edges running through pixel centers are resolved by
			// the shared top-left fill convention in both
			// formulations.
			coords[i][0] = float32(rng.Intn(size*4)) / 4
			coords[i][1] = float32(rng.Intn(size*4)) / 4
		}
		tri := screenTriangle(coords)
		prim, ok := runSetup(t, routines, tri)
		want := edgeFunctionCount(coords, size, size)
		if !ok {
			if want != 0 {
				t.Errorf("trial %d: setup rejected a triangle covering %d pixels", trial, want)
			}
			continue
		}
		got := 0
		for y := prim.YMin; y < prim.YMax && y < size; y++ {
			s := prim.Outline[y]
			if s.Left > s.Right {
				continue
			}
			right := int(s.Right)
			if right > size {
				right = size
			}
			if int(s.Left) < right {
				got += right - int(s.Left)
			}
		}
		if got != want {
			t.Errorf("trial %d: outline count %d, edge-function count %d (coords %v)", trial, got, want, coords)
		}
	}
}

func TestDepthTest(t *testing.T) {
	spec := compilePrograms(t, passthroughVS, `
void main() { gl_FragColor = vec4(1.0); }
`)
	defer spec.Close()
	state := DefaultState()
	state.DepthTest = true
	state.DepthFunc = CompareLess
	routines, err := spec.Specialize(&state)
	if err != nil {
		t.Fatalf("specialize failed: %v", err)
	}

	tri := screenTriangle([3][2]float32{{0, 0}, {8, 0}, {0, 8}})
	prim, ok := runSetup(t, routines, tri)
	if !ok {
		t.Fatal("setup rejected the triangle")
	}

	fb, color, depth := newFramebuffer(4, 4)
	// Pixel (1,1) already has nearer depth; it must be rejected.
	depth[1*4+1] = 0.1
	for i := range depth {
		if depth[i] == 0 {
			depth[i] = 1
		}
	}
	draw := &DrawData{}
	runPixel(routines, prim, fb, draw, 0, 4)

	if color[(1*4+1)*4] != 0 {
		t.Error("occluded pixel was painted")
	}
	if color[0] == 0 {
		t.Error("visible pixel was not painted")
	}
	// The depth buffer now carries the triangle's z where it passed.
	if depth[0] != 0.5 {
		t.Errorf("depth[0] = %v, want 0.5", depth[0])
	}
}

func TestBlendAndVaryings(t *testing.T) {
	spec := compilePrograms(t, `
attribute vec4 a_position;
attribute vec4 a_color;
varying vec4 v_color;
void main() {
    v_color = a_color;
    gl_Position = a_position;
}
`, `
precision mediump float;
varying vec4 v_color;
void main() { gl_FragColor = v_color; }
`)
	defer spec.Close()
	state := DefaultState()
	state.DepthTest = false
	state.BlendEnabled = true
	state.BlendEquation = BlendAdd
	state.SrcBlend = BlendOne
	state.DstBlend = BlendOne
	state.SrcBlendAlpha = BlendOne
	state.DstBlendAlpha = BlendOne
	routines, err := spec.Specialize(&state)
	if err != nil {
		t.Fatalf("specialize failed: %v", err)
	}

	tri := screenTriangle([3][2]float32{{0, 0}, {4, 0}, {0, 4}})
	// Constant red varying on all three vertices.
	for _, v := range []*Vertex{&tri.V0, &tri.V1, &tri.V2} {
		v.Varyings[0] = [4]float32{0.5, 0, 0, 0.5}
	}
	prim, ok := runSetup(t, routines, tri)
	if !ok {
		t.Fatal("setup rejected the triangle")
	}

	fb, color, _ := newFramebuffer(2, 2)
	// Existing green in the target.
	for p := 0; p < 4; p++ {
		color[p*4+1] = 128
	}
	draw := &DrawData{}
	runPixel(routines, prim, fb, draw, 0, 2)

	px := color[0:4]
	if px[0] < 120 || px[0] > 135 {
		t.Errorf("red = %d, want about 128 (blended 0.5)", px[0])
	}
	if px[1] < 120 || px[1] > 135 {
		t.Errorf("green = %d, want preserved 128", px[1])
	}
}

func TestSpecializerCache(t *testing.T) {
	spec := compilePrograms(t, passthroughVS, blackFS)
	defer spec.Close()
	state := DefaultState()
	a, err := spec.Specialize(&state)
	if err != nil {
		t.Fatal(err)
	}
	b, err := spec.Specialize(&state)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("equal state vectors must share routines")
	}
	state.BlendEnabled = true
	c, err := spec.Specialize(&state)
	if err != nil {
		t.Fatal(err)
	}
	if c == a {
		t.Error("different state vectors must not share routines")
	}
}
