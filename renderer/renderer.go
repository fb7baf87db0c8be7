package renderer

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"unsafe"

	"github.com/gogpu/swgl/pipeline"
)

// Viewport maps normalized device coordinates to pixels.
type Viewport struct {
	X, Y          int
	Width, Height int
}

// Config controls a renderer instance.
type Config struct {
	// Workers is the rasterization thread count; zero selects the
	// process affinity count.
	Workers int

	// Logger receives operational events; nil discards them.
	Logger *slog.Logger
}

// DefaultConfig sizes the pool from the CPU affinity mask.
func DefaultConfig() Config {
	return Config{Workers: defaultWorkerCount()}
}

// strip is one unit of rasterization work: a scanline range of one
// primitive.
type strip struct {
	prim *pipeline.Primitive
	y0   int
	y1   int
	fb   *pipeline.Framebuffer
	draw *pipeline.DrawData
	run  func(prim *pipeline.Primitive, y0, y1 int, fb *pipeline.Framebuffer, draw *pipeline.DrawData)
}

// Renderer executes draw calls. Draws against one renderer are
// serialized by its mutex; the worker pool parallelizes scanline
// strips inside each draw.
type Renderer struct {
	mu  sync.Mutex
	log *slog.Logger

	workers int
	tasks   chan []strip
	wg      sync.WaitGroup
	closed  bool

	// scratch reused across draws
	vertices []pipeline.Vertex
}

// New starts a renderer and its worker pool.
func New(cfg Config) *Renderer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkerCount()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Renderer{
		log:     logger,
		workers: workers,
		tasks:   make(chan []strip, workers),
	}
	for i := 0; i < workers; i++ {
		go r.worker(i)
	}
	r.log.Info("renderer started", "workers", workers)
	return r
}

// worker drains strip batches until the channel closes. Strips in a
// batch are processed in order, which preserves primitive order
// within the worker's scanline range.
func (r *Renderer) worker(id int) {
	for batch := range r.tasks {
		for _, s := range batch {
			s.run(s.prim, s.y0, s.y1, s.fb, s.draw)
		}
		r.wg.Done()
	}
}

// Close stops the worker pool after pending work drains.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		close(r.tasks)
		r.closed = true
		r.log.Info("renderer stopped")
	}
}

// Finish blocks until all submitted rasterization work completed.
// Draw already waits for its own strips, so Finish is a quiescence
// point for callers pipelining draws from other goroutines.
func (r *Renderer) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
}

// DrawCall carries everything one draw needs.
type DrawCall struct {
	Specializer *pipeline.Specializer
	State       pipeline.State
	Mode        PrimitiveMode
	Indices     []uint32
	VertexCount int
	Viewport    Viewport
	Data        *pipeline.DrawData
	Target      *Framebuffer
}

// Draw executes one draw call: vertex processing, assembly, clip,
// setup, and parallel rasterization.
func (r *Renderer) Draw(call *DrawCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return glError(InvalidOperation, "renderer is closed")
	}

	routines, err := call.Specializer.Specialize(&call.State)
	if err != nil {
		// A failed specialization disables drawing with the program.
		r.log.Error("specialization failed", "error", err)
		return glError(InvalidOperation, err.Error())
	}

	indices := call.Indices
	if indices == nil {
		indices = make([]uint32, call.VertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices) == 0 {
		return nil
	}

	// Vertex processing over the whole index range.
	if cap(r.vertices) < len(indices) {
		r.vertices = make([]pipeline.Vertex, len(indices))
	}
	out := r.vertices[:len(indices)]
	routines.Vertex.Call(
		uint64(uintptr(unsafe.Pointer(call.Data))),
		uint64(uintptr(unsafe.Pointer(&out[0]))),
		uint64(uintptr(unsafe.Pointer(&indices[0]))),
		uint64(len(indices)),
	)
	// The vertex routine reads attribute i through indices[i]; its
	// outputs are positionally matched to the assembled stream below.
	streamIndices := make([]uint32, len(indices))
	for i := range streamIndices {
		streamIndices[i] = uint32(i)
	}

	prims := assemble(call.Mode, streamIndices)
	triangles := r.toScreenTriangles(call, prims, out)

	// Setup, collecting drawable primitives in order.
	primitives := make([]*pipeline.Primitive, 0, len(triangles))
	for i := range triangles {
		prim := new(pipeline.Primitive)
		ok := routines.Setup.Call(
			uint64(uintptr(unsafe.Pointer(&triangles[i]))),
			uint64(uintptr(unsafe.Pointer(prim))),
		)
		if ok == 0 {
			continue
		}
		primitives = append(primitives, prim)
	}
	if len(primitives) == 0 {
		return nil
	}

	r.rasterize(call, routines, primitives)
	return nil
}

// rasterize partitions the target's scanlines into one strip range
// per worker and dispatches every primitive to each overlapping
// strip.
func (r *Renderer) rasterize(call *DrawCall, routines *pipeline.Routines, primitives []*pipeline.Primitive) {
	fbData := call.Target.data()
	height := call.Target.Height
	stripHeight := (height + r.workers - 1) / r.workers
	if stripHeight < 1 {
		stripHeight = 1
	}

	run := func(prim *pipeline.Primitive, y0, y1 int, fb *pipeline.Framebuffer, draw *pipeline.DrawData) {
		routines.Pixel.Call(
			uint64(uintptr(unsafe.Pointer(prim))),
			uint64(int64(y0)),
			uint64(int64(y1)),
			uint64(uintptr(unsafe.Pointer(fb))),
			uint64(uintptr(unsafe.Pointer(draw))),
		)
	}

	for y0 := 0; y0 < height; y0 += stripHeight {
		y1 := y0 + stripHeight
		if y1 > height {
			y1 = height
		}
		var batch []strip
		for _, prim := range primitives {
			if int(prim.YMax) <= y0 || int(prim.YMin) >= y1 {
				continue
			}
			batch = append(batch, strip{
				prim: prim, y0: y0, y1: y1,
				fb: fbData, draw: call.Data, run: run,
			})
		}
		if len(batch) == 0 {
			continue
		}
		r.wg.Add(1)
		r.tasks <- batch
	}
	r.wg.Wait()
}

// toScreenTriangles clips each assembled primitive and applies the
// viewport transform, expanding points and lines into triangles.
func (r *Renderer) toScreenTriangles(call *DrawCall, prims [][]uint32, verts []pipeline.Vertex) []pipeline.Triangle {
	var out []pipeline.Triangle

	toClip := func(i uint32) clipVertex {
		v := &verts[i]
		var cv clipVertex
		cv.pos = v.Position
		cv.pointSize = v.PointSize
		cv.varyings = v.Varyings
		return cv
	}

	emitPolygon := func(poly []clipVertex) {
		for i := 1; i+1 < len(poly); i++ {
			tri := pipeline.Triangle{}
			for j, cv := range []clipVertex{poly[0], poly[i], poly[i+1]} {
				dst := [3]*pipeline.Vertex{&tri.V0, &tri.V1, &tri.V2}[j]
				r.toScreen(call.Viewport, cv, dst)
			}
			out = append(out, tri)
		}
	}

	for _, prim := range prims {
		switch len(prim) {
		case 3:
			v0, v1, v2 := toClip(prim[0]), toClip(prim[1]), toClip(prim[2])
			if outcode(v0.pos)|outcode(v1.pos)|outcode(v2.pos) == 0 {
				emitPolygon([]clipVertex{v0, v1, v2})
				continue
			}
			if outcode(v0.pos)&outcode(v1.pos)&outcode(v2.pos) != 0 {
				continue // trivially outside
			}
			emitPolygon(clipTriangle(v0, v1, v2))
		case 2:
			out = append(out, r.expandLine(call.Viewport, toClip(prim[0]), toClip(prim[1]))...)
		case 1:
			out = append(out, r.expandPoint(call.Viewport, toClip(prim[0]))...)
		}
	}
	return out
}

// toScreen performs the perspective division and viewport transform.
// Pixel centers sit at integer coordinates, so the transform offsets
// by half a pixel.
func (r *Renderer) toScreen(vp Viewport, cv clipVertex, dst *pipeline.Vertex) {
	w := cv.pos[3]
	rhw := float32(1)
	if w != 0 {
		rhw = 1 / w
	}
	ndcX := cv.pos[0] * rhw
	ndcY := cv.pos[1] * rhw
	ndcZ := cv.pos[2] * rhw

	dst.Position[0] = float32(vp.X) + (ndcX*0.5+0.5)*float32(vp.Width) - 0.5
	dst.Position[1] = float32(vp.Y) + (0.5-ndcY*0.5)*float32(vp.Height) - 0.5
	dst.Position[2] = ndcZ*0.5 + 0.5
	dst.Position[3] = w
	dst.PointSize = cv.pointSize
	dst.Varyings = cv.varyings
}

// expandPoint turns a point into two triangles covering its square.
func (r *Renderer) expandPoint(vp Viewport, cv clipVertex) []pipeline.Triangle {
	if outcode(cv.pos) != 0 {
		return nil
	}
	var center pipeline.Vertex
	r.toScreen(vp, cv, &center)
	size := center.PointSize
	if size < 1 {
		size = 1
	}
	h := size / 2
	corner := func(dx, dy float32) pipeline.Vertex {
		v := center
		v.Position[0] += dx
		v.Position[1] += dy
		return v
	}
	tl := corner(-h, -h)
	tr := corner(h, -h)
	bl := corner(-h, h)
	br := corner(h, h)
	return []pipeline.Triangle{
		{V0: tl, V1: bl, V2: tr},
		{V0: tr, V1: bl, V2: br},
	}
}

// expandLine turns a segment into a one-pixel-wide parallelogram.
func (r *Renderer) expandLine(vp Viewport, a, b clipVertex) []pipeline.Triangle {
	if outcode(a.pos)&outcode(b.pos) != 0 {
		return nil
	}
	var p0, p1 pipeline.Vertex
	r.toScreen(vp, a, &p0)
	r.toScreen(vp, b, &p1)

	dx := p1.Position[0] - p0.Position[0]
	dy := p1.Position[1] - p0.Position[1]
	len2 := dx*dx + dy*dy
	if len2 == 0 {
		return nil
	}
	inv := 1 / sqrt32(len2)
	// Half-pixel normal.
	nx := -dy * inv * 0.5
	ny := dx * inv * 0.5

	offset := func(v pipeline.Vertex, sx, sy float32) pipeline.Vertex {
		v.Position[0] += sx
		v.Position[1] += sy
		return v
	}
	a0 := offset(p0, nx, ny)
	a1 := offset(p0, -nx, -ny)
	b0 := offset(p1, nx, ny)
	b1 := offset(p1, -nx, -ny)
	return []pipeline.Triangle{
		{V0: a0, V1: a1, V2: b0},
		{V0: b0, V1: a1, V2: b1},
	}
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
