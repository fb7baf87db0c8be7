package pipeline

import (
	"github.com/gogpu/swgl/reactor"
)

// BuildSetupRoutine synthesizes the triangle setup routine:
//
//	setup(tri *Triangle, prim *Primitive) -> uint64 (1 = draw)
//
// It computes the signed area, applies culling, derives the z, 1/w,
// and per-varying plane equations, and fills the scanline outline by
// walking the three edges. Pixels sample at integer coordinates;
// spans are half open on the right, scanline ranges half open at the
// bottom, which makes shared edges between adjacent triangles touch
// every pixel exactly once.
func BuildSetupRoutine(state *State, link *Linkage) (*reactor.Function, error) {
	f := reactor.NewFunction("setup",
		[]reactor.Type{reactor.Pointer, reactor.Pointer},
		reactor.Long)

	tri := f.Arg(0)
	prim := f.Arg(1)

	ci := func(v int64) reactor.Value { return f.ConstInt(reactor.Int, v) }
	cf := func(v float64) reactor.Value { return f.ConstFloat(reactor.Float, v) }
	loadF := func(base reactor.Value, off int) reactor.Value {
		return f.Load(f.AddPtr(base, ci(int64(off))), reactor.Float)
	}
	storeF := func(base reactor.Value, off int, v reactor.Value) {
		f.Store(f.AddPtr(base, ci(int64(off))), v)
	}
	storeI := func(base reactor.Value, off int, v reactor.Value) {
		f.Store(f.AddPtr(base, ci(int64(off))), v)
	}

	vertOffs := [3]int{triangleV0Off, triangleV1Off, triangleV2Off}
	var x, y, z, w [3]reactor.Value
	for i, off := range vertOffs {
		x[i] = loadF(tri, off+vertexPositionOff)
		y[i] = loadF(tri, off+vertexPositionOff+4)
		z[i] = loadF(tri, off+vertexPositionOff+8)
		w[i] = loadF(tri, off+vertexPositionOff+12)
	}

	// Signed area of the screen-space triangle.
	d1x := f.Sub(x[1], x[0])
	d1y := f.Sub(y[1], y[0])
	d2x := f.Sub(x[2], x[0])
	d2y := f.Sub(y[2], y[0])
	area := f.Sub(f.Mul(d1x, d2y), f.Mul(d2x, d1y))

	result := f.NewVarInit(f.ConstInt(reactor.Long, 1))

	zeroArea := f.CmpEQ(area, cf(0))
	f.If(zeroArea, func() {
		result.Store(f.ConstInt(reactor.Long, 0))
	}, nil)

	// Screen space runs y-down, so a triangle that is
	// counter-clockwise in window coordinates has negative area here.
	front := f.CmpLT(area, cf(0))
	if !state.FrontFaceCCW {
		front = f.CmpGT(area, cf(0))
	}
	switch state.Cull {
	case CullBack:
		f.If(f.Not(front), func() { result.Store(f.ConstInt(reactor.Long, 0)) }, nil)
	case CullFront:
		f.If(front, func() { result.Store(f.ConstInt(reactor.Long, 0)) }, nil)
	}

	f.If(f.CmpEQ(result.Load(), f.ConstInt(reactor.Long, 1)), func() {
		storeF(prim, primAreaOff, area)
		frontWord := f.Select(front, f.ConstInt(reactor.Int, 1), f.ConstInt(reactor.Int, 0))
		storeI(prim, primFrontOff, frontWord)

		// Two-sided stencil masks: all ones for the active face.
		allOnes := f.ConstInt(reactor.Long, -1)
		zero64 := f.ConstInt(reactor.Long, 0)
		cw := f.Select(front, allOnes, zero64)
		ccw := f.Select(front, zero64, allOnes)
		f.Store(f.AddPtr(prim, ci(int64(primCWMaskOff))), cw)
		f.Store(f.AddPtr(prim, ci(int64(primInvCWMaskOff))), ccw)

		rcpArea := f.Div(cf(1), area)

		// plane solves v = A·x + B·y + C through the three vertices.
		plane := func(v0, v1, v2 reactor.Value, off int) {
			e1 := f.Sub(v1, v0)
			e2 := f.Sub(v2, v0)
			a := f.Mul(f.Sub(f.Mul(e1, d2y), f.Mul(e2, d1y)), rcpArea)
			b := f.Mul(f.Sub(f.Mul(e2, d1x), f.Mul(e1, d2x)), rcpArea)
			c := f.Sub(v0, f.Add(f.Mul(a, x[0]), f.Mul(b, y[0])))
			storeF(prim, off, a)
			storeF(prim, off+4, b)
			storeF(prim, off+8, c)
		}

		// z interpolates affinely; w's plane interpolates 1/w for
		// perspective correction.
		plane(z[0], z[1], z[2], primZOff)
		rhw := [3]reactor.Value{
			f.Div(cf(1), w[0]),
			f.Div(cf(1), w[1]),
			f.Div(cf(1), w[2]),
		}
		plane(rhw[0], rhw[1], rhw[2], primWOff)

		// Varying planes interpolate v/w; flat slots carry the
		// provoking vertex value in C.
		for _, slot := range link.FragmentIn {
			for r := 0; r < slot.Registers; r++ {
				for c := 0; c < 4; c++ {
					off := primVOff + ((slot.Slot+r)*4+c)*planeSize
					vOff := vertexVaryingsOff + (slot.Slot+r)*16 + c*4
					if slot.Flat {
						storeF(prim, off, cf(0))
						storeF(prim, off+4, cf(0))
						storeF(prim, off+8, loadF(tri, triangleV2Off+vOff))
						continue
					}
					v0 := f.Mul(loadF(tri, triangleV0Off+vOff), rhw[0])
					v1 := f.Mul(loadF(tri, triangleV1Off+vOff), rhw[1])
					v2 := f.Mul(loadF(tri, triangleV2Off+vOff), rhw[2])
					plane(v0, v1, v2, off)
				}
			}
		}

		// Scanline bounds: ceil(min(y)) .. ceil(max(y)), clamped to
		// the outline resolution.
		minY := f.Min(y[0], f.Min(y[1], y[2]))
		maxY := f.Max(y[0], f.Max(y[1], y[2]))
		yMin := f.ConvertTrunc(f.Ceil(minY), reactor.Int)
		yMax := f.ConvertTrunc(f.Ceil(maxY), reactor.Int)
		yMin = f.Max(yMin, ci(0))
		yMax = f.Min(yMax, ci(OutlineResolution))

		yMinVar := f.NewVarInit(yMin)
		yMaxVar := f.NewVarInit(yMax)
		storeI(prim, primYMinOff, yMinVar.Load())
		storeI(prim, primYMaxOff, yMaxVar.Load())

		f.If(f.CmpGE(yMinVar.Load(), yMaxVar.Load()), func() {
			result.Store(f.ConstInt(reactor.Long, 0))
		}, func() {
			emitOutlineFill(f, prim, x, y, yMinVar, yMaxVar)
		})
	}, nil)

	f.Return(result.Load())
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// emitOutlineFill initializes the outline spans of [yMin, yMax) and
// accumulates min/max edge crossings per scanline. Each crossing is
// evaluated in float32 from the edge's top endpoint, so no rounding
// error builds up along the edge.
func emitOutlineFill(f *reactor.Function, prim reactor.Value, x, y [3]reactor.Value, yMinVar, yMaxVar *reactor.Var) {
	ci := func(v int64) reactor.Value { return f.ConstInt(reactor.Int, v) }
	cf := func(v float64) reactor.Value { return f.ConstFloat(reactor.Float, v) }

	spanAddr := func(yv reactor.Value) reactor.Value {
		off := f.Add(ci(int64(primOutlineOff)), f.Mul(yv, ci(int64(spanSize))))
		return f.AddPtr(prim, off)
	}

	// Initialize spans to empty (left > right).
	yv := f.NewVarInit(yMinVar.Load())
	f.While(func() reactor.Value {
		return f.CmpLT(yv.Load(), yMaxVar.Load())
	}, func() {
		addr := spanAddr(yv.Load())
		f.Store(addr, f.ConstInt(reactor.UShort, 0xFFFF))
		f.Store(f.AddPtr(addr, ci(2)), f.ConstInt(reactor.UShort, 0))
		yv.Store(f.Add(yv.Load(), ci(1)))
	})

	// Walk each edge, updating left/right per crossed scanline.
	for e := 0; e < 3; e++ {
		p, q := e, (e+1)%3
		px, py := x[p], y[p]
		qx, qy := x[q], y[q]

		// Order the endpoints top to bottom.
		swap := f.CmpGT(py, qy)
		topX := f.Select(swap, qx, px)
		topY := f.Select(swap, qy, py)
		botX := f.Select(swap, px, qx)
		botY := f.Select(swap, py, qy)

		dy := f.Sub(botY, topY)
		horizontal := f.CmpEQ(dy, cf(0))
		f.If(f.Not(horizontal), func() {
			dx := f.Sub(botX, topX)

			y0 := f.Max(f.ConvertTrunc(f.Ceil(topY), reactor.Int), yMinVar.Load())
			y1 := f.Min(f.ConvertTrunc(f.Ceil(botY), reactor.Int), yMaxVar.Load())

			// x where the edge crosses each scanline, computed as
			// topX + (y - topY)·dx / dy so that a crossing exactly on
			// a pixel center stays exact.
			yi := f.NewVarInit(y0)
			f.While(func() reactor.Value {
				return f.CmpLT(yi.Load(), y1)
			}, func() {
				rise := f.Sub(f.Convert(yi.Load(), reactor.Float), topY)
				xAt := f.Add(topX, f.Div(f.Mul(rise, dx), dy))
				xi := f.ConvertTrunc(f.Ceil(xAt), reactor.Int)
				xi = f.Min(f.Max(xi, ci(0)), ci(0xFFFE))
				xi16 := f.Convert(xi, reactor.UShort)

				addr := spanAddr(yi.Load())
				left := f.Load(addr, reactor.UShort)
				right := f.Load(f.AddPtr(addr, ci(2)), reactor.UShort)
				f.Store(addr, f.Min(left, xi16))
				f.Store(f.AddPtr(addr, ci(2)), f.Max(right, xi16))

				yi.Store(f.Add(yi.Load(), ci(1)))
			})
		}, nil)
	}
}
