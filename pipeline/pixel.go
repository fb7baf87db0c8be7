package pipeline

import (
	"github.com/gogpu/swgl/ir"
	"github.com/gogpu/swgl/reactor"
)

// pixelBinding homes the fragment stage's registers: inputs are the
// interpolated values computed per pixel, outputs collect into color
// variables.
type pixelBinding struct {
	f        *reactor.Function
	draw     reactor.Value
	inputs   map[int]*reactor.Var
	outputs  map[int]*reactor.Var
	uniforms reactor.Value
}

func (b *pixelBinding) loadInput(i int) reactor.Value {
	if v, ok := b.inputs[i]; ok {
		return v.Load()
	}
	return b.f.ConstFloat(reactor.Float4, 0)
}

func (b *pixelBinding) outputVar(i int) *reactor.Var {
	if v, ok := b.outputs[i]; ok {
		return v
	}
	v := b.f.NewVarInit(b.f.ConstFloat(reactor.Float4, 0))
	b.outputs[i] = v
	return v
}

func (b *pixelBinding) uniformBase() reactor.Value { return b.uniforms }
func (b *pixelBinding) drawData() reactor.Value    { return b.draw }

// BuildPixelRoutine synthesizes the scanline rasterizer for one
// pipeline state and fragment program:
//
//	pixel(prim *Primitive, y0, y1 int, fb *Framebuffer, draw *DrawData)
//
// The routine walks its strip [y0, y1) two scanlines at a time, and
// each covered span in 2×2 quad steps. Per covered pixel it
// evaluates z and the varyings from the plane equations, runs the
// shader, and performs the scissor, depth, stencil, and blend stages
// baked from the state vector.
func BuildPixelRoutine(state *State, prog *ir.Program, link *Linkage) (*reactor.Function, error) {
	f := reactor.NewFunction("pixel",
		[]reactor.Type{reactor.Pointer, reactor.Int, reactor.Int, reactor.Pointer, reactor.Pointer},
		reactor.Void)

	prim := f.Arg(0)
	y0 := f.Arg(1)
	y1 := f.Arg(2)
	fb := f.Arg(3)
	draw := f.Arg(4)

	ci := func(v int64) reactor.Value { return f.ConstInt(reactor.Int, v) }
	cf := func(v float64) reactor.Value { return f.ConstFloat(reactor.Float, v) }
	loadI := func(base reactor.Value, off int) reactor.Value {
		return f.Load(f.AddPtr(base, ci(int64(off))), reactor.Int)
	}
	loadF := func(base reactor.Value, off int) reactor.Value {
		return f.Load(f.AddPtr(base, ci(int64(off))), reactor.Float)
	}

	bind := &pixelBinding{
		f:        f,
		draw:     draw,
		inputs:   make(map[int]*reactor.Var),
		outputs:  make(map[int]*reactor.Var),
		uniforms: f.AddPtr(draw, f.ConstInt(reactor.Int, int64(drawUniformsOff))),
	}

	// Input variables, refreshed per pixel.
	fragCoord := f.NewVarInit(f.ConstFloat(reactor.Float4, 0))
	bind.inputs[0] = fragCoord
	frontFacing := f.NewVarInit(f.ConstFloat(reactor.Float4, 0))
	bind.inputs[1] = frontFacing
	pointCoord := f.NewVarInit(f.ConstFloat(reactor.Float4, 0))
	bind.inputs[2] = pointCoord
	for _, slot := range link.FragmentIn {
		for r := 0; r < slot.Registers; r++ {
			bind.inputs[slot.Register+r] = f.NewVarInit(f.ConstFloat(reactor.Float4, 0))
		}
	}

	t, err := newTranslator(f, prog, bind)
	if err != nil {
		return nil, err
	}
	t.kill = f.NewVarInit(f.ConstInt(reactor.Bool, 0))

	yMin := f.Max(loadI(prim, primYMinOff), y0)
	yMax := f.Min(loadI(prim, primYMaxOff), y1)

	width := loadI(fb, fbWidthOff)
	pitch := loadI(fb, fbPitchOff)
	colorBase := f.Load(f.AddPtr(fb, ci(int64(fbColorOff))), reactor.Pointer)
	depthBase := f.Load(f.AddPtr(fb, ci(int64(fbDepthOff))), reactor.Pointer)
	stencilBase := f.Load(f.AddPtr(fb, ci(int64(fbStencilOff))), reactor.Pointer)
	frontWord := loadI(prim, primFrontOff)

	planeAt := func(off int, xf, yf reactor.Value) reactor.Value {
		a := loadF(prim, off)
		b := loadF(prim, off+4)
		c := loadF(prim, off+8)
		return f.Add(f.Add(f.Mul(a, xf), f.Mul(b, yf)), c)
	}

	spanOf := func(yv reactor.Value) (left, right reactor.Value) {
		addr := f.AddPtr(prim, f.Add(ci(int64(primOutlineOff)), f.Mul(yv, ci(int64(spanSize)))))
		l := f.Convert(f.Load(addr, reactor.UShort), reactor.Int)
		r := f.Convert(f.Load(f.AddPtr(addr, ci(2)), reactor.UShort), reactor.Int)
		r = f.Min(r, width)
		if state.ScissorTest {
			l = f.Max(l, ci(int64(state.ScissorX)))
			r = f.Min(r, ci(int64(state.ScissorX+state.ScissorWidth)))
		}
		return l, r
	}

	// shadePixel emits the whole per-pixel pipeline for one (x, y).
	shadePixel := func(xv, yv reactor.Value) {
		xf := f.Convert(xv, reactor.Float)
		yf := f.Convert(yv, reactor.Float)

		z := planeAt(primZOff, xf, yf)
		rhw := planeAt(primWOff, xf, yf)

		pixelIndex := f.Add(f.Mul(yv, pitch), xv)

		// Depth test.
		passVar := f.NewVarInit(f.ConstInt(reactor.Bool, 1))
		var depthAddr reactor.Value
		if state.DepthTest {
			depthAddr = f.GEP(depthBase, pixelIndex, 4)
			stored := f.Load(depthAddr, reactor.Float)
			passVar.Store(emitCompare(f, state.DepthFunc, z, stored))
		}

		// Stencil test.
		var stencilAddr reactor.Value
		if state.StencilTest {
			stencilAddr = f.GEP(stencilBase, pixelIndex, 1)
			emitStencil(f, state, stencilAddr, frontWord, passVar)
		}

		f.If(passVar.Load(), func() {
			// Interpolate inputs.
			w := f.Div(cf(1), rhw)
			fc := f.ConstFloat(reactor.Float4, 0)
			fc = f.Insert(fc, xf, 0)
			fc = f.Insert(fc, yf, 1)
			fc = f.Insert(fc, z, 2)
			fc = f.Insert(fc, rhw, 3)
			fragCoord.Store(fc)
			isFront := f.CmpNE(frontWord, ci(0))
			ff := f.Select(isFront, cf(1), cf(0))
			ffv := f.ConstFloat(reactor.Float4, 0)
			ffv = f.Insert(ffv, ff, 0)
			frontFacing.Store(ffv)

			for _, slot := range link.FragmentIn {
				for r := 0; r < slot.Registers; r++ {
					v := f.ConstFloat(reactor.Float4, 0)
					for c := 0; c < slot.Components; c++ {
						off := primVOff + ((slot.Slot+r)*4+c)*planeSize
						value := planeAt(off, xf, yf)
						if !slot.Flat {
							value = f.Mul(value, w)
						}
						v = f.Insert(v, value, c)
					}
					bind.inputs[slot.Register+r].Store(v)
				}
			}

			// Run the fragment shader.
			t.kill.Store(f.ConstInt(reactor.Bool, 0))
			if err := t.emit(t.mainBody); err != nil {
				return
			}

			f.If(f.Not(t.kill.Load()), func() {
				color := bind.outputVar(0).Load()

				// Alpha-to-coverage at one sample reduces to an
				// alpha threshold.
				if state.AlphaToCoverage {
					alpha := f.Extract(color, 3)
					f.If(f.CmpLT(alpha, cf(0.5)), func() {
						passVar.Store(f.ConstInt(reactor.Bool, 0))
					}, nil)
				}

				f.If(passVar.Load(), func() {
					colorAddr := f.GEP(colorBase, pixelIndex, 4)
					emitColorWrite(f, state, colorAddr, color)
					if state.DepthTest && state.DepthWrite {
						f.Store(depthAddr, z)
					}
				}, nil)
			}, nil)
		}, nil)
	}

	// Strip walk: rows in pairs, spans in 2×2 quad steps.
	yv := f.NewVarInit(yMin)
	f.While(func() reactor.Value {
		return f.CmpLT(yv.Load(), yMax)
	}, func() {
		yTop := yv.Load()
		yBottom := f.Add(yTop, ci(1))
		hasBottom := f.CmpLT(yBottom, yMax)

		lTop, rTop := spanOf(yTop)
		lBot := f.NewVarInit(ci(0xFFFF))
		rBot := f.NewVarInit(ci(0))
		f.If(hasBottom, func() {
			l, r := spanOf(yBottom)
			lBot.Store(l)
			rBot.Store(r)
		}, nil)

		xStart := f.Min(lTop, lBot.Load())
		xEnd := f.Max(rTop, rBot.Load())
		// Quad alignment.
		xStart = f.And(xStart, f.ConstInt(reactor.Int, ^int64(1)))

		xv := f.NewVarInit(xStart)
		f.While(func() reactor.Value {
			return f.CmpLT(xv.Load(), xEnd)
		}, func() {
			for _, d := range [4][2]int64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
				dx, dy := d[0], d[1]
				px := f.Add(xv.Load(), ci(dx))
				py := f.Add(yTop, ci(dy))
				var l, r reactor.Value
				if dy == 0 {
					l, r = lTop, rTop
				} else {
					l, r = lBot.Load(), rBot.Load()
				}
				rowOK := f.ConstInt(reactor.Bool, 1)
				if dy == 1 {
					rowOK = hasBottom
				}
				covered := f.And(rowOK, f.And(f.CmpGE(px, l), f.CmpLT(px, r)))
				f.If(covered, func() {
					shadePixel(px, py)
				}, nil)
			}
			xv.Store(f.Add(xv.Load(), ci(2)))
		})

		yv.Store(f.Add(yv.Load(), ci(2)))
	})
	f.Return(reactor.Value{})

	if t.err != nil {
		return nil, t.err
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// emitCompare emits a GL comparison baked from the state.
func emitCompare(f *reactor.Function, fn CompareFunc, a, b reactor.Value) reactor.Value {
	switch fn {
	case CompareNever:
		return f.ConstInt(reactor.Bool, 0)
	case CompareLess:
		return f.CmpLT(a, b)
	case CompareEqual:
		return f.CmpEQ(a, b)
	case CompareLessEqual:
		return f.CmpLE(a, b)
	case CompareGreater:
		return f.CmpGT(a, b)
	case CompareNotEqual:
		return f.CmpNE(a, b)
	case CompareGreaterEqual:
		return f.CmpGE(a, b)
	}
	return f.ConstInt(reactor.Bool, 1)
}

// emitStencil emits the stencil read/test/update sequence for the
// active face.
func emitStencil(f *reactor.Function, state *State, addr reactor.Value, frontWord reactor.Value, passVar *reactor.Var) {
	ci := func(v int64) reactor.Value { return f.ConstInt(reactor.Int, v) }

	emitFace := func(st *StencilState, depthPass *reactor.Var) {
		stored := f.Convert(f.Load(addr, reactor.Byte), reactor.Int)
		masked := f.And(stored, ci(int64(st.Mask)))
		ref := ci(int64(uint32(st.Ref) & st.Mask))
		stencilPass := emitCompare(f, st.Func, ref, masked)

		apply := func(op uint8) reactor.Value {
			switch op {
			case 1: // zero
				return ci(0)
			case 2: // replace
				return ci(int64(st.Ref))
			case 3: // incr saturate
				return f.Min(f.Add(stored, ci(1)), ci(255))
			case 4: // decr saturate
				return f.Max(f.Sub(stored, ci(1)), ci(0))
			case 5: // invert
				return f.Sub(ci(255), stored)
			case 6: // incr wrap
				return f.And(f.Add(stored, ci(1)), ci(255))
			case 7: // decr wrap
				return f.And(f.Sub(stored, ci(1)), ci(255))
			}
			return stored // keep
		}
		writeBack := func(v reactor.Value) {
			keepBits := f.And(stored, ci(int64(^st.WriteMask&0xFF)))
			newBits := f.And(v, ci(int64(st.WriteMask&0xFF)))
			f.Store(addr, f.Convert(f.Or(keepBits, newBits), reactor.Byte))
		}

		f.If(f.Not(stencilPass), func() {
			writeBack(apply(st.FailOp))
			depthPass.Store(f.ConstInt(reactor.Bool, 0))
		}, func() {
			f.If(depthPass.Load(), func() {
				writeBack(apply(st.PassOp))
			}, func() {
				writeBack(apply(st.ZFailOp))
			})
		})
	}

	isFront := f.CmpNE(frontWord, ci(0))
	f.If(isFront, func() {
		emitFace(&state.StencilFront, passVar)
	}, func() {
		emitFace(&state.StencilBack, passVar)
	})
}

// emitColorWrite converts, blends, and stores the fragment color.
func emitColorWrite(f *reactor.Function, state *State, addr reactor.Value, color reactor.Value) {
	cf := func(v float64) reactor.Value { return f.ConstFloat(reactor.Float, v) }
	ci := func(v int64) reactor.Value { return f.ConstInt(reactor.Int, v) }

	loadDst := func() reactor.Value {
		out := f.ConstFloat(reactor.Float4, 0)
		for c := 0; c < 4; c++ {
			b := f.Load(f.AddPtr(addr, ci(int64(c))), reactor.Byte)
			v := f.Div(f.Convert(b, reactor.Float), cf(255))
			out = f.Insert(out, v, c)
		}
		if state.Order == OrderBGRA {
			out = f.Swizzle(out, reactor.PackSwizzle(2, 1, 0, 3))
		}
		return out
	}

	src := color
	if state.BlendEnabled {
		dst := loadDst()
		srcRGB := blendFactor(f, state.SrcBlend, src, dst, true)
		dstRGB := blendFactor(f, state.DstBlend, src, dst, false)
		srcA := blendFactor(f, state.SrcBlendAlpha, src, dst, true)
		dstA := blendFactor(f, state.DstBlendAlpha, src, dst, false)

		combine := func(s, d reactor.Value) reactor.Value {
			switch state.BlendEquation {
			case BlendSubtract:
				return f.Sub(s, d)
			case BlendReverseSubtract:
				return f.Sub(d, s)
			case BlendMin:
				return f.Min(src, dst)
			case BlendMax:
				return f.Max(src, dst)
			}
			return f.Add(s, d)
		}
		rgb := combine(f.Mul(src, srcRGB), f.Mul(dst, dstRGB))
		alpha := combine(f.Mul(src, srcA), f.Mul(dst, dstA))
		src = f.Shuffle(rgb, alpha, [4]int{0, 1, 2, 7})
	}

	// Clamp, scale to bytes, and honor the channel write mask.
	src = f.Min(f.Max(src, f.ConstFloat(reactor.Float4, 0)), f.ConstFloat(reactor.Float4, 1))
	if state.Order == OrderBGRA {
		src = f.Swizzle(src, reactor.PackSwizzle(2, 1, 0, 3))
	}
	for c := 0; c < 4; c++ {
		channel := c
		if state.Order == OrderBGRA {
			// The mask is defined in RGBA terms.
			channel = [4]int{2, 1, 0, 3}[c]
		}
		if state.ColorWriteMask&(1<<uint(channel)) == 0 {
			continue
		}
		v := f.Extract(src, c)
		scaled := f.Add(f.Mul(v, cf(255)), cf(0.5))
		f.Store(f.AddPtr(addr, ci(int64(c))), f.Convert(f.ConvertTrunc(scaled, reactor.Int), reactor.Byte))
	}
}

// blendFactor evaluates one blend factor from the state.
func blendFactor(f *reactor.Function, factor BlendFactor, src, dst reactor.Value, _ bool) reactor.Value {
	one := f.ConstFloat(reactor.Float4, 1)
	splatA := func(v reactor.Value) reactor.Value {
		return f.Swizzle(v, reactor.PackSwizzle(3, 3, 3, 3))
	}
	switch factor {
	case BlendZero:
		return f.ConstFloat(reactor.Float4, 0)
	case BlendOne:
		return one
	case BlendSrcColor:
		return src
	case BlendOneMinusSrcColor:
		return f.Sub(one, src)
	case BlendSrcAlpha:
		return splatA(src)
	case BlendOneMinusSrcAlpha:
		return f.Sub(one, splatA(src))
	case BlendDstColor:
		return dst
	case BlendOneMinusDstColor:
		return f.Sub(one, dst)
	case BlendDstAlpha:
		return splatA(dst)
	case BlendOneMinusDstAlpha:
		return f.Sub(one, splatA(dst))
	}
	return one
}

// validatePixelProgram rejects programs the fragment stage cannot
// host.
func validatePixelProgram(prog *ir.Program) error {
	if prog.Type != ir.FragmentShader {
		return errNotFragment
	}
	return nil
}
