package pipeline

import (
	"github.com/gogpu/swgl/ir"
	"github.com/gogpu/swgl/reactor"
)

// emitInstruction lowers one data-processing instruction.
func (t *translator) emitInstruction(inst *ir.Instruction) {
	f := t.f
	src := func(i int) reactor.Value { return t.fetchSrc(inst.Src[i]) }

	// Lane-wise float helpers mapped through an external call when
	// reactor has no direct op.
	perLane := func(v reactor.Value, sym string) reactor.Value {
		out := v
		for lane := 0; lane < 4; lane++ {
			s := f.Extract(v, lane)
			r := f.CallExternal(sym, reactor.Float, s)
			out = f.Insert(out, r, lane)
		}
		return out
	}
	perLane2 := func(a, b reactor.Value, sym string) reactor.Value {
		out := a
		for lane := 0; lane < 4; lane++ {
			x := f.Extract(a, lane)
			y := f.Extract(b, lane)
			r := f.CallExternal(sym, reactor.Float, x, y)
			out = f.Insert(out, r, lane)
		}
		return out
	}
	truth := func(v reactor.Value) reactor.Value {
		// Comparison masks become 1.0/0.0 floats.
		one := f.ConstFloat(reactor.Float4, 1)
		zero := f.ConstFloat(reactor.Float4, 0)
		return f.Select(v, one, zero)
	}
	dp := func(a, b reactor.Value, n int) reactor.Value {
		prod := f.Mul(a, b)
		sum := f.Extract(prod, 0)
		for lane := 1; lane < n; lane++ {
			sum = f.Add(sum, f.Extract(prod, lane))
		}
		out := f.ConstFloat(reactor.Float4, 0)
		for lane := 0; lane < 4; lane++ {
			out = f.Insert(out, sum, lane)
		}
		return out
	}
	intOp := func(a, b reactor.Value, op func(x, y reactor.Value) reactor.Value) reactor.Value {
		x := f.ConvertTrunc(a, reactor.Int4)
		y := f.ConvertTrunc(b, reactor.Int4)
		return f.Convert(op(x, y), reactor.Float4)
	}

	switch inst.Op {
	case ir.OpNop:

	case ir.OpMov:
		t.store(inst.Dst, src(0))

	case ir.OpMovAddr:
		// The address register takes the integer part of lane x.
		if sym, ok := t.knownTempValue(inst.Src[0]); ok {
			t.addrConst = int(sym)
			t.addrConstKnow = true
			return
		}
		t.addrConstKnow = false
		t.addr.Store(f.ConvertTrunc(f.Extract(src(0), 0), reactor.Int))

	case ir.OpAdd:
		t.store(inst.Dst, f.Add(src(0), src(1)))
	case ir.OpSub:
		t.store(inst.Dst, f.Sub(src(0), src(1)))
	case ir.OpMul:
		t.store(inst.Dst, f.Mul(src(0), src(1)))
	case ir.OpMad:
		t.store(inst.Dst, f.MulAdd(src(0), src(1), src(2)))
	case ir.OpDiv:
		t.store(inst.Dst, f.Div(src(0), src(1)))
	case ir.OpMod:
		a, b := src(0), src(1)
		// a - b*floor(a/b)
		t.store(inst.Dst, f.Sub(a, f.Mul(b, f.Floor(f.Div(a, b)))))
	case ir.OpNeg:
		t.store(inst.Dst, f.Neg(src(0)))
	case ir.OpAbs:
		t.store(inst.Dst, f.Abs(src(0)))
	case ir.OpSign:
		a := src(0)
		zero := f.ConstFloat(reactor.Float4, 0)
		one := f.ConstFloat(reactor.Float4, 1)
		negOne := f.ConstFloat(reactor.Float4, -1)
		pos := f.Select(f.CmpGT(a, zero), one, zero)
		neg := f.Select(f.CmpLT(a, zero), negOne, zero)
		t.store(inst.Dst, f.Add(pos, neg))
	case ir.OpRcp:
		t.store(inst.Dst, f.Rcp(src(0)))
	case ir.OpRsq:
		t.store(inst.Dst, f.RcpSqrt(f.Abs(src(0))))
	case ir.OpSqrt:
		t.store(inst.Dst, f.Sqrt(src(0)))
	case ir.OpMin:
		t.store(inst.Dst, f.Min(src(0), src(1)))
	case ir.OpMax:
		t.store(inst.Dst, f.Max(src(0), src(1)))
	case ir.OpFrc:
		t.store(inst.Dst, f.Frac(src(0)))
	case ir.OpFloor:
		t.store(inst.Dst, f.Floor(src(0)))
	case ir.OpCeil:
		t.store(inst.Dst, f.Ceil(src(0)))
	case ir.OpTrunc:
		t.store(inst.Dst, f.Trunc(src(0)))
	case ir.OpRound:
		t.store(inst.Dst, f.Round(src(0)))
	case ir.OpExp2:
		t.store(inst.Dst, perLane(src(0), "exp2f"))
	case ir.OpLog2:
		t.store(inst.Dst, perLane(src(0), "log2f"))
	case ir.OpExp:
		t.store(inst.Dst, perLane(src(0), "expf"))
	case ir.OpLog:
		t.store(inst.Dst, perLane(src(0), "logf"))
	case ir.OpPow:
		t.store(inst.Dst, perLane2(src(0), src(1), "powf"))
	case ir.OpSin:
		t.store(inst.Dst, perLane(src(0), "sinf"))
	case ir.OpCos:
		t.store(inst.Dst, perLane(src(0), "cosf"))
	case ir.OpTan:
		t.store(inst.Dst, perLane(src(0), "tanf"))
	case ir.OpAsin:
		t.store(inst.Dst, perLane(src(0), "asinf"))
	case ir.OpAcos:
		t.store(inst.Dst, perLane(src(0), "acosf"))
	case ir.OpAtan:
		t.store(inst.Dst, perLane(src(0), "atanf"))
	case ir.OpAtan2:
		t.store(inst.Dst, perLane2(src(0), src(1), "atan2f"))

	case ir.OpDp2:
		t.store(inst.Dst, dp(src(0), src(1), 2))
	case ir.OpDp3:
		t.store(inst.Dst, dp(src(0), src(1), 3))
	case ir.OpDp4:
		t.store(inst.Dst, dp(src(0), src(1), 4))
	case ir.OpCross:
		a, b := src(0), src(1)
		ayzx := f.Swizzle(a, reactor.PackSwizzle(1, 2, 0, 3))
		azxy := f.Swizzle(a, reactor.PackSwizzle(2, 0, 1, 3))
		byzx := f.Swizzle(b, reactor.PackSwizzle(1, 2, 0, 3))
		bzxy := f.Swizzle(b, reactor.PackSwizzle(2, 0, 1, 3))
		t.store(inst.Dst, f.Sub(f.Mul(ayzx, bzxy), f.Mul(azxy, byzx)))

	case ir.OpEq:
		t.store(inst.Dst, truth(f.CmpEQ(src(0), src(1))))
	case ir.OpNe:
		t.store(inst.Dst, truth(f.CmpNE(src(0), src(1))))
	case ir.OpLt:
		t.store(inst.Dst, truth(f.CmpLT(src(0), src(1))))
	case ir.OpLe:
		t.store(inst.Dst, truth(f.CmpLE(src(0), src(1))))
	case ir.OpGt:
		t.store(inst.Dst, truth(f.CmpGT(src(0), src(1))))
	case ir.OpGe:
		t.store(inst.Dst, truth(f.CmpGE(src(0), src(1))))

	case ir.OpAnd:
		zero := f.ConstFloat(reactor.Float4, 0)
		both := f.And(f.CmpNE(src(0), zero), f.CmpNE(src(1), zero))
		t.store(inst.Dst, truth(both))
	case ir.OpOr:
		zero := f.ConstFloat(reactor.Float4, 0)
		either := f.Or(f.CmpNE(src(0), zero), f.CmpNE(src(1), zero))
		t.store(inst.Dst, truth(either))
	case ir.OpXor:
		zero := f.ConstFloat(reactor.Float4, 0)
		diff := f.Xor(f.CmpNE(src(0), zero), f.CmpNE(src(1), zero))
		t.store(inst.Dst, truth(diff))
	case ir.OpNot:
		zero := f.ConstFloat(reactor.Float4, 0)
		t.store(inst.Dst, truth(f.CmpEQ(src(0), zero)))
	case ir.OpSelect:
		cond := f.CmpNE(src(0), f.ConstFloat(reactor.Float4, 0))
		t.store(inst.Dst, f.Select(cond, src(1), src(2)))

	case ir.OpIAdd:
		t.store(inst.Dst, intOp(src(0), src(1), f.Add))
	case ir.OpISub:
		t.store(inst.Dst, intOp(src(0), src(1), f.Sub))
	case ir.OpIMul:
		t.store(inst.Dst, intOp(src(0), src(1), f.Mul))
	case ir.OpIDiv:
		t.store(inst.Dst, intOp(src(0), src(1), f.Div))
	case ir.OpIMod:
		t.store(inst.Dst, intOp(src(0), src(1), f.Mod))
	case ir.OpIMin:
		t.store(inst.Dst, f.Min(src(0), src(1)))
	case ir.OpIMax:
		t.store(inst.Dst, f.Max(src(0), src(1)))
	case ir.OpIAbs:
		t.store(inst.Dst, f.Abs(src(0)))
	case ir.OpINeg:
		t.store(inst.Dst, f.Neg(src(0)))
	case ir.OpIAnd:
		t.store(inst.Dst, intOp(src(0), src(1), f.And))
	case ir.OpIOr:
		t.store(inst.Dst, intOp(src(0), src(1), f.Or))
	case ir.OpIXor:
		t.store(inst.Dst, intOp(src(0), src(1), f.Xor))
	case ir.OpShl:
		t.store(inst.Dst, intOp(src(0), src(1), func(x, y reactor.Value) reactor.Value {
			return f.Shl(x, f.Extract(y, 0))
		}))
	case ir.OpShr:
		t.store(inst.Dst, intOp(src(0), src(1), func(x, y reactor.Value) reactor.Value {
			return f.Shr(x, f.Extract(y, 0))
		}))

	case ir.OpFloatToInt:
		t.store(inst.Dst, f.Convert(f.ConvertTrunc(src(0), reactor.Int4), reactor.Float4))
	case ir.OpIntToFloat:
		// Registers hold floats already; the conversion truncates any
		// fraction introduced upstream.
		t.store(inst.Dst, f.Trunc(src(0)))
	case ir.OpFloatToBool:
		t.store(inst.Dst, truth(f.CmpNE(src(0), f.ConstFloat(reactor.Float4, 0))))
	case ir.OpBoolToFloat:
		t.store(inst.Dst, src(0))

	case ir.OpTex, ir.OpTexBias:
		t.emitSample(inst, src(0), reactor.Value{})
	case ir.OpTexLod:
		t.emitSample(inst, src(0), src(2))
	case ir.OpTexSize:
		t.emitTexSize(inst)

	default:
		t.fail("unhandled opcode %s", inst.Op)
	}
}

// knownTempValue resolves a source that reads a temp register whose
// value is a known constant (an unrolled loop index).
func (t *translator) knownTempValue(src ir.Source) (float32, bool) {
	if src.Bank != ir.BankTemp || src.Relative {
		return 0, false
	}
	v, ok := t.knownTemps[src.Index]
	return v, ok
}

// samplerIndex resolves the sampler register of a sampling
// instruction to a static unit index.
func (t *translator) samplerIndex(src ir.Source) (int, bool) {
	idx := src.Index
	if src.Relative {
		if !t.addrConstKnow {
			return 0, false
		}
		idx += t.addrConst
	}
	return idx, idx >= 0 && idx < MaxSamplers
}

// emitSample emits a texture fetch: wrap, address, load RGBA8,
// normalize.
func (t *translator) emitSample(inst *ir.Instruction, coord, lod reactor.Value) {
	f := t.f
	unit, ok := t.samplerIndex(inst.Src[1])
	if !ok {
		t.fail("sampler index is not static")
		return
	}

	samplerPtr := f.AddPtr(t.bind.drawData(), f.ConstInt(reactor.Int, int64(drawSamplersOff+unit*samplerSize)))
	data := f.Load(samplerPtr, reactor.Pointer)
	width := f.Load(f.AddPtr(samplerPtr, f.ConstInt(reactor.Int, 8)), reactor.Int)
	height := f.Load(f.AddPtr(samplerPtr, f.ConstInt(reactor.Int, 12)), reactor.Int)
	wrapS := f.Load(f.AddPtr(samplerPtr, f.ConstInt(reactor.Int, 16)), reactor.Int)
	wrapT := f.Load(f.AddPtr(samplerPtr, f.ConstInt(reactor.Int, 20)), reactor.Int)

	u := f.Extract(coord, 0)
	v := f.Extract(coord, 1)

	wrap := func(c reactor.Value, mode reactor.Value) reactor.Value {
		repeat := f.Sub(c, f.CallExternal("floorf", reactor.Float, c))
		clamped := f.Min(f.Max(c, f.ConstFloat(reactor.Float, 0)), f.ConstFloat(reactor.Float, 1))
		isClamp := f.CmpEQ(mode, f.ConstInt(reactor.Int, 1))
		return f.Select(isClamp, clamped, repeat)
	}
	u = wrap(u, wrapS)
	v = wrap(v, wrapT)

	wf := f.Convert(width, reactor.Float)
	hf := f.Convert(height, reactor.Float)
	maxX := f.Sub(width, f.ConstInt(reactor.Int, 1))
	maxY := f.Sub(height, f.ConstInt(reactor.Int, 1))

	fetch := func(tx, ty reactor.Value) reactor.Value {
		tx = f.Min(f.Max(tx, f.ConstInt(reactor.Int, 0)), maxX)
		ty = f.Min(f.Max(ty, f.ConstInt(reactor.Int, 0)), maxY)
		texel := f.Add(f.Mul(ty, width), tx)
		addr := f.GEP(data, texel, 4)
		// Load the four channels individually to stay alignment-safe.
		var channels [4]reactor.Value
		for c := 0; c < 4; c++ {
			b := f.Load(f.AddPtr(addr, f.ConstInt(reactor.Int, int64(c))), reactor.Byte)
			channels[c] = f.Div(f.Convert(b, reactor.Float), f.ConstFloat(reactor.Float, 255))
		}
		out := f.ConstFloat(reactor.Float4, 0)
		for c := 0; c < 4; c++ {
			out = f.Insert(out, channels[c], c)
		}
		return out
	}

	x := f.Mul(u, wf)
	y := f.Mul(v, hf)
	txf := f.CallExternal("floorf", reactor.Float, x)
	tyf := f.CallExternal("floorf", reactor.Float, y)
	tx := f.ConvertTrunc(txf, reactor.Int)
	ty := f.ConvertTrunc(tyf, reactor.Int)

	// Nearest sampling; LOD selection beyond the base level is not
	// carried by SamplerData, so explicit LOD clamps to level zero.
	_ = lod
	result := fetch(tx, ty)
	t.store(inst.Dst, result)
}

// emitTexSize writes the sampler dimensions.
func (t *translator) emitTexSize(inst *ir.Instruction) {
	f := t.f
	unit, ok := t.samplerIndex(inst.Src[1])
	if !ok {
		t.fail("sampler index is not static")
		return
	}
	samplerPtr := f.AddPtr(t.bind.drawData(), f.ConstInt(reactor.Int, int64(drawSamplersOff+unit*samplerSize)))
	width := f.Load(f.AddPtr(samplerPtr, f.ConstInt(reactor.Int, 8)), reactor.Int)
	height := f.Load(f.AddPtr(samplerPtr, f.ConstInt(reactor.Int, 12)), reactor.Int)
	out := f.ConstFloat(reactor.Float4, 0)
	out = f.Insert(out, f.Convert(width, reactor.Float), 0)
	out = f.Insert(out, f.Convert(height, reactor.Float), 1)
	t.store(inst.Dst, out)
}
