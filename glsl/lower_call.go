package glsl

import (
	"math"

	"github.com/gogpu/swgl/ir"
)

// lowerConstructor assembles a constructed value from its arguments.
func (l *Lowerer) lowerConstructor(n *CallExpr) *operand {
	// Constant constructors become constant registers outright.
	if values, ok := l.foldLower(n); ok {
		return l.constOperand(values, n.Type())
	}

	typ := n.Type()
	switch {
	case typ.IsStruct(), typ.IsArray():
		return l.lowerAggregateConstructor(n)
	case typ.IsMatrix():
		return l.lowerMatrixConstructor(n)
	default:
		return l.lowerVectorConstructor(n)
	}
}

// convertComponents emits a type conversion when the component basic
// types differ.
func (l *Lowerer) convertComponents(src *operand, from, to BasicType, size int) *operand {
	var op ir.Opcode
	switch {
	case from == to:
		return src
	case from.IsInteger() && to == TFloat:
		op = ir.OpIntToFloat
	case from == TFloat && to.IsInteger():
		op = ir.OpFloatToInt
	case from == TBool && to == TFloat:
		op = ir.OpBoolToFloat
	case from == TFloat && to == TBool:
		op = ir.OpFloatToBool
	case from == TBool && to.IsInteger():
		op = ir.OpBoolToFloat
	case from.IsInteger() && to == TBool:
		op = ir.OpFloatToBool
	case from.IsInteger() && to.IsInteger():
		return src
	default:
		return src
	}
	dst := l.tempDest(1)
	dst.Mask = maskFor(size)
	l.emit(ir.Instruction{Op: op, Dst: dst, Src: [4]ir.Source{src.src}})
	l.release(src)
	out := l.tempOperand(dst, src.typ)
	return out
}

func (l *Lowerer) lowerVectorConstructor(n *CallExpr) *operand {
	typ := n.Type()
	dst := l.tempDest(1)
	dst.Mask = maskFor(typ.Size)

	// Single scalar argument splats (vectors) or converts (scalars).
	if len(n.Args) == 1 && n.Args[0].Type().IsScalar() {
		arg := l.lowerExpr(n.Args[0])
		if arg == nil {
			return nil
		}
		arg = l.convertComponents(arg, n.Args[0].Type().Basic, typ.Basic, 1)
		s := arg.src
		lane := s.Swizzle.Lane(0)
		s.Swizzle = ir.PackSwizzle(lane, lane, lane, lane)
		l.emit(ir.Instruction{Op: ir.OpMov, Dst: dst, Src: [4]ir.Source{s}})
		l.release(arg)
		return l.tempOperand(dst, typ)
	}

	// Gather components across the arguments.
	filled := 0
	for _, argExpr := range n.Args {
		if filled >= typ.Size {
			break
		}
		arg := l.lowerExpr(argExpr)
		if arg == nil {
			return nil
		}
		arg = l.convertComponents(arg, argExpr.Type().Basic, typ.Basic, argExpr.Type().Size)

		take := argExpr.Type().Components()
		if take > typ.Size-filled {
			take = typ.Size - filled
		}
		// Place arg components [0,take) at dest lanes
		// [filled, filled+take).
		var mask ir.WriteMask
		sel := [4]int{0, 1, 2, 3}
		for i := 0; i < take; i++ {
			destLane := filled + i
			mask |= 1 << uint(destLane)
			sel[destLane] = arg.src.Swizzle.Lane(i)
		}
		s := arg.src
		s.Swizzle = ir.PackSwizzle(sel[0], sel[1], sel[2], sel[3])
		d := dst
		d.Mask = mask
		l.emit(ir.Instruction{Op: ir.OpMov, Dst: d, Src: [4]ir.Source{s}})
		l.release(arg)
		filled += take
	}
	return l.tempOperand(dst, typ)
}

func (l *Lowerer) lowerMatrixConstructor(n *CallExpr) *operand {
	typ := n.Type()
	count := typ.Registers()
	dst := l.tempDest(count)

	emitColumnMov := func(col int, mask ir.WriteMask, src ir.Source) {
		d := dst
		d.Index += col
		d.Mask = mask
		l.emit(ir.Instruction{Op: ir.OpMov, Dst: d, Src: [4]ir.Source{src}})
	}

	zero := l.program.AddConstant([4]float32{0, 0, 0, 0})
	zeroSrc := ir.Source{Register: ir.Register{Bank: ir.BankConstant, Index: zero}, Swizzle: ir.SwizzleIdentity}

	switch {
	case len(n.Args) == 1 && n.Args[0].Type().IsScalar():
		// Diagonal matrix.
		arg := l.lowerExpr(n.Args[0])
		if arg == nil {
			return nil
		}
		lane := arg.src.Swizzle.Lane(0)
		splat := arg.src
		splat.Swizzle = ir.PackSwizzle(lane, lane, lane, lane)
		for c := 0; c < typ.Cols; c++ {
			emitColumnMov(c, maskFor(typ.Size), zeroSrc)
			emitColumnMov(c, 1<<uint(c), splat)
		}
		l.release(arg)

	case len(n.Args) == 1 && n.Args[0].Type().IsMatrix():
		// Matrix resize: copy the overlap, identity elsewhere.
		src := l.lowerExpr(n.Args[0])
		if src == nil {
			return nil
		}
		from := n.Args[0].Type()
		one := l.program.AddConstant([4]float32{1, 1, 1, 1})
		oneSrc := ir.Source{Register: ir.Register{Bank: ir.BankConstant, Index: one}, Swizzle: ir.SwizzleIdentity}
		for c := 0; c < typ.Cols; c++ {
			emitColumnMov(c, maskFor(typ.Size), zeroSrc)
			if c < from.Cols {
				s := src.src
				s.Index += c
				copyMask := maskFor(minInt(typ.Size, from.Size))
				emitColumnMov(c, copyMask, s)
			}
			if c < typ.Size && c >= from.Cols || (c < typ.Size && c >= from.Size) {
				emitColumnMov(c, 1<<uint(c), oneSrc)
			}
		}
		l.release(src)

	default:
		// Column-major fill from flattened components.
		filled := 0
		for _, argExpr := range n.Args {
			arg := l.lowerExpr(argExpr)
			if arg == nil {
				return nil
			}
			take := argExpr.Type().Components()
			for i := 0; i < take && filled < typ.Components(); i++ {
				col := filled / typ.Size
				row := filled % typ.Size
				s := arg.src
				lane := s.Swizzle.Lane(i)
				s.Swizzle = ir.PackSwizzle(lane, lane, lane, lane)
				emitColumnMov(col, 1<<uint(row), s)
				filled++
			}
			l.release(arg)
		}
	}

	out := l.tempOperand(dst, typ)
	out.count = count
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (l *Lowerer) lowerAggregateConstructor(n *CallExpr) *operand {
	typ := n.Type()
	count := typ.Registers()
	dst := l.tempDest(count)

	offset := 0
	for _, argExpr := range n.Args {
		arg := l.lowerExpr(argExpr)
		if arg == nil {
			return nil
		}
		span := argExpr.Type().Registers()
		for r := 0; r < span; r++ {
			d := dst
			d.Index += offset + r
			d.Mask = ir.MaskXYZW
			s := arg.src
			s.Index += r
			l.emit(ir.Instruction{Op: ir.OpMov, Dst: d, Src: [4]ir.Source{s}})
		}
		l.release(arg)
		offset += span
	}

	out := l.tempOperand(dst, typ)
	out.count = count
	return out
}

// lowerUserCall copies arguments into the callee frame, emits the
// call, and copies out/inout results back.
func (l *Lowerer) lowerUserCall(n *CallExpr) *operand {
	sig := n.Signature
	label, ok := l.functionLabels[sig.Mangled()]
	if !ok {
		l.errorAt(n.Loc(), n.Name, "call to undefined function")
		return nil
	}

	// Copy in and inout arguments into parameter registers.
	for i := range sig.Params {
		param := &sig.Params[i]
		loc, hasLoc := l.locations[param.ID]
		if !hasLoc {
			continue
		}
		if q := param.Type.Qualifier; q == QualOut {
			continue
		}
		l.lowerAssignTo(loc, n.Args[i])
	}

	l.emit(ir.Instruction{Op: ir.OpCall, Label: label})

	// Copy out and inout parameters back to the argument lvalues.
	for i := range sig.Params {
		param := &sig.Params[i]
		q := param.Type.Qualifier
		if q != QualOut && q != QualInOut {
			continue
		}
		loc, hasLoc := l.locations[param.ID]
		if !hasLoc {
			continue
		}
		lv, lvOK := l.lowerLValue(n.Args[i])
		if !lvOK {
			continue
		}
		src := &operand{
			src:   ir.Source{Register: ir.Register{Bank: loc.bank, Index: loc.base}, Swizzle: scalarSwizzle(param.Type.Size)},
			typ:   param.Type,
			count: loc.count,
		}
		l.storeLValue(lv, src)
	}

	if sig.ReturnType.Basic == TVoid {
		return &operand{src: ir.Source{}, typ: sig.ReturnType, count: 0}
	}

	// Copy the return register immediately so nested calls to the
	// same function cannot clobber it.
	ret := l.returnRegs[sig.Mangled()]
	count := sig.ReturnType.Registers()
	dst := l.tempDest(count)
	for r := 0; r < count; r++ {
		d := dst
		d.Index += r
		s := ir.Source{Register: ir.Register{Bank: ret.bank, Index: ret.base + r}, Swizzle: ir.SwizzleIdentity}
		l.emit(ir.Instruction{Op: ir.OpMov, Dst: d, Src: [4]ir.Source{s}})
	}
	out := l.tempOperand(dst, sig.ReturnType)
	out.count = count
	return out
}

// samplerSource resolves the sampler argument of a texture builtin.
func (l *Lowerer) samplerSource(e Expr) (ir.Source, bool) {
	switch n := e.(type) {
	case *SymbolExpr:
		loc, ok := l.locations[n.ID]
		if !ok {
			return ir.Source{}, false
		}
		return ir.Source{Register: ir.Register{Bank: ir.BankSampler, Index: loc.base}}, true
	case *IndexExpr:
		base, ok := l.samplerSource(n.Base)
		if !ok {
			return ir.Source{}, false
		}
		if n.IsConst {
			base.Index += n.ConstIndex
			return base, true
		}
		idx := l.lowerExpr(n.Index)
		if idx == nil {
			return ir.Source{}, false
		}
		l.emit(ir.Instruction{
			Op:  ir.OpMovAddr,
			Dst: ir.Dest{Register: ir.Register{Bank: ir.BankAddress, Index: 0}, Mask: 0x1},
			Src: [4]ir.Source{idx.src},
		})
		l.release(idx)
		base.Relative = true
		return base, true
	}
	return ir.Source{}, false
}

func (l *Lowerer) lowerBuiltin(n *CallExpr) *operand {
	id := n.Builtin.ID
	if id.IsSamplingBuiltin() {
		return l.lowerTextureBuiltin(n)
	}

	// Unary opcode builtins.
	if opcode, ok := map[BuiltinID]ir.Opcode{
		BuiltinSin: ir.OpSin, BuiltinCos: ir.OpCos, BuiltinTan: ir.OpTan,
		BuiltinAsin: ir.OpAsin, BuiltinAcos: ir.OpAcos, BuiltinAtan: ir.OpAtan,
		BuiltinExp: ir.OpExp, BuiltinLog: ir.OpLog,
		BuiltinExp2: ir.OpExp2, BuiltinLog2: ir.OpLog2,
		BuiltinSqrt: ir.OpSqrt, BuiltinInverseSqrt: ir.OpRsq,
		BuiltinAbs: ir.OpAbs, BuiltinSign: ir.OpSign,
		BuiltinFloor: ir.OpFloor, BuiltinCeil: ir.OpCeil,
		BuiltinTrunc: ir.OpTrunc, BuiltinRound: ir.OpRound,
		BuiltinFract: ir.OpFrc, BuiltinNot: ir.OpNot,
	}[id]; ok {
		return l.emitSimpleBuiltin(n, opcode, 1)
	}

	// Binary opcode builtins.
	if opcode, ok := map[BuiltinID]ir.Opcode{
		BuiltinAtan2: ir.OpAtan2, BuiltinPow: ir.OpPow,
		BuiltinMod: ir.OpMod, BuiltinMin: ir.OpMin, BuiltinMax: ir.OpMax,
		BuiltinCross: ir.OpCross,
		BuiltinLessThan: ir.OpLt, BuiltinLessThanEqual: ir.OpLe,
		BuiltinGreaterThan: ir.OpGt, BuiltinGreaterThanEqual: ir.OpGe,
		BuiltinEqual: ir.OpEq, BuiltinNotEqual: ir.OpNe,
	}[id]; ok {
		return l.emitSimpleBuiltin(n, opcode, 2)
	}

	return l.lowerCompositeBuiltin(n)
}

// emitSimpleBuiltin lowers a builtin that maps to one opcode.
func (l *Lowerer) emitSimpleBuiltin(n *CallExpr, opcode ir.Opcode, arity int) *operand {
	var srcs [4]ir.Source
	var ops []*operand
	for i := 0; i < arity && i < len(n.Args); i++ {
		op := l.lowerExpr(n.Args[i])
		if op == nil {
			return nil
		}
		srcs[i] = op.src
		ops = append(ops, op)
	}
	dst := l.tempDest(1)
	dst.Mask = maskFor(n.Type().Size)
	l.emit(ir.Instruction{Op: opcode, Dst: dst, Src: srcs})
	for _, op := range ops {
		l.release(op)
	}
	return l.tempOperand(dst, n.Type())
}

// lowerCompositeBuiltin expands builtins that lower to short opcode
// sequences.
func (l *Lowerer) lowerCompositeBuiltin(n *CallExpr) *operand {
	typ := n.Type()
	constSrc := func(v float32) ir.Source {
		reg := l.program.AddConstant([4]float32{v, v, v, v})
		return ir.Source{Register: ir.Register{Bank: ir.BankConstant, Index: reg}, Swizzle: ir.SwizzleIdentity}
	}
	args := make([]*operand, len(n.Args))
	for i, a := range n.Args {
		args[i] = l.lowerExpr(a)
		if args[i] == nil {
			return nil
		}
	}
	defer func() {
		for _, a := range args {
			l.release(a)
		}
	}()

	dst := l.tempDest(1)
	dst.Mask = maskFor(typ.Size)
	emit := func(op ir.Opcode, d ir.Dest, srcs ...ir.Source) {
		var s [4]ir.Source
		copy(s[:], srcs)
		l.emit(ir.Instruction{Op: op, Dst: d, Src: s})
	}
	scratch := func() ir.Dest {
		d := l.tempDest(1)
		d.Mask = maskFor(typ.Size)
		return d
	}

	switch n.Builtin.ID {
	case BuiltinRadians:
		emit(ir.OpMul, dst, args[0].src, constSrc(float32(math.Pi/180)))
	case BuiltinDegrees:
		emit(ir.OpMul, dst, args[0].src, constSrc(float32(180/math.Pi)))
	case BuiltinClamp:
		emit(ir.OpMax, dst, args[0].src, args[1].src)
		emit(ir.OpMin, dst, l.destAsSource(dst), args[2].src)
	case BuiltinMix:
		// x + (y - x) * a
		t := scratch()
		emit(ir.OpSub, t, args[1].src, args[0].src)
		emit(ir.OpMad, dst, l.destAsSource(t), args[2].src, args[0].src)
		l.freeTemp(t.Index, 1)
	case BuiltinStep:
		// step(edge, x) = x >= edge ? 1 : 0
		emit(ir.OpGe, dst, args[1].src, args[0].src)
	case BuiltinSmoothstep:
		// t = clamp((x-e0)/(e1-e0), 0, 1); t²(3-2t)
		t := scratch()
		span := scratch()
		emit(ir.OpSub, t, args[2].src, args[0].src)
		emit(ir.OpSub, span, args[1].src, args[0].src)
		emit(ir.OpDiv, t, l.destAsSource(t), l.destAsSource(span))
		emit(ir.OpMax, t, l.destAsSource(t), constSrc(0))
		emit(ir.OpMin, t, l.destAsSource(t), constSrc(1))
		// 3 - 2t
		emit(ir.OpMad, span, l.destAsSource(t), constSrc(-2), constSrc(3))
		emit(ir.OpMul, t, l.destAsSource(t), l.destAsSource(t))
		emit(ir.OpMul, dst, l.destAsSource(t), l.destAsSource(span))
		l.freeTemp(t.Index, 1)
		l.freeTemp(span.Index, 1)
	case BuiltinLength, BuiltinDistance:
		v := args[0].src
		if n.Builtin.ID == BuiltinDistance {
			t := scratch()
			emit(ir.OpSub, t, args[0].src, args[1].src)
			v = l.destAsSource(t)
		}
		size := n.Args[0].Type().Size
		emit(dpOpcode(size), dst, v, v)
		emit(ir.OpSqrt, dst, l.destAsSource(dst))
	case BuiltinDot:
		emit(dpOpcode(n.Args[0].Type().Size), dst, args[0].src, args[1].src)
	case BuiltinNormalize:
		size := n.Args[0].Type().Size
		t := scratch()
		emit(dpOpcode(size), t, args[0].src, args[0].src)
		emit(ir.OpRsq, t, l.destAsSource(t))
		emit(ir.OpMul, dst, args[0].src, l.destAsSource(t))
		l.freeTemp(t.Index, 1)
	case BuiltinFaceforward:
		// dot(Nref, I) < 0 ? N : -N
		size := n.Args[0].Type().Size
		d := scratch()
		emit(dpOpcode(size), d, args[2].src, args[1].src)
		cond := scratch()
		emit(ir.OpLt, cond, l.destAsSource(d), constSrc(0))
		neg := args[0].src
		neg.Negate = !neg.Negate
		emit(ir.OpSelect, dst, l.destAsSource(cond), args[0].src, neg)
		l.freeTemp(d.Index, 1)
		l.freeTemp(cond.Index, 1)
	case BuiltinReflect:
		// I - 2·dot(N, I)·N
		size := n.Args[0].Type().Size
		d := scratch()
		emit(dpOpcode(size), d, args[1].src, args[0].src)
		emit(ir.OpMul, d, l.destAsSource(d), constSrc(2))
		nNeg := args[1].src
		nNeg.Negate = !nNeg.Negate
		emit(ir.OpMad, dst, nNeg, l.destAsSource(d), args[0].src)
		l.freeTemp(d.Index, 1)
	case BuiltinRefract:
		// k = 1 - η²(1 - dot(N,I)²); k < 0 ? 0 : η·I - (η·dot(N,I) + √k)·N
		size := n.Args[0].Type().Size
		d := scratch()
		emit(dpOpcode(size), d, args[1].src, args[0].src)
		d2 := scratch()
		emit(ir.OpMul, d2, l.destAsSource(d), l.destAsSource(d))
		k := scratch()
		emit(ir.OpSub, k, constSrc(1), l.destAsSource(d2))
		eta2 := scratch()
		emit(ir.OpMul, eta2, args[2].src, args[2].src)
		emit(ir.OpMad, k, l.destAsSource(eta2), ir.Source{Register: k.Register, Swizzle: ir.SwizzleIdentity, Negate: true}, constSrc(1))
		// t = η·d + √k
		sq := scratch()
		emit(ir.OpSqrt, sq, l.destAsSource(k))
		t := scratch()
		emit(ir.OpMad, t, args[2].src, l.destAsSource(d), l.destAsSource(sq))
		// r = η·I - t·N
		r := scratch()
		nNeg := args[1].src
		nNeg.Negate = !nNeg.Negate
		emit(ir.OpMul, r, args[0].src, args[2].src)
		emit(ir.OpMad, r, nNeg, l.destAsSource(t), l.destAsSource(r))
		cond := scratch()
		emit(ir.OpLt, cond, l.destAsSource(k), constSrc(0))
		emit(ir.OpSelect, dst, l.destAsSource(cond), constSrc(0), l.destAsSource(r))
		for _, s := range []ir.Dest{d, d2, k, eta2, sq, t, r, cond} {
			l.freeTemp(s.Index, 1)
		}
	case BuiltinMatrixCompMult:
		count := typ.Registers()
		l.freeTemp(dst.Index, 1)
		wide := l.tempDest(count)
		for r := 0; r < count; r++ {
			d := wide
			d.Index += r
			a, b := args[0].src, args[1].src
			a.Index += r
			b.Index += r
			emit(ir.OpMul, d, a, b)
		}
		out := l.tempOperand(wide, typ)
		out.count = count
		return out
	case BuiltinAny, BuiltinAll:
		size := n.Args[0].Type().Size
		emit(dpOpcode(size), dst, args[0].src, constSrc(1))
		if n.Builtin.ID == BuiltinAny {
			emit(ir.OpGe, dst, l.destAsSource(dst), constSrc(0.5))
		} else {
			emit(ir.OpGe, dst, l.destAsSource(dst), constSrc(float32(size)-0.5))
		}
	default:
		l.errorAt(n.Loc(), n.Name, "internal: unhandled builtin")
		l.freeTemp(dst.Index, 1)
		return nil
	}
	return l.tempOperand(dst, typ)
}

func (l *Lowerer) lowerTextureBuiltin(n *CallExpr) *operand {
	sampler, ok := l.samplerSource(n.Args[0])
	if !ok {
		l.errorAt(n.Loc(), n.Name, "invalid sampler argument")
		return nil
	}
	coord := l.lowerExpr(n.Args[1])
	if coord == nil {
		return nil
	}

	id := n.Builtin.ID
	proj := id == BuiltinTexture2DProj || id == BuiltinTextureProj
	lod := id == BuiltinTexture2DLod || id == BuiltinTextureCubeLod || id == BuiltinTextureLod
	bias := len(n.Args) == 3 && !lod

	if proj {
		// Divide the coordinate by its last component.
		q := n.Args[1].Type().Size - 1
		w := coord.src
		lane := w.Swizzle.Lane(q)
		w.Swizzle = ir.PackSwizzle(lane, lane, lane, lane)
		rcp := l.tempDest(1)
		l.emit(ir.Instruction{Op: ir.OpRcp, Dst: rcp, Src: [4]ir.Source{w}})
		divided := l.tempDest(1)
		l.emit(ir.Instruction{Op: ir.OpMul, Dst: divided, Src: [4]ir.Source{coord.src, l.destAsSource(rcp)}})
		l.freeTemp(rcp.Index, 1)
		l.release(coord)
		coord = l.tempOperand(divided, n.Args[1].Type())
	}

	dst := l.tempDest(1)
	inst := ir.Instruction{Op: ir.OpTex, Dst: dst}
	inst.Src[0] = coord.src
	inst.Src[1] = sampler
	switch {
	case lod:
		inst.Op = ir.OpTexLod
		extra := l.lowerExpr(n.Args[2])
		if extra == nil {
			return nil
		}
		inst.Src[2] = extra.src
		l.release(extra)
	case bias:
		inst.Op = ir.OpTexBias
		extra := l.lowerExpr(n.Args[2])
		if extra == nil {
			return nil
		}
		inst.Src[2] = extra.src
		l.release(extra)
	}
	l.emit(inst)
	l.release(coord)
	return l.tempOperand(dst, n.Type())
}
