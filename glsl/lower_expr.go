package glsl

import (
	"github.com/gogpu/swgl/ir"
)

// operand is the result of lowering an expression: a source reference
// (register plus swizzle) for single-register values, or a base
// register spanning count registers for matrices, arrays, and
// structs.
type operand struct {
	src   ir.Source
	typ   *Type
	count int
	temp  bool
}

func (l *Lowerer) release(op *operand) {
	if op != nil && op.temp {
		l.freeTemp(op.src.Index, op.count)
	}
}

// tempDest allocates a temp register destination with a full mask.
func (l *Lowerer) tempDest(count int) ir.Dest {
	return ir.Dest{
		Register: ir.Register{Bank: ir.BankTemp, Index: l.allocTemp(count)},
		Mask:     ir.MaskXYZW,
	}
}

func (l *Lowerer) destAsSource(d ir.Dest) ir.Source {
	return ir.Source{Register: d.Register, Swizzle: ir.SwizzleIdentity}
}

// maskFor returns the write mask covering the first size lanes.
func maskFor(size int) ir.WriteMask {
	return ir.WriteMask(1<<uint(size) - 1)
}

// scalarSwizzle returns a swizzle replicating lane 0 when the value is
// scalar, identity otherwise.
func scalarSwizzle(size int) ir.Swizzle {
	if size == 1 {
		return ir.PackSwizzle(0, 0, 0, 0)
	}
	return ir.SwizzleIdentity
}

// tempOperand wraps a freshly written temp register.
func (l *Lowerer) tempOperand(d ir.Dest, typ *Type) *operand {
	return &operand{
		src:   ir.Source{Register: d.Register, Swizzle: scalarSwizzle(typ.Size)},
		typ:   typ,
		count: 1,
		temp:  true,
	}
}

// foldLower structurally folds constant expressions at lower time.
// The parser has already propagated const symbols to literals.
func (l *Lowerer) foldLower(e Expr) ([]Scalar, bool) {
	switch n := e.(type) {
	case *LiteralExpr:
		return n.Values, true
	case *UnaryExpr:
		if v, ok := l.foldLower(n.Operand); ok && n.Op == OpNegate {
			out := make([]Scalar, len(v))
			for i, s := range v {
				if s.Kind == TFloat {
					out[i] = FloatScalar(-s.F)
				} else {
					out[i] = Scalar{Kind: s.Kind, I: -s.I}
				}
			}
			return out, true
		}
	case *CallExpr:
		if n.Constructor {
			var flat []Scalar
			for _, a := range n.Args {
				v, ok := l.foldLower(a)
				if !ok {
					return nil, false
				}
				flat = append(flat, v...)
			}
			if len(flat) == 1 && n.Type().Components() > 1 {
				splat := make([]Scalar, n.Type().Components())
				for i := range splat {
					splat[i] = flat[0]
				}
				return splat, true
			}
			if len(flat) >= n.Type().Components() {
				return flat[:n.Type().Components()], true
			}
		}
	}
	return nil, false
}

// constOperand materializes a constant value. Single-register values
// live in the constant bank; wider values are copied into temps.
func (l *Lowerer) constOperand(values []Scalar, typ *Type) *operand {
	if typ.Registers() == 1 {
		var c [4]float32
		for i := 0; i < len(values) && i < 4; i++ {
			c[i] = values[i].FloatValue()
		}
		reg := l.program.AddConstant(c)
		return &operand{
			src: ir.Source{
				Register: ir.Register{Bank: ir.BankConstant, Index: reg},
				Swizzle:  scalarSwizzle(typ.Size),
			},
			typ:   typ,
			count: 1,
		}
	}

	// Multi-register constant: one mov per register row.
	count := typ.Registers()
	rowSize := typ.Size
	dst := l.tempDest(count)
	for r := 0; r < count; r++ {
		var c [4]float32
		for i := 0; i < rowSize && r*rowSize+i < len(values); i++ {
			c[i] = values[r*rowSize+i].FloatValue()
		}
		reg := l.program.AddConstant(c)
		l.emit(ir.Instruction{
			Op:  ir.OpMov,
			Dst: ir.Dest{Register: ir.Register{Bank: ir.BankTemp, Index: dst.Index + r}, Mask: ir.MaskXYZW},
			Src: [4]ir.Source{{Register: ir.Register{Bank: ir.BankConstant, Index: reg}, Swizzle: ir.SwizzleIdentity}},
		})
	}
	return &operand{
		src:   ir.Source{Register: dst.Register, Swizzle: ir.SwizzleIdentity},
		typ:   typ,
		count: count,
		temp:  true,
	}
}

// lowerExpr emits code for an expression and returns its operand, or
// nil after an error.
func (l *Lowerer) lowerExpr(e Expr) *operand {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *LiteralExpr:
		return l.constOperand(n.Values, n.Type())

	case *SymbolExpr:
		loc, ok := l.locations[n.ID]
		if !ok {
			if bloc, found := l.builtinLocation(n.Name, n.Type()); found {
				l.locations[n.ID] = bloc
				loc = bloc
			} else {
				l.errorAt(n.Loc(), n.Name, "internal: no register for symbol")
				return nil
			}
		}
		return &operand{
			src: ir.Source{
				Register: ir.Register{Bank: loc.bank, Index: loc.base},
				Swizzle:  scalarSwizzle(n.Type().Size),
			},
			typ:   n.Type(),
			count: loc.count,
		}

	case *SwizzleExpr:
		base := l.lowerExpr(n.Base)
		if base == nil {
			return nil
		}
		out := *base
		out.typ = n.Type()
		out.src.Swizzle = composeSwizzle(base.src.Swizzle, n.Lanes)
		out.temp = base.temp
		return &out

	case *FieldExpr:
		base := l.lowerExpr(n.Base)
		if base == nil {
			return nil
		}
		offset := 0
		for i := 0; i < n.Index; i++ {
			offset += n.Base.Type().Struct.Fields[i].Type.Registers()
		}
		out := *base
		out.typ = n.Type()
		out.src.Index += offset
		out.src.Swizzle = scalarSwizzle(n.Type().Size)
		out.count = n.Type().Registers()
		return &out

	case *IndexExpr:
		return l.lowerIndex(n)

	case *UnaryExpr:
		return l.lowerUnary(n)

	case *BinaryExpr:
		return l.lowerBinary(n)

	case *SelectExpr:
		return l.lowerSelect(n)

	case *CallExpr:
		switch {
		case n.Constructor:
			return l.lowerConstructor(n)
		case n.Builtin != nil:
			return l.lowerBuiltin(n)
		default:
			return l.lowerUserCall(n)
		}
	}
	return nil
}

// composeSwizzle applies lane selection on top of an existing
// swizzle.
func composeSwizzle(base ir.Swizzle, lanes []int) ir.Swizzle {
	pick := func(i int) int {
		if i < len(lanes) {
			return base.Lane(lanes[i])
		}
		return base.Lane(lanes[len(lanes)-1])
	}
	return ir.PackSwizzle(pick(0), pick(1), pick(2), pick(3))
}

func (l *Lowerer) lowerIndex(n *IndexExpr) *operand {
	base := l.lowerExpr(n.Base)
	if base == nil {
		return nil
	}
	baseType := n.Base.Type()

	switch {
	case baseType.IsVector():
		if n.IsConst {
			out := *base
			out.typ = n.Type()
			lane := base.src.Swizzle.Lane(n.ConstIndex)
			out.src.Swizzle = ir.PackSwizzle(lane, lane, lane, lane)
			return &out
		}
		// Dynamic component selection: select over the lanes.
		idx := l.lowerExpr(n.Index)
		if idx == nil {
			return nil
		}
		result := l.tempDest(1)
		zero := l.program.AddConstant([4]float32{0, 1, 2, 3})
		lanesSrc := ir.Source{Register: ir.Register{Bank: ir.BankConstant, Index: zero}, Swizzle: ir.SwizzleIdentity}
		// dst = dp4(base, eq(lanes, idx.xxxx)) selects the matching
		// component.
		match := l.tempDest(1)
		l.emit(ir.Instruction{Op: ir.OpEq, Dst: match, Src: [4]ir.Source{lanesSrc, {Register: idx.src.Register, Swizzle: ir.PackSwizzle(idx.src.Swizzle.Lane(0), idx.src.Swizzle.Lane(0), idx.src.Swizzle.Lane(0), idx.src.Swizzle.Lane(0))}}})
		l.emit(ir.Instruction{Op: ir.OpDp4, Dst: result, Src: [4]ir.Source{base.src, l.destAsSource(match)}})
		l.freeTemp(match.Index, 1)
		l.release(idx)
		l.release(base)
		return l.tempOperand(result, n.Type())

	case baseType.IsMatrix(), baseType.IsArray():
		stride := 1
		if baseType.IsArray() {
			stride = baseType.ElementType().Registers()
		}
		if n.IsConst {
			out := *base
			out.typ = n.Type()
			out.src.Index += n.ConstIndex * stride
			out.src.Swizzle = scalarSwizzle(n.Type().Size)
			out.count = n.Type().Registers()
			return &out
		}
		// Dynamic register indexing through the address register.
		idx := l.lowerExpr(n.Index)
		if idx == nil {
			return nil
		}
		l.emit(ir.Instruction{
			Op:  ir.OpMovAddr,
			Dst: ir.Dest{Register: ir.Register{Bank: ir.BankAddress, Index: 0}, Mask: 0x1},
			Src: [4]ir.Source{idx.src},
		})
		l.release(idx)
		out := *base
		out.typ = n.Type()
		out.src.Relative = true
		out.src.Swizzle = scalarSwizzle(n.Type().Size)
		out.count = n.Type().Registers()
		return &out
	}

	l.release(base)
	return nil
}

func (l *Lowerer) lowerUnary(n *UnaryExpr) *operand {
	switch n.Op {
	case OpPreIncrement, OpPreDecrement, OpPostIncrement, OpPostDecrement:
		return l.lowerIncDec(n)
	}

	op := l.lowerExpr(n.Operand)
	if op == nil {
		return nil
	}

	switch n.Op {
	case OpNegate:
		out := *op
		out.typ = n.Type()
		out.src.Negate = !out.src.Negate
		return &out
	case OpLogicalNot:
		dst := l.tempDest(1)
		l.emit(ir.Instruction{Op: ir.OpNot, Dst: dst, Src: [4]ir.Source{op.src}})
		l.release(op)
		return l.tempOperand(dst, n.Type())
	case OpBitNot:
		// ~x == -x - 1 on two's complement integers.
		dst := l.tempDest(1)
		one := l.program.AddConstant([4]float32{1, 1, 1, 1})
		neg := op.src
		neg.Negate = !neg.Negate
		l.emit(ir.Instruction{Op: ir.OpISub, Dst: dst, Src: [4]ir.Source{
			neg,
			{Register: ir.Register{Bank: ir.BankConstant, Index: one}, Swizzle: ir.SwizzleIdentity},
		}})
		l.release(op)
		return l.tempOperand(dst, n.Type())
	}
	l.release(op)
	return nil
}

func (l *Lowerer) lowerIncDec(n *UnaryExpr) *operand {
	lv, ok := l.lowerLValue(n.Operand)
	if !ok {
		return nil
	}
	current := l.lowerExpr(n.Operand)
	if current == nil {
		return nil
	}

	isInt := n.Type().Basic.IsInteger()
	addOp := ir.OpAdd
	if isInt {
		addOp = ir.OpIAdd
	}
	one := l.program.AddConstant([4]float32{1, 1, 1, 1})
	oneSrc := ir.Source{Register: ir.Register{Bank: ir.BankConstant, Index: one}, Swizzle: ir.SwizzleIdentity}
	if n.Op == OpPreDecrement || n.Op == OpPostDecrement {
		oneSrc.Negate = true
	}

	updated := l.tempDest(1)
	l.emit(ir.Instruction{Op: addOp, Dst: updated, Src: [4]ir.Source{current.src, oneSrc}})

	post := n.Op == OpPostIncrement || n.Op == OpPostDecrement
	var result ir.Dest
	if post {
		result = l.tempDest(1)
		l.emit(ir.Instruction{Op: ir.OpMov, Dst: result, Src: [4]ir.Source{current.src}})
	}

	l.storeLValue(lv, &operand{src: l.destAsSource(updated), typ: n.Type(), count: 1})
	l.release(current)

	if post {
		l.freeTemp(updated.Index, 1)
		return l.tempOperand(result, n.Type())
	}
	return l.tempOperand(updated, n.Type())
}

func (l *Lowerer) lowerSelect(n *SelectExpr) *operand {
	cond := l.lowerExpr(n.Cond)
	trueOp := l.lowerExpr(n.TrueExpr)
	falseOp := l.lowerExpr(n.FalseExpr)
	if cond == nil || trueOp == nil || falseOp == nil {
		return nil
	}

	count := n.Type().Registers()
	dst := l.tempDest(count)
	condSrc := cond.src
	lane := condSrc.Swizzle.Lane(0)
	condSrc.Swizzle = ir.PackSwizzle(lane, lane, lane, lane)

	for r := 0; r < count; r++ {
		d := dst
		d.Index += r
		a, b := trueOp.src, falseOp.src
		a.Index += r
		b.Index += r
		l.emit(ir.Instruction{Op: ir.OpSelect, Dst: d, Src: [4]ir.Source{condSrc, a, b}})
	}

	l.release(cond)
	l.release(trueOp)
	l.release(falseOp)
	out := l.tempOperand(dst, n.Type())
	out.count = count
	return out
}
