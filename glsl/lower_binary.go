package glsl

import "github.com/gogpu/swgl/ir"

// lvalue is a resolved assignment destination.
type lvalue struct {
	reg      ir.Register
	relative bool
	mask     ir.WriteMask
	lanes    []int // dest lanes for swizzled stores, nil otherwise
	count    int   // registers spanned
	typ      *Type
}

// lowerLValue resolves an assignable expression to its destination.
func (l *Lowerer) lowerLValue(e Expr) (lvalue, bool) {
	switch n := e.(type) {
	case *SymbolExpr:
		loc, ok := l.locations[n.ID]
		if !ok {
			if bloc, found := l.builtinLocation(n.Name, n.Type()); found {
				l.locations[n.ID] = bloc
				loc = bloc
			} else {
				l.errorAt(n.Loc(), n.Name, "internal: no register for symbol")
				return lvalue{}, false
			}
		}
		return lvalue{
			reg:   ir.Register{Bank: loc.bank, Index: loc.base},
			mask:  maskFor(n.Type().Size),
			count: loc.count,
			typ:   n.Type(),
		}, true

	case *SwizzleExpr:
		base, ok := l.lowerLValue(n.Base)
		if !ok {
			return lvalue{}, false
		}
		var mask ir.WriteMask
		for _, lane := range n.Lanes {
			mask |= 1 << uint(lane)
		}
		return lvalue{
			reg:      base.reg,
			relative: base.relative,
			mask:     mask,
			lanes:    n.Lanes,
			count:    1,
			typ:      n.Type(),
		}, true

	case *FieldExpr:
		base, ok := l.lowerLValue(n.Base)
		if !ok {
			return lvalue{}, false
		}
		offset := 0
		for i := 0; i < n.Index; i++ {
			offset += n.Base.Type().Struct.Fields[i].Type.Registers()
		}
		reg := base.reg
		reg.Index += offset
		return lvalue{
			reg:      reg,
			relative: base.relative,
			mask:     maskFor(n.Type().Size),
			count:    n.Type().Registers(),
			typ:      n.Type(),
		}, true

	case *IndexExpr:
		base, ok := l.lowerLValue(n.Base)
		if !ok {
			return lvalue{}, false
		}
		baseType := n.Base.Type()
		if baseType.IsVector() {
			if n.IsConst {
				return lvalue{
					reg:      base.reg,
					relative: base.relative,
					mask:     1 << uint(n.ConstIndex),
					lanes:    []int{n.ConstIndex},
					count:    1,
					typ:      n.Type(),
				}, true
			}
			l.errorAt(n.Loc(), "[]", "dynamic component writes are not supported")
			return lvalue{}, false
		}
		stride := 1
		if baseType.IsArray() {
			stride = baseType.ElementType().Registers()
		}
		if n.IsConst {
			reg := base.reg
			reg.Index += n.ConstIndex * stride
			return lvalue{
				reg:      reg,
				relative: base.relative,
				mask:     maskFor(n.Type().Size),
				count:    n.Type().Registers(),
				typ:      n.Type(),
			}, true
		}
		idx := l.lowerExpr(n.Index)
		if idx == nil {
			return lvalue{}, false
		}
		l.emit(ir.Instruction{
			Op:  ir.OpMovAddr,
			Dst: ir.Dest{Register: ir.Register{Bank: ir.BankAddress, Index: 0}, Mask: 0x1},
			Src: [4]ir.Source{idx.src},
		})
		l.release(idx)
		return lvalue{
			reg:      base.reg,
			relative: true,
			mask:     maskFor(n.Type().Size),
			count:    n.Type().Registers(),
			typ:      n.Type(),
		}, true
	}

	return lvalue{}, false
}

// storeLValue writes an operand through a resolved destination.
func (l *Lowerer) storeLValue(lv lvalue, src *operand) {
	if lv.lanes != nil {
		// Arrange the source so each written lane receives the right
		// component: for dest lane d, take source component at the
		// position of d in the lane list.
		sel := [4]int{0, 1, 2, 3}
		for pos, d := range lv.lanes {
			sel[d] = src.src.Swizzle.Lane(pos)
		}
		s := src.src
		s.Swizzle = ir.PackSwizzle(sel[0], sel[1], sel[2], sel[3])
		l.emit(ir.Instruction{
			Op:  ir.OpMov,
			Dst: ir.Dest{Register: lv.reg, Mask: lv.mask, Relative: lv.relative},
			Src: [4]ir.Source{s},
		})
		return
	}

	for r := 0; r < lv.count; r++ {
		dst := ir.Dest{Register: lv.reg, Mask: lv.mask, Relative: lv.relative}
		dst.Index += r
		s := src.src
		s.Index += r
		l.emit(ir.Instruction{Op: ir.OpMov, Dst: dst, Src: [4]ir.Source{s}})
	}
}

// lowerAssignTo evaluates an expression into a register location.
func (l *Lowerer) lowerAssignTo(loc regLoc, e Expr) {
	src := l.lowerExpr(e)
	if src == nil {
		return
	}
	lv := lvalue{
		reg:   ir.Register{Bank: loc.bank, Index: loc.base},
		mask:  maskFor(loc.typ.Size),
		count: loc.count,
		typ:   loc.typ,
	}
	l.storeLValue(lv, src)
	l.release(src)
}

func (l *Lowerer) lowerBinary(n *BinaryExpr) *operand {
	if n.Op == OpComma {
		left := l.lowerExpr(n.Left)
		l.release(left)
		return l.lowerExpr(n.Right)
	}
	if n.Op.IsAssignment() {
		return l.lowerAssignment(n)
	}

	if out := l.tryFuseMad(n); out != nil {
		return out
	}

	left := l.lowerExpr(n.Left)
	right := l.lowerExpr(n.Right)
	if left == nil || right == nil {
		return nil
	}
	out := l.emitBinaryOp(n.Op, left, right, n.Type())
	l.release(left)
	l.release(right)
	return out
}

// tryFuseMad recognizes a*b+c over floats and emits a single mad.
// Matrix operands keep their column expansion; the fusion applies to
// scalar and vector shapes only, where it cannot change the result
// at the mandated precision.
func (l *Lowerer) tryFuseMad(n *BinaryExpr) *operand {
	if n.Op != OpAdd || n.Type().Basic != TFloat || n.Type().IsMatrix() {
		return nil
	}
	mul, other := n.Left, n.Right
	mb, ok := mul.(*BinaryExpr)
	if !ok || mb.Op != OpMul {
		mul, other = n.Right, n.Left
		if mb, ok = mul.(*BinaryExpr); !ok || mb.Op != OpMul {
			return nil
		}
	}
	if mb.Type().IsMatrix() || mb.Left.Type().IsMatrix() || mb.Right.Type().IsMatrix() {
		return nil
	}

	a := l.lowerExpr(mb.Left)
	b := l.lowerExpr(mb.Right)
	c := l.lowerExpr(other)
	if a == nil || b == nil || c == nil {
		return nil
	}
	dst := l.tempDest(1)
	dst.Mask = maskFor(n.Type().Size)
	l.emit(ir.Instruction{Op: ir.OpMad, Dst: dst, Src: [4]ir.Source{a.src, b.src, c.src}})
	l.release(a)
	l.release(b)
	l.release(c)
	return l.tempOperand(dst, n.Type())
}

func (l *Lowerer) lowerAssignment(n *BinaryExpr) *operand {
	lv, ok := l.lowerLValue(n.Left)
	if !ok {
		return nil
	}

	var value *operand
	if n.Op == OpAssign {
		value = l.lowerExpr(n.Right)
	} else {
		base := map[Operator]Operator{
			OpAddAssign: OpAdd, OpSubAssign: OpSub,
			OpMulAssign: OpMul, OpDivAssign: OpDiv,
			OpIModAssign: OpIMod,
			OpBitAndAssign: OpBitAnd, OpBitOrAssign: OpBitOr, OpBitXorAssign: OpBitXor,
			OpShiftLeftAssign: OpShiftLeft, OpShiftRightAssign: OpShiftRight,
		}[n.Op]
		left := l.lowerExpr(n.Left)
		right := l.lowerExpr(n.Right)
		if left == nil || right == nil {
			return nil
		}
		value = l.emitBinaryOp(base, left, right, n.Left.Type())
		l.release(left)
		l.release(right)
	}
	if value == nil {
		return nil
	}
	l.storeLValue(lv, value)
	return value
}

// arithOpcode selects the IR opcode for a component-wise operator on
// the given basic type.
func arithOpcode(op Operator, basic BasicType) ir.Opcode {
	integer := basic.IsInteger()
	switch op {
	case OpAdd:
		if integer {
			return ir.OpIAdd
		}
		return ir.OpAdd
	case OpSub:
		if integer {
			return ir.OpISub
		}
		return ir.OpSub
	case OpMul:
		if integer {
			return ir.OpIMul
		}
		return ir.OpMul
	case OpDiv:
		if integer {
			return ir.OpIDiv
		}
		return ir.OpDiv
	case OpIMod:
		return ir.OpIMod
	case OpBitAnd:
		return ir.OpIAnd
	case OpBitOr:
		return ir.OpIOr
	case OpBitXor:
		return ir.OpIXor
	case OpShiftLeft:
		return ir.OpShl
	case OpShiftRight:
		return ir.OpShr
	case OpLess:
		return ir.OpLt
	case OpGreater:
		return ir.OpGt
	case OpLessEqual:
		return ir.OpLe
	case OpGreaterEqual:
		return ir.OpGe
	case OpLogicalAnd:
		return ir.OpAnd
	case OpLogicalOr:
		return ir.OpOr
	case OpLogicalXor:
		return ir.OpXor
	}
	return ir.OpNop
}

func (l *Lowerer) emitBinaryOp(op Operator, left, right *operand, result *Type) *operand {
	lt, rt := left.typ, right.typ

	if op == OpMul && (lt.IsMatrix() || rt.IsMatrix()) {
		return l.emitMultiply(left, right, result)
	}
	if op == OpEqual || op == OpNotEqual {
		return l.emitEquality(op, left, right)
	}

	if lt.IsMatrix() || rt.IsMatrix() {
		// Component-wise matrix add/sub/div (and scalar forms).
		count := result.Registers()
		dst := l.tempDest(count)
		for r := 0; r < count; r++ {
			d := dst
			d.Index += r
			a, b := left.src, right.src
			if lt.IsMatrix() {
				a.Index += r
			}
			if rt.IsMatrix() {
				b.Index += r
			}
			l.emit(ir.Instruction{Op: arithOpcode(op, TFloat), Dst: d, Src: [4]ir.Source{a, b}})
		}
		out := l.tempOperand(dst, result)
		out.count = count
		return out
	}

	opcode := arithOpcode(op, lt.Basic)
	if opcode == ir.OpNop {
		return nil
	}
	dst := l.tempDest(1)
	dst.Mask = maskFor(result.Size)
	l.emit(ir.Instruction{Op: opcode, Dst: dst, Src: [4]ir.Source{left.src, right.src}})
	return l.tempOperand(dst, result)
}

// emitEquality lowers whole-value == and != over any register count.
func (l *Lowerer) emitEquality(op Operator, left, right *operand) *operand {
	ones := l.program.AddConstant([4]float32{1, 1, 1, 1})
	onesSrc := ir.Source{Register: ir.Register{Bank: ir.BankConstant, Index: ones}, Swizzle: ir.SwizzleIdentity}
	zero := l.program.AddConstant([4]float32{0, 0, 0, 0})
	zeroSrc := ir.Source{Register: ir.Register{Bank: ir.BankConstant, Index: zero}, Swizzle: ir.SwizzleIdentity}

	count := left.typ.Registers()
	rowSize := left.typ.Size

	sum := l.tempDest(1)
	l.emit(ir.Instruction{Op: ir.OpMov, Dst: sum, Src: [4]ir.Source{zeroSrc}})

	diff := l.tempDest(1)
	row := l.tempDest(1)
	for r := 0; r < count; r++ {
		a, b := left.src, right.src
		a.Index += r
		b.Index += r
		l.emit(ir.Instruction{Op: ir.OpNe, Dst: diff, Src: [4]ir.Source{a, b}})
		dp := dpOpcode(rowSize)
		l.emit(ir.Instruction{Op: dp, Dst: row, Src: [4]ir.Source{l.destAsSource(diff), onesSrc}})
		l.emit(ir.Instruction{Op: ir.OpAdd, Dst: sum, Src: [4]ir.Source{l.destAsSource(sum), l.destAsSource(row)}})
	}
	l.freeTemp(diff.Index, 1)
	l.freeTemp(row.Index, 1)

	result := l.tempDest(1)
	cmp := ir.OpEq // sum == 0 → equal
	if op == OpNotEqual {
		cmp = ir.OpGt
	}
	l.emit(ir.Instruction{Op: cmp, Dst: result, Src: [4]ir.Source{l.destAsSource(sum), zeroSrc}})
	l.freeTemp(sum.Index, 1)

	typ := NewType(TBool)
	typ.Qualifier = QualTemporary
	return l.tempOperand(result, typ)
}

func dpOpcode(size int) ir.Opcode {
	switch size {
	case 2:
		return ir.OpDp2
	case 3:
		return ir.OpDp3
	}
	if size == 1 {
		return ir.OpMul
	}
	return ir.OpDp4
}

// emitMultiply lowers '*' involving matrices: linear algebra for
// matrix×matrix/vector, component scaling for matrix×scalar.
func (l *Lowerer) emitMultiply(left, right *operand, result *Type) *operand {
	lt, rt := left.typ, right.typ

	switch {
	case lt.IsMatrix() && rt.IsScalar():
		return l.emitMatrixScale(left, right, result)
	case rt.IsMatrix() && lt.IsScalar():
		return l.emitMatrixScale(right, left, result)

	case lt.IsMatrix() && rt.IsVector():
		// result = Σ column_c · v[c]
		dst := l.tempDest(1)
		dst.Mask = maskFor(result.Size)
		for c := 0; c < lt.Cols; c++ {
			col := left.src
			col.Index += c
			lane := right.src.Swizzle.Lane(c)
			v := right.src
			v.Swizzle = ir.PackSwizzle(lane, lane, lane, lane)
			if c == 0 {
				l.emit(ir.Instruction{Op: ir.OpMul, Dst: dst, Src: [4]ir.Source{col, v}})
			} else {
				l.emit(ir.Instruction{Op: ir.OpMad, Dst: dst, Src: [4]ir.Source{col, v, l.destAsSource(dst)}})
			}
		}
		return l.tempOperand(dst, result)

	case lt.IsVector() && rt.IsMatrix():
		// result[c] = dot(v, column_c)
		dst := l.tempDest(1)
		dp := dpOpcode(lt.Size)
		for c := 0; c < rt.Cols; c++ {
			col := right.src
			col.Index += c
			d := dst
			d.Mask = 1 << uint(c)
			l.emit(ir.Instruction{Op: dp, Dst: d, Src: [4]ir.Source{left.src, col}})
		}
		dst.Mask = maskFor(result.Size)
		return l.tempOperand(dst, result)

	case lt.IsMatrix() && rt.IsMatrix():
		// result column j = left × right[j]
		count := result.Registers()
		dst := l.tempDest(count)
		for j := 0; j < rt.Cols; j++ {
			d := dst
			d.Index += j
			d.Mask = maskFor(result.Size)
			for c := 0; c < lt.Cols; c++ {
				col := left.src
				col.Index += c
				v := right.src
				v.Index += j
				v.Swizzle = ir.PackSwizzle(c, c, c, c)
				if c == 0 {
					l.emit(ir.Instruction{Op: ir.OpMul, Dst: d, Src: [4]ir.Source{col, v}})
				} else {
					l.emit(ir.Instruction{Op: ir.OpMad, Dst: d, Src: [4]ir.Source{col, v, l.destAsSource(d)}})
				}
			}
		}
		out := l.tempOperand(dst, result)
		out.count = count
		return out
	}
	return nil
}

func (l *Lowerer) emitMatrixScale(mat, scalar *operand, result *Type) *operand {
	count := result.Registers()
	dst := l.tempDest(count)
	for r := 0; r < count; r++ {
		d := dst
		d.Index += r
		m := mat.src
		m.Index += r
		l.emit(ir.Instruction{Op: ir.OpMul, Dst: d, Src: [4]ir.Source{m, scalar.src}})
	}
	out := l.tempOperand(dst, result)
	out.count = count
	return out
}
