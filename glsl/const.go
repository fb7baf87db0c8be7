package glsl

import "math"

// foldConstant evaluates a constant expression to its component
// values. The second result is false when the expression is not a
// compile-time constant.
func (p *Parser) foldConstant(expr Expr) ([]Scalar, bool) {
	switch e := expr.(type) {
	case *LiteralExpr:
		return e.Values, true

	case *SymbolExpr:
		if sym := p.table.Find(e.Name); sym != nil && sym.ConstValue != nil {
			return sym.ConstValue, true
		}
		return nil, false

	case *UnaryExpr:
		return p.foldUnary(e)

	case *BinaryExpr:
		return p.foldBinary(e)

	case *SwizzleExpr:
		base, ok := p.foldConstant(e.Base)
		if !ok {
			return nil, false
		}
		out := make([]Scalar, len(e.Lanes))
		for i, lane := range e.Lanes {
			if lane >= len(base) {
				return nil, false
			}
			out[i] = base[lane]
		}
		return out, true

	case *IndexExpr:
		base, ok := p.foldConstant(e.Base)
		if !ok || !e.IsConst {
			return nil, false
		}
		stride := e.Type().Components()
		start := e.ConstIndex * stride
		if start < 0 || start+stride > len(base) {
			return nil, false
		}
		return base[start : start+stride], true

	case *FieldExpr:
		base, ok := p.foldConstant(e.Base)
		if !ok {
			return nil, false
		}
		offset := 0
		for i := 0; i < e.Index; i++ {
			offset += e.Base.Type().Struct.Fields[i].Type.Components()
		}
		n := e.Type().Components()
		if offset+n > len(base) {
			return nil, false
		}
		return base[offset : offset+n], true

	case *SelectExpr:
		cond, ok := p.foldConstant(e.Cond)
		if !ok || len(cond) != 1 {
			return nil, false
		}
		if cond[0].BoolValue() {
			return p.foldConstant(e.TrueExpr)
		}
		return p.foldConstant(e.FalseExpr)

	case *CallExpr:
		if e.Constructor {
			return p.foldConstructor(e)
		}
		return nil, false
	}
	return nil, false
}

func (p *Parser) foldUnary(e *UnaryExpr) ([]Scalar, bool) {
	operand, ok := p.foldConstant(e.Operand)
	if !ok {
		return nil, false
	}
	out := make([]Scalar, len(operand))
	for i, s := range operand {
		switch e.Op {
		case OpNegate:
			switch s.Kind {
			case TFloat:
				out[i] = FloatScalar(-s.F)
			default:
				out[i] = Scalar{Kind: s.Kind, I: -s.I}
			}
		case OpLogicalNot:
			out[i] = BoolScalar(!s.BoolValue())
		case OpBitNot:
			out[i] = Scalar{Kind: s.Kind, I: ^s.I}
		default:
			return nil, false
		}
	}
	return out, true
}

func (p *Parser) foldBinary(e *BinaryExpr) ([]Scalar, bool) {
	if e.Op.IsAssignment() || e.Op == OpComma {
		return nil, false
	}
	left, ok := p.foldConstant(e.Left)
	if !ok {
		return nil, false
	}
	right, ok := p.foldConstant(e.Right)
	if !ok {
		return nil, false
	}

	// Broadcast scalars across the other side.
	n := len(left)
	if len(right) > n {
		n = len(right)
	}
	at := func(v []Scalar, i int) Scalar {
		if len(v) == 1 {
			return v[0]
		}
		if i < len(v) {
			return v[i]
		}
		return Scalar{}
	}

	// Logical and comparison operators yield a single bool.
	switch e.Op {
	case OpLogicalAnd:
		return []Scalar{BoolScalar(at(left, 0).BoolValue() && at(right, 0).BoolValue())}, true
	case OpLogicalOr:
		return []Scalar{BoolScalar(at(left, 0).BoolValue() || at(right, 0).BoolValue())}, true
	case OpLogicalXor:
		return []Scalar{BoolScalar(at(left, 0).BoolValue() != at(right, 0).BoolValue())}, true
	case OpEqual, OpNotEqual:
		equal := len(left) == len(right)
		if equal {
			for i := range left {
				if left[i].FloatValue() != right[i].FloatValue() {
					equal = false
					break
				}
			}
		}
		if e.Op == OpNotEqual {
			equal = !equal
		}
		return []Scalar{BoolScalar(equal)}, true
	case OpLess, OpGreater, OpLessEqual, OpGreaterEqual:
		l, r := at(left, 0), at(right, 0)
		var result bool
		if l.Kind == TFloat {
			lf, rf := l.FloatValue(), r.FloatValue()
			switch e.Op {
			case OpLess:
				result = lf < rf
			case OpGreater:
				result = lf > rf
			case OpLessEqual:
				result = lf <= rf
			case OpGreaterEqual:
				result = lf >= rf
			}
		} else {
			li, ri := l.IntValue(), r.IntValue()
			switch e.Op {
			case OpLess:
				result = li < ri
			case OpGreater:
				result = li > ri
			case OpLessEqual:
				result = li <= ri
			case OpGreaterEqual:
				result = li >= ri
			}
		}
		return []Scalar{BoolScalar(result)}, true
	}

	// Matrix multiplication does not fold; everything else is
	// component-wise.
	if e.Op == OpMul && (e.Left.Type().IsMatrix() || e.Right.Type().IsMatrix()) {
		return nil, false
	}

	out := make([]Scalar, n)
	for i := 0; i < n; i++ {
		l, r := at(left, i), at(right, i)
		if l.Kind == TFloat || r.Kind == TFloat {
			lf, rf := l.FloatValue(), r.FloatValue()
			var v float32
			switch e.Op {
			case OpAdd:
				v = lf + rf
			case OpSub:
				v = lf - rf
			case OpMul:
				v = lf * rf
			case OpDiv:
				if rf == 0 {
					v = float32(math.Inf(int(sign32(lf))))
				} else {
					v = lf / rf
				}
			default:
				return nil, false
			}
			out[i] = FloatScalar(v)
		} else {
			li, ri := l.IntValue(), r.IntValue()
			var v int32
			switch e.Op {
			case OpAdd:
				v = li + ri
			case OpSub:
				v = li - ri
			case OpMul:
				v = li * ri
			case OpDiv:
				if ri == 0 {
					return nil, false
				}
				v = li / ri
			case OpIMod:
				if ri == 0 {
					return nil, false
				}
				v = li % ri
			case OpBitAnd:
				v = li & ri
			case OpBitOr:
				v = li | ri
			case OpBitXor:
				v = li ^ ri
			case OpShiftLeft:
				v = li << uint(ri&31)
			case OpShiftRight:
				v = li >> uint(ri&31)
			default:
				return nil, false
			}
			out[i] = Scalar{Kind: l.Kind, I: v}
		}
	}
	return out, true
}

func sign32(f float32) float32 {
	if f < 0 {
		return -1
	}
	return 1
}

// foldConstructor folds scalar/vector/matrix constructors with
// constant arguments.
func (p *Parser) foldConstructor(e *CallExpr) ([]Scalar, bool) {
	typ := e.Type()
	if typ.IsStruct() || typ.IsArray() {
		var out []Scalar
		for _, a := range e.Args {
			v, ok := p.foldConstant(a)
			if !ok {
				return nil, false
			}
			out = append(out, v...)
		}
		return out, true
	}

	var flat []Scalar
	for _, a := range e.Args {
		v, ok := p.foldConstant(a)
		if !ok {
			return nil, false
		}
		flat = append(flat, v...)
	}

	convert := func(s Scalar) Scalar {
		switch typ.Basic {
		case TFloat:
			return FloatScalar(s.FloatValue())
		case TInt:
			return IntScalar(s.IntValue())
		case TUInt:
			return Scalar{Kind: TUInt, I: s.IntValue()}
		case TBool:
			return BoolScalar(s.BoolValue())
		}
		return s
	}

	total := typ.Components()
	out := make([]Scalar, total)

	switch {
	case typ.IsMatrix() && len(e.Args) == 1 && len(flat) == 1:
		// Diagonal matrix from one scalar.
		for c := 0; c < typ.Cols; c++ {
			for r := 0; r < typ.Size; r++ {
				if c == r {
					out[c*typ.Size+r] = convert(flat[0])
				} else {
					out[c*typ.Size+r] = FloatScalar(0)
				}
			}
		}
		return out, true
	case len(flat) == 1 && total > 1:
		for i := range out {
			out[i] = convert(flat[0])
		}
		return out, true
	default:
		if len(flat) < total {
			return nil, false
		}
		for i := 0; i < total; i++ {
			out[i] = convert(flat[i])
		}
		return out, true
	}
}
