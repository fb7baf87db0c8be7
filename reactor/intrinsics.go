package reactor

// Intrinsics. The backend executes each one through a portable
// composition of primitive operations; no lowering is selected by the
// host's CPU features.

// AddSat adds with saturation at the type's range.
func (f *Function) AddSat(a, b Value) Value {
	if !a.typ.Kind.Integer() {
		f.fail("addsat: %s is not an integer type", a.typ)
		return Value{}
	}
	return f.binary(OpAddSat, a, b)
}

// SubSat subtracts with saturation at the type's range.
func (f *Function) SubSat(a, b Value) Value {
	if !a.typ.Kind.Integer() {
		f.fail("subsat: %s is not an integer type", a.typ)
		return Value{}
	}
	return f.binary(OpSubSat, a, b)
}

// PackSigned narrows two vectors to the next smaller signed element
// type with saturation, concatenating their lanes.
func (f *Function) PackSigned(a, b Value) Value {
	return f.pack(OpPackSigned, a, b, true)
}

// PackUnsigned narrows with unsigned saturation.
func (f *Function) PackUnsigned(a, b Value) Value {
	return f.pack(OpPackUnsigned, a, b, false)
}

func (f *Function) pack(op Op, a, b Value, signed bool) Value {
	if !a.valid() || !b.valid() {
		return Value{}
	}
	if a.typ != b.typ {
		f.fail("%s: operand types differ", op)
		return Value{}
	}
	var out Type
	switch a.typ.Kind {
	case KindInt, KindUInt:
		out = Type{Kind: KindShort, Lanes: a.typ.lanes() * 2}
		if !signed {
			out.Kind = KindUShort
		}
	case KindShort, KindUShort:
		out = Type{Kind: KindSByte, Lanes: a.typ.lanes() * 2}
		if !signed {
			out.Kind = KindByte
		}
	default:
		f.fail("%s: cannot narrow %s", op, a.typ)
		return Value{}
	}
	return Value{f.append(&Node{Op: op, Type: out, Args: []*Node{a.node, b.node}}), out}
}

// Min returns the lane-wise minimum.
func (f *Function) Min(a, b Value) Value { return f.binary(OpMin, a, b) }

// Max returns the lane-wise maximum.
func (f *Function) Max(a, b Value) Value { return f.binary(OpMax, a, b) }

// Round rounds to the nearest integer, ties to even.
func (f *Function) Round(a Value) Value { return f.unary(OpRound, a) }

// Floor rounds toward negative infinity.
func (f *Function) Floor(a Value) Value { return f.unary(OpFloor, a) }

// Ceil rounds toward positive infinity.
func (f *Function) Ceil(a Value) Value { return f.unary(OpCeil, a) }

// Trunc rounds toward zero.
func (f *Function) Trunc(a Value) Value { return f.unary(OpTrunc, a) }

// Frac returns a - Floor(a).
func (f *Function) Frac(a Value) Value { return f.unary(OpFrac, a) }

// Abs returns the absolute value.
func (f *Function) Abs(a Value) Value { return f.unary(OpAbs, a) }

// Rcp returns an approximate reciprocal.
func (f *Function) Rcp(a Value) Value { return f.unary(OpRcp, a) }

// RcpSqrt returns an approximate reciprocal square root.
func (f *Function) RcpSqrt(a Value) Value { return f.unary(OpRcpSqrt, a) }

// Sqrt returns the square root.
func (f *Function) Sqrt(a Value) Value { return f.unary(OpSqrt, a) }

// MulHigh returns the high half of the widened product per lane.
func (f *Function) MulHigh(a, b Value) Value {
	if !a.typ.Kind.Integer() {
		f.fail("mulhigh: %s is not an integer type", a.typ)
		return Value{}
	}
	return f.binary(OpMulHigh, a, b)
}

// MulAdd returns a*b + c in one step.
func (f *Function) MulAdd(a, b, c Value) Value {
	if !a.valid() || !b.valid() || !c.valid() {
		return Value{}
	}
	if a.typ != b.typ || a.typ != c.typ {
		f.fail("muladd: operand types differ")
		return Value{}
	}
	return Value{f.append(&Node{Op: OpMulAdd, Type: a.typ, Args: []*Node{a.node, b.node, c.node}}), a.typ}
}

// SignMask gathers the sign bit of every lane into the low bits of
// an Int.
func (f *Function) SignMask(a Value) Value {
	if !a.valid() {
		return Value{}
	}
	return Value{f.append(&Node{Op: OpSignMask, Type: Int, Args: []*Node{a.node}}), Int}
}
