package reactor

import "math"

// Constants

// ConstInt builds an integer constant of the given type, replicated
// across its lanes.
func (f *Function) ConstInt(t Type, v int64) Value {
	lanes := t.lanes()
	imm := make([]uint64, lanes)
	for i := range imm {
		imm[i] = uint64(v)
	}
	return Value{f.append(&Node{Op: OpConst, Type: t, Imm: imm}), t}
}

// ConstFloat builds a float constant replicated across lanes.
func (f *Function) ConstFloat(t Type, v float64) Value {
	lanes := t.lanes()
	imm := make([]uint64, lanes)
	bits := uint64(math.Float32bits(float32(v)))
	for i := range imm {
		imm[i] = bits
	}
	return Value{f.append(&Node{Op: OpConst, Type: t, Imm: imm}), t}
}

// ConstVector builds a vector constant with per-lane values. Float
// lanes are given as float bit patterns via FloatBits.
func (f *Function) ConstVector(t Type, lanes ...uint64) Value {
	if len(lanes) != t.lanes() {
		f.fail("ConstVector: %d lanes for %s", len(lanes), t)
	}
	imm := make([]uint64, len(lanes))
	copy(imm, lanes)
	return Value{f.append(&Node{Op: OpConst, Type: t, Imm: imm}), t}
}

// FloatBits converts a float lane value for ConstVector.
func FloatBits(v float32) uint64 {
	return uint64(math.Float32bits(v))
}

// Float4Const is a convenience for the common 4-lane float constant.
func (f *Function) Float4Const(x, y, z, w float32) Value {
	return f.ConstVector(Float4, FloatBits(x), FloatBits(y), FloatBits(z), FloatBits(w))
}

// Arg returns the i'th routine parameter.
func (f *Function) Arg(i int) Value {
	if i < 0 || i >= len(f.Params) {
		f.fail("Arg(%d) out of range", i)
		return Value{}
	}
	t := f.Params[i]
	return Value{f.append(&Node{Op: OpParam, Type: t, Imm: []uint64{uint64(i)}}), t}
}

// binary builds a type-checked binary node.
func (f *Function) binary(op Op, a, b Value) Value {
	if !a.valid() || !b.valid() {
		return Value{}
	}
	if a.typ != b.typ {
		f.fail("%s: operand types differ (%s vs %s)", op, a.typ, b.typ)
		return Value{}
	}
	return Value{f.append(&Node{Op: op, Type: a.typ, Args: []*Node{a.node, b.node}}), a.typ}
}

func (f *Function) unary(op Op, a Value) Value {
	if !a.valid() {
		return Value{}
	}
	return Value{f.append(&Node{Op: op, Type: a.typ, Args: []*Node{a.node}}), a.typ}
}

// Arithmetic

// Add returns a + b.
func (f *Function) Add(a, b Value) Value { return f.binary(OpAdd, a, b) }

// Sub returns a - b.
func (f *Function) Sub(a, b Value) Value { return f.binary(OpSub, a, b) }

// Mul returns a * b.
func (f *Function) Mul(a, b Value) Value { return f.binary(OpMul, a, b) }

// Div returns a / b. Float division by zero follows IEEE semantics.
func (f *Function) Div(a, b Value) Value { return f.binary(OpDiv, a, b) }

// Mod returns the remainder.
func (f *Function) Mod(a, b Value) Value { return f.binary(OpMod, a, b) }

// Neg returns -a.
func (f *Function) Neg(a Value) Value { return f.unary(OpNeg, a) }

// Bitwise

// And returns a & b.
func (f *Function) And(a, b Value) Value { return f.binary(OpAnd, a, b) }

// Or returns a | b.
func (f *Function) Or(a, b Value) Value { return f.binary(OpOr, a, b) }

// Xor returns a ^ b.
func (f *Function) Xor(a, b Value) Value { return f.binary(OpXor, a, b) }

// Not returns ^a (logical not for Bool).
func (f *Function) Not(a Value) Value { return f.unary(OpNot, a) }

// Shl shifts every lane of a left by the scalar amount.
func (f *Function) Shl(a, amount Value) Value {
	return f.shift(OpShl, a, amount)
}

// Shr shifts every lane right: arithmetic for signed element kinds,
// logical otherwise.
func (f *Function) Shr(a, amount Value) Value {
	return f.shift(OpShr, a, amount)
}

func (f *Function) shift(op Op, a, amount Value) Value {
	if !a.valid() || !amount.valid() {
		return Value{}
	}
	if amount.typ.lanes() != 1 || !amount.typ.Kind.Integer() {
		f.fail("%s: shift amount must be an integer scalar, got %s", op, amount.typ)
		return Value{}
	}
	return Value{f.append(&Node{Op: op, Type: a.typ, Args: []*Node{a.node, amount.node}}), a.typ}
}

// Comparisons. The result has the operand's shape: Bool for scalars,
// an all-ones/all-zeros lane mask of the operand type for vectors.

func (f *Function) compare(op Op, a, b Value) Value {
	if !a.valid() || !b.valid() {
		return Value{}
	}
	if a.typ != b.typ {
		f.fail("%s: operand types differ (%s vs %s)", op, a.typ, b.typ)
		return Value{}
	}
	result := a.typ
	if !result.Vector() {
		result = Bool
	}
	return Value{f.append(&Node{Op: op, Type: result, Args: []*Node{a.node, b.node}}), result}
}

// CmpEQ returns a == b.
func (f *Function) CmpEQ(a, b Value) Value { return f.compare(OpEq, a, b) }

// CmpNE returns a != b.
func (f *Function) CmpNE(a, b Value) Value { return f.compare(OpNe, a, b) }

// CmpLT returns a < b.
func (f *Function) CmpLT(a, b Value) Value { return f.compare(OpLt, a, b) }

// CmpLE returns a <= b.
func (f *Function) CmpLE(a, b Value) Value { return f.compare(OpLe, a, b) }

// CmpGT returns a > b.
func (f *Function) CmpGT(a, b Value) Value { return f.compare(OpGt, a, b) }

// CmpGE returns a >= b.
func (f *Function) CmpGE(a, b Value) Value { return f.compare(OpGe, a, b) }

// Select returns cond ? a : b, lane-wise when cond is a vector mask.
func (f *Function) Select(cond, a, b Value) Value {
	if !cond.valid() || !a.valid() || !b.valid() {
		return Value{}
	}
	if a.typ != b.typ {
		f.fail("select: arm types differ (%s vs %s)", a.typ, b.typ)
		return Value{}
	}
	return Value{f.append(&Node{Op: OpSelect, Type: a.typ, Args: []*Node{cond.node, a.node, b.node}}), a.typ}
}

// Lane operations

// Swizzle rearranges the four lanes of a vector. The selector packs
// 2 bits per lane, lane 0 in the most significant pair of the low
// byte: 0x1B is identity.
func (f *Function) Swizzle(a Value, select16 uint16) Value {
	if !a.valid() {
		return Value{}
	}
	if a.typ.lanes() != 4 {
		f.fail("swizzle: %s is not a 4-lane vector", a.typ)
		return Value{}
	}
	return Value{f.append(&Node{Op: OpSwizzle, Type: a.typ, Args: []*Node{a.node}, Imm: []uint64{uint64(select16)}}), a.typ}
}

// SwizzleLane extracts the selector for one destination lane.
func SwizzleLane(select16 uint16, lane int) int {
	return int(select16>>(6-2*uint(lane))) & 3
}

// PackSwizzle builds a selector from four lane indices.
func PackSwizzle(x, y, z, w int) uint16 {
	return uint16(x&3)<<6 | uint16(y&3)<<4 | uint16(z&3)<<2 | uint16(w&3)
}

// SwizzleIdentity selects lanes in order.
const SwizzleIdentity uint16 = 0x1B

// Shuffle merges lanes from two vectors of the same type: selector
// values 0–3 pick from a, 4–7 from b, three bits per destination
// lane with lane 0 in the most significant position.
func (f *Function) Shuffle(a, b Value, lanes [4]int) Value {
	if !a.valid() || !b.valid() {
		return Value{}
	}
	if a.typ != b.typ || a.typ.lanes() != 4 {
		f.fail("shuffle: needs two matching 4-lane vectors")
		return Value{}
	}
	var imm uint64
	for i, l := range lanes {
		imm |= uint64(l&7) << (3 * uint(3-i))
	}
	return Value{f.append(&Node{Op: OpShuffle, Type: a.typ, Args: []*Node{a.node, b.node}, Imm: []uint64{imm}}), a.typ}
}

// Insert replaces one lane of a vector with a scalar.
func (f *Function) Insert(vec, scalar Value, lane int) Value {
	if !vec.valid() || !scalar.valid() {
		return Value{}
	}
	if scalar.typ.lanes() != 1 || scalar.typ.Kind != vec.typ.Kind {
		f.fail("insert: scalar %s into %s", scalar.typ, vec.typ)
		return Value{}
	}
	return Value{f.append(&Node{Op: OpInsert, Type: vec.typ, Args: []*Node{vec.node, scalar.node}, Imm: []uint64{uint64(lane)}}), vec.typ}
}

// Extract reads one lane of a vector as a scalar.
func (f *Function) Extract(vec Value, lane int) Value {
	if !vec.valid() {
		return Value{}
	}
	t := vec.typ.Scalar()
	return Value{f.append(&Node{Op: OpExtract, Type: t, Args: []*Node{vec.node}, Imm: []uint64{uint64(lane)}}), t}
}

// Conversions

// BitCast reinterprets a value as another type of the same size.
// Bit-casting is transitive: casting through an intermediate type of
// equal size is the same as casting directly.
func (f *Function) BitCast(a Value, to Type) Value {
	if !a.valid() {
		return Value{}
	}
	if a.typ.Bytes() != to.Bytes() {
		f.fail("bitcast: %s and %s differ in size", a.typ, to)
		return Value{}
	}
	if a.typ == to {
		return a
	}
	// Collapse chains so As<T>(As<U>(e)) builds the same node as
	// As<T>(e).
	src := a.node
	if src.Op == OpBitCast {
		src = src.Args[0]
	}
	return Value{f.append(&Node{Op: OpBitCast, Type: to, Args: []*Node{src}}), to}
}

// Convert performs numeric conversion between kinds, rounding to
// nearest even when narrowing from float.
func (f *Function) Convert(a Value, to Type) Value {
	if !a.valid() {
		return Value{}
	}
	if a.typ.lanes() != to.lanes() {
		f.fail("convert: lane mismatch %s to %s", a.typ, to)
		return Value{}
	}
	if a.typ == to {
		return a
	}
	return Value{f.append(&Node{Op: OpConvert, Type: to, Args: []*Node{a.node}}), to}
}

// ConvertTrunc converts float to integer truncating toward zero.
func (f *Function) ConvertTrunc(a Value, to Type) Value {
	if !a.valid() {
		return Value{}
	}
	return Value{f.append(&Node{Op: OpConvertTrunc, Type: to, Args: []*Node{a.node}}), to}
}

// RoundInt converts float to int with round-to-nearest-even.
func (f *Function) RoundInt(a Value) Value {
	to := Int
	if a.typ.Vector() {
		to = Type{Kind: KindInt, Lanes: a.typ.lanes()}
	}
	return f.Convert(a, to)
}

// Pointers

// GEP advances a typed pointer by index elements of elemBytes each.
// A one-byte element makes it plain byte-pointer arithmetic.
func (f *Function) GEP(ptr, index Value, elemBytes int) Value {
	if !ptr.valid() || !index.valid() {
		return Value{}
	}
	if ptr.typ.Kind != KindPointer {
		f.fail("gep: base is %s, not a pointer", ptr.typ)
		return Value{}
	}
	return Value{f.append(&Node{Op: OpGEP, Type: Pointer, Args: []*Node{ptr.node, index.node}, Imm: []uint64{uint64(elemBytes)}}), Pointer}
}

// AddPtr offsets a byte pointer; the result is a byte pointer.
func (f *Function) AddPtr(ptr, bytes Value) Value {
	return f.GEP(ptr, bytes, 1)
}

// Load reads a value of type t through a pointer.
func (f *Function) Load(ptr Value, t Type) Value {
	if !ptr.valid() {
		return Value{}
	}
	if ptr.typ.Kind != KindPointer {
		f.fail("load: base is %s, not a pointer", ptr.typ)
		return Value{}
	}
	return Value{f.append(&Node{Op: OpLoad, Type: t, Args: []*Node{ptr.node}}), t}
}

// Store writes a value through a pointer.
func (f *Function) Store(ptr, value Value) {
	if !ptr.valid() || !value.valid() {
		return
	}
	if ptr.typ.Kind != KindPointer {
		f.fail("store: base is %s, not a pointer", ptr.typ)
		return
	}
	f.append(&Node{Op: OpStore, Type: Void, Args: []*Node{ptr.node, value.node}})
}

// AtomicLoad reads through a pointer with the given memory order.
func (f *Function) AtomicLoad(ptr Value, t Type, order MemoryOrder) Value {
	if !ptr.valid() {
		return Value{}
	}
	return Value{f.append(&Node{Op: OpAtomicLoad, Type: t, Args: []*Node{ptr.node}, Order: order}), t}
}

// AtomicStore writes through a pointer with the given memory order.
func (f *Function) AtomicStore(ptr, value Value, order MemoryOrder) {
	if !ptr.valid() || !value.valid() {
		return
	}
	f.append(&Node{Op: OpAtomicStore, Type: Void, Args: []*Node{ptr.node, value.node}, Order: order})
}

// CallExternal invokes a whitelisted runtime symbol.
func (f *Function) CallExternal(sym string, ret Type, args ...Value) Value {
	nodes := make([]*Node, len(args))
	for i, a := range args {
		if !a.valid() {
			return Value{}
		}
		nodes[i] = a.node
	}
	return Value{f.append(&Node{Op: OpCallExternal, Type: ret, Args: nodes, Sym: sym}), ret}
}

// Return ends the routine. A void function passes an invalid Value.
func (f *Function) Return(v Value) {
	n := &Node{Op: OpReturn, Type: Void}
	if v.valid() {
		n.Args = []*Node{v.node}
	}
	f.materializeAll()
	f.append(n)
	f.killUnmaterialized()
}
