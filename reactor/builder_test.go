package reactor

import (
	"strings"
	"testing"
)

func TestTypeSet(t *testing.T) {
	valid := []Type{
		Void, Bool, Byte, SByte, Byte8, SByte8, Byte16, SByte16,
		Short, UShort, Short2, UShort2, Short4, UShort4, Short8, UShort8,
		Int, UInt, Int2, UInt2, Int4, UInt4, Long,
		Float, Float2, Float4, Pointer,
	}
	for _, typ := range valid {
		if !typ.Valid() {
			t.Errorf("%s should be a valid type", typ)
		}
	}
	invalid := []Type{
		{Kind: KindFloat, Lanes: 8},
		{Kind: KindLong, Lanes: 2},
		{Kind: KindByte, Lanes: 4},
		{Kind: KindInt, Lanes: 16},
	}
	for _, typ := range invalid {
		if typ.Valid() {
			t.Errorf("%s should not be a valid type", typ)
		}
	}
	if Float4.Bytes() != 16 || Short4.Bytes() != 8 || Byte16.Bytes() != 16 {
		t.Error("type sizes wrong")
	}
}

func TestEveryValueCarriesAType(t *testing.T) {
	f := NewFunction("f", []Type{Pointer}, Int)
	values := []Value{
		f.ConstInt(Int, 42),
		f.ConstFloat(Float4, 1.5),
		f.Arg(0),
		f.Add(f.ConstInt(Int4, 1), f.ConstInt(Int4, 2)),
		f.CmpLT(f.ConstFloat(Float, 1), f.ConstFloat(Float, 2)),
	}
	want := []Type{Int, Float4, Pointer, Int4, Bool}
	for i, v := range values {
		if v.Type() != want[i] {
			t.Errorf("value %d type = %s, want %s", i, v.Type(), want[i])
		}
	}
	if f.Err() != nil {
		t.Fatalf("unexpected error: %v", f.Err())
	}
}

func TestTypeMismatchFails(t *testing.T) {
	f := NewFunction("f", nil, Void)
	f.Add(f.ConstInt(Int, 1), f.ConstFloat(Float, 1))
	if f.Err() == nil {
		t.Error("mixing int and float operands must fail")
	}
}

func TestBitCastTransitive(t *testing.T) {
	// As<T>(As<U>(e)) must be equivalent to As<T>(e) for same-size
	// types.
	f := NewFunction("f", nil, Void)
	e := f.ConstFloat(Float4, 1)
	direct := f.BitCast(e, Short8)
	chained := f.BitCast(f.BitCast(e, Int4), Short8)

	if direct.Node().Args[0] != e.Node() {
		t.Error("direct cast should reference the source")
	}
	if chained.Node().Args[0] != e.Node() {
		t.Error("chained cast should collapse to the original source")
	}
	if chained.Type() != Short8 {
		t.Errorf("chained type = %s", chained.Type())
	}

	// Casting back to the same type is the identity.
	same := f.BitCast(e, Float4)
	if same.Node() != e.Node() {
		t.Error("identity cast should return the same value")
	}

	// Size mismatch is a build error.
	f2 := NewFunction("g", nil, Void)
	f2.BitCast(f2.ConstFloat(Float4, 1), Int)
	if f2.Err() == nil {
		t.Error("size-changing bitcast must fail")
	}
}

func TestSwizzlePacking(t *testing.T) {
	if PackSwizzle(0, 1, 2, 3) != SwizzleIdentity {
		t.Errorf("identity = %#x, want %#x", PackSwizzle(0, 1, 2, 3), SwizzleIdentity)
	}
	sel := PackSwizzle(3, 2, 1, 0)
	for lane, want := range []int{3, 2, 1, 0} {
		if got := SwizzleLane(sel, lane); got != want {
			t.Errorf("lane %d = %d, want %d", lane, got, want)
		}
	}

	f := NewFunction("f", nil, Void)
	v := f.Float4Const(1, 2, 3, 4)
	s := f.Swizzle(v, sel)
	if s.Type() != Float4 {
		t.Errorf("swizzle type = %s", s.Type())
	}
	if s.Node().Imm[0] != uint64(sel) {
		t.Errorf("selector not recorded")
	}
}

func TestVarStaysUnmaterializedWithoutAddr(t *testing.T) {
	f := NewFunction("f", nil, Void)
	v := f.NewVarInit(f.ConstFloat(Float4, 1))
	x := v.Load()
	v.Store(f.Add(x, x))
	if v.Materialized() {
		t.Error("variable without address-taking must stay SSA")
	}
	// No alloca, load, or store nodes should exist.
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			switch n.Op {
			case OpAlloca, OpLoad, OpStore:
				t.Errorf("unexpected memory op %s", n.Op)
			}
		}
	}
}

func TestVarMaterializesOnAddr(t *testing.T) {
	f := NewFunction("f", nil, Void)
	v := f.NewVarInit(f.ConstInt(Int, 7))
	addr := v.Addr()
	if !v.Materialized() {
		t.Fatal("Addr must materialize")
	}
	if addr.Type() != Pointer {
		t.Errorf("addr type = %s", addr.Type())
	}
	// The pending initial value must have been flushed to the slot.
	stores := 0
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			if n.Op == OpStore {
				stores++
			}
		}
	}
	if stores != 1 {
		t.Errorf("expected 1 flush store, got %d", stores)
	}
	// Loads now go through memory.
	_ = v.Load()
	found := false
	for _, n := range f.Current().Nodes {
		if n.Op == OpLoad {
			found = true
		}
	}
	if !found {
		t.Error("load after materialization must read the slot")
	}
}

func TestIfMaterializesLiveVars(t *testing.T) {
	f := NewFunction("f", nil, Void)
	v := f.NewVarInit(f.ConstInt(Int, 1))
	cond := f.CmpGT(f.ConstInt(Int, 2), f.ConstInt(Int, 1))
	f.If(cond, func() {
		v.Store(f.ConstInt(Int, 2))
	}, func() {
		v.Store(f.ConstInt(Int, 3))
	})
	if !v.Materialized() {
		t.Error("variable written in both arms must be materialized at the boundary")
	}
	if len(f.Blocks) < 4 {
		t.Errorf("if/else should create blocks, got %d", len(f.Blocks))
	}
	// The join block is current and not terminated.
	if f.Current().Terminated() {
		t.Error("join block must remain open")
	}
}

func TestWhileShape(t *testing.T) {
	f := NewFunction("f", nil, Void)
	i := f.NewVarInit(f.ConstInt(Int, 0))
	f.While(func() Value {
		return f.CmpLT(i.Load(), f.ConstInt(Int, 8))
	}, func() {
		i.Store(f.Add(i.Load(), f.ConstInt(Int, 1)))
	})
	f.Return(Value{})
	if f.Err() != nil {
		t.Fatalf("build error: %v", f.Err())
	}

	// header, body, end exist and the body jumps back to the header.
	listing := f.Listing()
	if !strings.Contains(listing, "br.cond") {
		t.Errorf("missing conditional branch:\n%s", listing)
	}
	backEdge := false
	for _, b := range f.Blocks {
		if term := b.Terminator(); term != nil && term.Op == OpBranch && term.Target.ID < b.ID {
			backEdge = true
		}
	}
	if !backEdge {
		t.Errorf("no back edge in loop:\n%s", listing)
	}
}

func TestKillUnmaterializedAfterReturn(t *testing.T) {
	f := NewFunction("f", nil, Void)
	v := f.NewVar(Int)
	f.If(f.CmpGT(f.ConstInt(Int, 2), f.ConstInt(Int, 1)), func() {
		v.Store(f.ConstInt(Int, 1))
		f.Return(Value{})
		// Reads after the terminator see an undefined value, and the
		// build must not fail.
		_ = v.Load()
	}, nil)
	if f.Err() != nil {
		t.Fatalf("unexpected error: %v", f.Err())
	}
}

func TestPointerArithmetic(t *testing.T) {
	f := NewFunction("f", []Type{Pointer}, Void)
	p := f.Arg(0)
	q := f.AddPtr(p, f.ConstInt(Int, 16))
	if q.Type() != Pointer {
		t.Errorf("byte pointer + int = %s, want pointer", q.Type())
	}
	r := f.GEP(p, f.ConstInt(Int, 3), 4)
	if r.Node().Imm[0] != 4 {
		t.Error("gep scale not recorded")
	}
	x := f.Load(q, Float4)
	if x.Type() != Float4 {
		t.Errorf("load type = %s", x.Type())
	}
	f.Store(q, x)
	if f.Err() != nil {
		t.Fatalf("unexpected error: %v", f.Err())
	}
}

func TestPackTypes(t *testing.T) {
	f := NewFunction("f", nil, Void)
	a := f.ConstInt(Int4, 100000)
	b := f.ConstInt(Int4, -100000)
	s := f.PackSigned(a, b)
	if s.Type() != Short8 {
		t.Errorf("packs(int4, int4) = %s, want short8", s.Type())
	}
	us := f.PackUnsigned(f.ConstInt(Short8, 300), f.ConstInt(Short8, -5))
	if us.Type() != Byte16 {
		t.Errorf("packu(short8, short8) = %s, want byte16", us.Type())
	}
}

func TestAtomics(t *testing.T) {
	f := NewFunction("f", []Type{Pointer}, Void)
	p := f.Arg(0)
	v := f.AtomicLoad(p, Int, OrderAcquire)
	if v.Type() != Int || v.Node().Order != OrderAcquire {
		t.Error("atomic load mis-built")
	}
	f.AtomicStore(p, v, OrderRelease)
	last := f.Current().Nodes[len(f.Current().Nodes)-1]
	if last.Op != OpAtomicStore || last.Order != OrderRelease {
		t.Error("atomic store mis-built")
	}
}

func TestShiftRequiresScalarAmount(t *testing.T) {
	f := NewFunction("f", nil, Void)
	f.Shl(f.ConstInt(Int4, 1), f.ConstInt(Int4, 2))
	if f.Err() == nil {
		t.Error("vector shift amount must fail")
	}
}
