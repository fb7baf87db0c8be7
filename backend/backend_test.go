package backend

import (
	"math"
	"testing"
	"unsafe"

	"github.com/gogpu/swgl/reactor"
)

func buildAndRun(t *testing.T, f *reactor.Function, cfg Config, args ...uint64) uint64 {
	t.Helper()
	routine, err := Build(f, cfg)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer routine.Release()
	return routine.Call(args...)
}

func TestReturnConstant(t *testing.T) {
	f := reactor.NewFunction("const42", nil, reactor.Int)
	f.Return(f.ConstInt(reactor.Int, 42))
	if got := buildAndRun(t, f, DefaultConfig()); uint32(got) != 42 {
		t.Errorf("result = %d, want 42", got)
	}
}

func TestIntegerArithmetic(t *testing.T) {
	f := reactor.NewFunction("arith", nil, reactor.Int)
	a := f.ConstInt(reactor.Int, 10)
	b := f.ConstInt(reactor.Int, 3)
	// (10-3)*3 + 10/3 = 21 + 3 = 24
	v := f.Add(f.Mul(f.Sub(a, b), b), f.Div(a, b))
	f.Return(v)
	if got := buildAndRun(t, f, Config{NoOptimize: true}); uint32(got) != 24 {
		t.Errorf("result = %d, want 24", got)
	}
}

func TestFloatArithmetic(t *testing.T) {
	f := reactor.NewFunction("farith", nil, reactor.Float)
	a := f.ConstFloat(reactor.Float, 1.5)
	b := f.ConstFloat(reactor.Float, 2.5)
	f.Return(f.Mul(f.Add(a, b), b)) // (1.5+2.5)*2.5 = 10
	got := buildAndRun(t, f, DefaultConfig())
	if v := math.Float32frombits(uint32(got)); v != 10 {
		t.Errorf("result = %v, want 10", v)
	}
}

func TestRoundIntBankersRounding(t *testing.T) {
	for _, tt := range []struct {
		in   float32
		want int32
	}{
		{2.5, 2}, {3.5, 4}, {-2.5, -2}, {2.4, 2}, {2.6, 3},
	} {
		f := reactor.NewFunction("round", nil, reactor.Int)
		f.Return(f.RoundInt(f.ConstFloat(reactor.Float, float64(tt.in))))
		got := buildAndRun(t, f, DefaultConfig())
		if int32(uint32(got)) != tt.want {
			t.Errorf("RoundInt(%v) = %d, want %d", tt.in, int32(uint32(got)), tt.want)
		}
	}
}

func TestDivisionByZeroIEEE(t *testing.T) {
	f := reactor.NewFunction("divzero", nil, reactor.Float)
	f.Return(f.Div(f.ConstFloat(reactor.Float, 1), f.ConstFloat(reactor.Float, 0)))
	got := math.Float32frombits(uint32(buildAndRun(t, f, Config{NoOptimize: true})))
	if !math.IsInf(float64(got), 1) {
		t.Errorf("1/0 = %v, want +inf", got)
	}
}

func TestLoadStoreThroughPointer(t *testing.T) {
	f := reactor.NewFunction("memcpy4", []reactor.Type{reactor.Pointer, reactor.Pointer}, reactor.Void)
	src := f.Load(f.Arg(0), reactor.Float4)
	doubled := f.Add(src, src)
	f.Store(f.Arg(1), doubled)
	f.Return(reactor.Value{})

	routine, err := Build(f, DefaultConfig())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer routine.Release()

	in := [4]float32{1, 2, 3, 4}
	var out [4]float32
	routine.Call(uint64(uintptr(unsafe.Pointer(&in[0]))), uint64(uintptr(unsafe.Pointer(&out[0]))))
	want := [4]float32{2, 4, 6, 8}
	if out != want {
		t.Errorf("out = %v, want %v", out, want)
	}
}

func TestLoopSum(t *testing.T) {
	// sum 0..9 with a While loop over materialized variables.
	f := reactor.NewFunction("sum", nil, reactor.Int)
	i := f.NewVarInit(f.ConstInt(reactor.Int, 0))
	sum := f.NewVarInit(f.ConstInt(reactor.Int, 0))
	f.While(func() reactor.Value {
		return f.CmpLT(i.Load(), f.ConstInt(reactor.Int, 10))
	}, func() {
		sum.Store(f.Add(sum.Load(), i.Load()))
		i.Store(f.Add(i.Load(), f.ConstInt(reactor.Int, 1)))
	})
	f.Return(sum.Load())

	for _, cfg := range []Config{
		{NoOptimize: true},
		DefaultConfig(),
		{Passes: []Pass{SROA, InstructionCombining, CFGSimplification, AggressiveDCE, GVN, Reassociate, DeadStoreElimination, SCCP, EarlyCSE, LICM}},
	} {
		if got := buildAndRun(t, f, cfg); uint32(got) != 45 {
			t.Errorf("sum = %d, want 45 (passes %v)", got, cfg.Passes)
		}
	}
}

func TestIfSelect(t *testing.T) {
	f := reactor.NewFunction("pick", []reactor.Type{reactor.Int}, reactor.Int)
	v := f.NewVarInit(f.ConstInt(reactor.Int, 100))
	f.If(f.CmpGT(f.Convert(f.Arg(0), reactor.Long), f.ConstInt(reactor.Long, 5)), func() {
		v.Store(f.ConstInt(reactor.Int, 1))
	}, func() {
		v.Store(f.ConstInt(reactor.Int, 2))
	})
	f.Return(v.Load())

	routine, err := Build(f, DefaultConfig())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer routine.Release()
	if got := routine.Call(9); uint32(got) != 1 {
		t.Errorf("pick(9) = %d, want 1", got)
	}
	if got := routine.Call(3); uint32(got) != 2 {
		t.Errorf("pick(3) = %d, want 2", got)
	}
}

func TestVectorOps(t *testing.T) {
	f := reactor.NewFunction("vec", []reactor.Type{reactor.Pointer}, reactor.Void)
	v := f.Float4Const(1, 2, 3, 4)
	swizzled := f.Swizzle(v, reactor.PackSwizzle(3, 2, 1, 0)) // 4,3,2,1
	sum := f.Add(v, swizzled)                                 // 5,5,5,5
	f.Store(f.Arg(0), sum)
	f.Return(reactor.Value{})

	routine, err := Build(f, DefaultConfig())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer routine.Release()
	var out [4]float32
	routine.Call(uint64(uintptr(unsafe.Pointer(&out[0]))))
	if out != [4]float32{5, 5, 5, 5} {
		t.Errorf("out = %v", out)
	}
}

func TestPackAndSignMask(t *testing.T) {
	f := reactor.NewFunction("pack", nil, reactor.Int)
	a := f.ConstVector(reactor.Int4, 100000, uint64(uint32(0xFFFF8000)), 1, 2)
	b := f.ConstInt(reactor.Int4, 0)
	packed := f.PackSigned(a, b) // short8: 32767, -32768, 1, 2, 0...
	f.Return(f.SignMask(packed))

	got := buildAndRun(t, f, Config{NoOptimize: true})
	// Only lane 1 (-32768) is negative.
	if uint32(got) != 0x2 {
		t.Errorf("signmask = %#x, want 0x2", got)
	}
}

func TestExternalCall(t *testing.T) {
	f := reactor.NewFunction("sinf", nil, reactor.Float)
	f.Return(f.CallExternal("sinf", reactor.Float, f.ConstFloat(reactor.Float, 0)))
	got := math.Float32frombits(uint32(buildAndRun(t, f, DefaultConfig())))
	if got != 0 {
		t.Errorf("sinf(0) = %v", got)
	}

	// Non-whitelisted symbols must fail materialization.
	g := reactor.NewFunction("bad", nil, reactor.Void)
	g.CallExternal("system", reactor.Void)
	g.Return(reactor.Value{})
	if _, err := Build(g, DefaultConfig()); err == nil {
		t.Error("undefined symbol must fail the build")
	}
}

func TestVerifyCatchesCrossBlockUse(t *testing.T) {
	f := reactor.NewFunction("broken", nil, reactor.Int)
	var leaked reactor.Value
	f.If(f.CmpGT(f.ConstInt(reactor.Int, 1), f.ConstInt(reactor.Int, 0)), func() {
		leaked = f.Add(f.ConstInt(reactor.Int, 1), f.ConstInt(reactor.Int, 2))
	}, func() {})
	// leaked is defined only on the then path; using it at the join
	// violates dominance.
	f.Return(leaked)

	if _, err := Build(f, Config{Verify: true}); err == nil {
		t.Error("verifier should reject a non-dominating use")
	}
}

func TestOptimizerPreservesSemantics(t *testing.T) {
	build := func(cfg Config) uint64 {
		f := reactor.NewFunction("opt", nil, reactor.Float)
		x := f.NewVarInit(f.ConstFloat(reactor.Float, 3))
		// Dead store, then the real value.
		x.Store(f.ConstFloat(reactor.Float, 99))
		x.Store(f.Mul(f.ConstFloat(reactor.Float, 2), f.ConstFloat(reactor.Float, 4)))
		y := f.Add(x.Load(), f.ConstFloat(reactor.Float, 0)) // identity add
		f.Return(y)
		return buildAndRun(t, f, cfg)
	}
	plain := math.Float32frombits(uint32(build(Config{NoOptimize: true})))
	optimized := math.Float32frombits(uint32(build(Config{Passes: []Pass{
		SROA, InstructionCombining, Reassociate, GVN, DeadStoreElimination, AggressiveDCE, CFGSimplification,
	}})))
	if plain != 8 || optimized != 8 {
		t.Errorf("plain = %v, optimized = %v, want 8", plain, optimized)
	}
}

func TestPageAllocation(t *testing.T) {
	block, err := AllocatePages(100, PermRead|PermWrite)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	copy(block.Bytes(), []byte("routine image"))
	if err := block.Protect(PermRead | PermExecute); err != nil {
		t.Fatalf("protect failed: %v", err)
	}
	if string(block.Bytes()[:7]) != "routine" {
		t.Error("contents lost after protection change")
	}
	if err := block.Free(); err != nil {
		t.Fatalf("free failed: %v", err)
	}
}

func TestRoutineRefCounting(t *testing.T) {
	f := reactor.NewFunction("rc", nil, reactor.Int)
	f.Return(f.ConstInt(reactor.Int, 7))
	routine, err := Build(f, DefaultConfig())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	routine.Retain()
	routine.Release()
	if got := routine.Call(); uint32(got) != 7 {
		t.Errorf("routine dead after balanced retain/release")
	}
	routine.Release()
}
