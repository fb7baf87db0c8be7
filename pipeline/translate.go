package pipeline

import (
	"fmt"

	"github.com/gogpu/swgl/ir"
	"github.com/gogpu/swgl/reactor"
)

// maxUnrollIterations bounds inline loop expansion; longer counted
// loops fall back to a dynamic loop (and then cannot address sampler
// arrays with the index).
const maxUnrollIterations = 64

// ctrlNode is one node of the structured view of a linear program:
// either a plain instruction or a construct owning nested bodies.
type ctrlNode struct {
	inst *ir.Instruction
	body []ctrlNode
	alt  []ctrlNode // else body
}

// buildTree parses the linear instruction list into nested control
// constructs. It returns the main body and the subroutine bodies by
// label.
func buildTree(insts []ir.Instruction) (main []ctrlNode, subs map[int][]ctrlNode, err error) {
	subs = make(map[int][]ctrlNode)

	var parse func(i int, stopAtRet bool) ([]ctrlNode, int, error)
	parse = func(i int, stopAtRet bool) ([]ctrlNode, int, error) {
		var seq []ctrlNode
		for i < len(insts) {
			inst := &insts[i]
			switch inst.Op {
			case ir.OpIf:
				body, next, perr := parse(i+1, false)
				if perr != nil {
					return nil, 0, perr
				}
				node := ctrlNode{inst: inst, body: body}
				if next < len(insts) && insts[next].Op == ir.OpElse {
					var alt []ctrlNode
					alt, next, perr = parse(next+1, false)
					if perr != nil {
						return nil, 0, perr
					}
					node.alt = alt
				}
				if next >= len(insts) || insts[next].Op != ir.OpEndIf {
					return nil, 0, fmt.Errorf("pipeline: unterminated if at %d", i)
				}
				seq = append(seq, node)
				i = next + 1
			case ir.OpLoop:
				body, next, perr := parse(i+1, false)
				if perr != nil {
					return nil, 0, perr
				}
				if next >= len(insts) || insts[next].Op != ir.OpEndLoop {
					return nil, 0, fmt.Errorf("pipeline: unterminated loop at %d", i)
				}
				seq = append(seq, ctrlNode{inst: inst, body: body})
				i = next + 1
			case ir.OpElse, ir.OpEndIf, ir.OpEndLoop:
				return seq, i, nil
			case ir.OpLabel:
				// A label terminates the current sequence; its body
				// is collected by the top-level loop.
				return seq, i, nil
			case ir.OpRet:
				seq = append(seq, ctrlNode{inst: inst})
				if stopAtRet {
					return seq, i + 1, nil
				}
				i++
			default:
				seq = append(seq, ctrlNode{inst: inst})
				i++
			}
		}
		return seq, i, nil
	}

	main, next, err := parse(0, false)
	if err != nil {
		return nil, nil, err
	}
	for next < len(insts) {
		if insts[next].Op != ir.OpLabel {
			return nil, nil, fmt.Errorf("pipeline: stray instruction after main at %d", next)
		}
		label := insts[next].Label
		body, after, perr := parse(next+1, false)
		if perr != nil {
			return nil, nil, perr
		}
		subs[label] = body
		next = after
	}
	return main, subs, nil
}

// binding supplies the stage-specific register homes.
type binding interface {
	// loadInput returns the Float4 value of input register i.
	loadInput(i int) reactor.Value
	// outputVar returns the variable backing output register i.
	outputVar(i int) *reactor.Var
	// uniformBase returns the base pointer of the uniform file.
	uniformBase() reactor.Value
	// drawData returns the DrawData base pointer.
	drawData() reactor.Value
}

// translator turns shader IR into reactor code against a binding.
type translator struct {
	f    *reactor.Function
	prog *ir.Program
	bind binding

	temps []*reactor.Var

	// addr models the address register. addrConst carries its value
	// when it is statically known (inside unrolled loops).
	addr          *reactor.Var
	addrConst     int
	addrConstKnow bool

	// knownTemps maps temp registers holding a compile-time constant
	// (unrolled loop indices) to that value.
	knownTemps map[int]float32

	// kill is the discard flag of fragment programs, nil otherwise.
	kill *reactor.Var

	subs     map[int][]ctrlNode
	mainBody []ctrlNode

	// loop context flags
	breakVars []*reactor.Var
	contVars  []*reactor.Var
	retVars   []*reactor.Var

	err error
}

func newTranslator(f *reactor.Function, prog *ir.Program, bind binding) (*translator, error) {
	main, subs, err := buildTree(prog.Instructions)
	if err != nil {
		return nil, err
	}
	t := &translator{
		f:          f,
		prog:       prog,
		bind:       bind,
		subs:       subs,
		knownTemps: make(map[int]float32),
	}
	t.temps = make([]*reactor.Var, prog.TempCount)
	for i := range t.temps {
		t.temps[i] = f.NewVarInit(f.ConstFloat(reactor.Float4, 0))
	}
	t.addr = f.NewVarInit(f.ConstInt(reactor.Int, 0))
	t.mainBody = main
	return t, nil
}

func (t *translator) fail(format string, args ...interface{}) {
	if t.err == nil {
		t.err = fmt.Errorf("pipeline: "+format, args...)
	}
}

// fetchSrc materializes a source operand as a Float4.
func (t *translator) fetchSrc(src ir.Source) reactor.Value {
	f := t.f
	var v reactor.Value

	index := src.Index
	if src.Relative && t.addrConstKnow {
		index += t.addrConst
	}

	switch src.Bank {
	case ir.BankConstant:
		c := t.prog.Constants[index]
		v = f.Float4Const(c[0], c[1], c[2], c[3])
	case ir.BankUniform:
		base := t.bind.uniformBase()
		if src.Relative && !t.addrConstKnow {
			// Dynamic uniform indexing through the address register.
			offset := f.Mul(f.Add(f.ConstInt(reactor.Int, int64(src.Index)), t.addr.Load()), f.ConstInt(reactor.Int, 16))
			v = f.Load(f.AddPtr(base, offset), reactor.Float4)
		} else {
			v = f.Load(f.AddPtr(base, f.ConstInt(reactor.Int, int64(index*16))), reactor.Float4)
		}
	case ir.BankTemp:
		if src.Relative && !t.addrConstKnow {
			t.fail("dynamic temporary indexing requires an unrolled loop")
			return f.ConstFloat(reactor.Float4, 0)
		}
		if index < 0 || index >= len(t.temps) {
			t.fail("temp register %d out of range", index)
			return f.ConstFloat(reactor.Float4, 0)
		}
		v = t.temps[index].Load()
	case ir.BankInput:
		v = t.bind.loadInput(index)
	case ir.BankOutput:
		v = t.bind.outputVar(index).Load()
	default:
		t.fail("unsupported source bank %s", src.Bank)
		return f.ConstFloat(reactor.Float4, 0)
	}

	if src.Swizzle != ir.SwizzleIdentity {
		v = f.Swizzle(v, uint16(src.Swizzle))
	}
	if src.Abs {
		v = f.Abs(v)
	}
	if src.Negate {
		v = f.Neg(v)
	}
	return v
}

// destVar resolves the destination register's variable.
func (t *translator) destVar(dst ir.Dest) *reactor.Var {
	index := dst.Index
	if dst.Relative {
		if !t.addrConstKnow {
			t.fail("dynamic destination indexing requires an unrolled loop")
			return t.temps[0]
		}
		index += t.addrConst
	}
	switch dst.Bank {
	case ir.BankTemp:
		if index < 0 || index >= len(t.temps) {
			t.fail("temp register %d out of range", index)
			return t.temps[0]
		}
		// A write invalidates any known constant.
		delete(t.knownTemps, index)
		return t.temps[index]
	case ir.BankOutput:
		return t.bind.outputVar(index)
	}
	t.fail("unsupported destination bank %s", dst.Bank)
	return t.temps[0]
}

// store writes a computed value through the destination's mask and
// saturation.
func (t *translator) store(dst ir.Dest, v reactor.Value) {
	f := t.f
	if dst.Saturate {
		v = f.Min(f.Max(v, f.ConstFloat(reactor.Float4, 0)), f.ConstFloat(reactor.Float4, 1))
	}
	t.destVar(dst).StoreMasked(v, uint8(dst.Mask))
}

// splatLane replicates one lane across all four.
func (t *translator) splatLane(v reactor.Value, lane int) reactor.Value {
	return t.f.Swizzle(v, reactor.PackSwizzle(lane, lane, lane, lane))
}

// emit translates the whole program body. The main body gets its own
// return flag so an early return guards everything after it.
func (t *translator) emit(main []ctrlNode) error {
	ret := t.f.NewVarInit(t.f.ConstInt(reactor.Bool, 0))
	t.retVars = append(t.retVars, ret)
	t.emitSeq(main, 0)
	t.retVars = t.retVars[:len(t.retVars)-1]
	return t.err
}

// abortCond returns the disjunction of the active break/continue/ret
// flags, or an invalid value when none are active.
func (t *translator) abortCond() (reactor.Value, bool) {
	f := t.f
	var cond reactor.Value
	have := false
	add := func(v *reactor.Var) {
		if v == nil {
			return
		}
		c := v.Load()
		if !have {
			cond = c
			have = true
		} else {
			cond = f.Or(cond, c)
		}
	}
	if n := len(t.breakVars); n > 0 {
		add(t.breakVars[n-1])
	}
	if n := len(t.contVars); n > 0 {
		add(t.contVars[n-1])
	}
	if n := len(t.retVars); n > 0 {
		add(t.retVars[n-1])
	}
	return cond, have
}

// guardRest emits the remaining sequence under a not-aborted guard.
func (t *translator) guardRest(rest []ctrlNode, depth int) {
	if len(rest) == 0 {
		return
	}
	cond, have := t.abortCond()
	if !have {
		t.emitSeq(rest, depth)
		return
	}
	t.f.If(t.f.Not(cond), func() {
		t.emitSeq(rest, depth)
	}, nil)
}

func (t *translator) emitSeq(nodes []ctrlNode, depth int) {
	f := t.f
	for i, n := range nodes {
		inst := n.inst
		switch inst.Op {
		case ir.OpIf:
			cond := t.scalarBool(t.fetchSrc(inst.Src[0]))
			if n.alt != nil {
				f.If(cond, func() { t.emitSeq(n.body, depth) }, func() { t.emitSeq(n.alt, depth) })
			} else {
				f.If(cond, func() { t.emitSeq(n.body, depth) }, nil)
			}
		case ir.OpLoop:
			t.emitLoop(n, depth)
		case ir.OpBreak:
			if len(t.breakVars) > 0 {
				t.breakVars[len(t.breakVars)-1].Store(f.ConstInt(reactor.Bool, 1))
			}
			t.guardRest(nodes[i+1:], depth)
			return
		case ir.OpBreakC:
			cond := t.scalarBool(t.fetchSrc(inst.Src[0]))
			if len(t.breakVars) > 0 {
				brk := t.breakVars[len(t.breakVars)-1]
				f.If(cond, func() { brk.Store(f.ConstInt(reactor.Bool, 1)) }, nil)
			}
			t.guardRest(nodes[i+1:], depth)
			return
		case ir.OpContinue:
			if len(t.contVars) > 0 {
				t.contVars[len(t.contVars)-1].Store(f.ConstInt(reactor.Bool, 1))
			}
			t.guardRest(nodes[i+1:], depth)
			return
		case ir.OpDiscard:
			if t.kill != nil {
				t.kill.Store(f.ConstInt(reactor.Bool, 1))
			}
		case ir.OpRet:
			t.retVars[len(t.retVars)-1].Store(f.ConstInt(reactor.Bool, 1))
			t.guardRest(nodes[i+1:], depth)
			return
		case ir.OpCall:
			body, ok := t.subs[inst.Label]
			if !ok {
				t.fail("call to unknown label %d", inst.Label)
				return
			}
			ret := f.NewVarInit(f.ConstInt(reactor.Bool, 0))
			t.retVars = append(t.retVars, ret)
			t.emitSeq(body, depth+1)
			t.retVars = t.retVars[:len(t.retVars)-1]
		case ir.OpLabel:
			// Labels only delimit subroutine bodies.
		default:
			t.emitInstruction(inst)
		}
	}
}

// scalarBool reduces the x lane of a Float4 truth value to Bool.
func (t *translator) scalarBool(v reactor.Value) reactor.Value {
	f := t.f
	x := f.Extract(v, 0)
	return f.CmpNE(x, f.ConstFloat(reactor.Float, 0))
}

// emitLoop handles counted and generic loops, unrolling when the
// loop is flagged and small enough.
func (t *translator) emitLoop(n ctrlNode, depth int) {
	f := t.f
	inst := n.inst

	ctrl := t.prog.Constants[inst.Src[0].Index]
	count := int(ctrl[0])
	init := ctrl[1]
	step := ctrl[2]
	counted := inst.Dst.Bank == ir.BankTemp && inst.Dst.Mask != 0
	indexReg := inst.Dst.Index

	brk := f.NewVarInit(f.ConstInt(reactor.Bool, 0))
	t.breakVars = append(t.breakVars, brk)
	defer func() { t.breakVars = t.breakVars[:len(t.breakVars)-1] }()

	if inst.Unroll && counted && count <= maxUnrollIterations {
		for iter := 0; iter < count; iter++ {
			value := init + float32(iter)*step
			t.temps[indexReg].Store(f.ConstFloat(reactor.Float4, float64(value)))
			t.knownTemps[indexReg] = value
			cont := f.NewVarInit(f.ConstInt(reactor.Bool, 0))
			t.contVars = append(t.contVars, cont)
			live := f.Not(brk.Load())
			if len(t.retVars) > 0 {
				live = f.And(live, f.Not(t.retVars[len(t.retVars)-1].Load()))
			}
			f.If(live, func() {
				t.emitSeq(n.body, depth)
			}, nil)
			t.contVars = t.contVars[:len(t.contVars)-1]
		}
		delete(t.knownTemps, indexReg)
		return
	}

	// Dynamic loop: a trip counter plus the optional index register.
	// An active return flag also terminates the loop.
	counter := f.NewVarInit(f.ConstInt(reactor.Int, 0))
	if counted {
		t.temps[indexReg].Store(f.ConstFloat(reactor.Float4, float64(init)))
	}
	var ret *reactor.Var
	if len(t.retVars) > 0 {
		ret = t.retVars[len(t.retVars)-1]
	}
	cont := f.NewVarInit(f.ConstInt(reactor.Bool, 0))
	t.contVars = append(t.contVars, cont)
	f.While(func() reactor.Value {
		inRange := f.CmpLT(counter.Load(), f.ConstInt(reactor.Int, int64(count)))
		cond := f.And(inRange, f.Not(brk.Load()))
		if ret != nil {
			cond = f.And(cond, f.Not(ret.Load()))
		}
		return cond
	}, func() {
		cont.Store(f.ConstInt(reactor.Bool, 0))
		t.emitSeq(n.body, depth)
		if counted {
			idx := t.temps[indexReg]
			idx.Store(f.Add(idx.Load(), f.ConstFloat(reactor.Float4, float64(step))))
		}
		counter.Store(f.Add(counter.Load(), f.ConstInt(reactor.Int, 1)))
	})
	t.contVars = t.contVars[:len(t.contVars)-1]
}
