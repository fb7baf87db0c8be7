package reactor

// Var is a routine-local variable. It begins life as a pure SSA
// value; it materializes into a stack slot on the first address
// taking, or at the first control-flow boundary (If, While, For, Do,
// Return) reached while it holds a value, so that every path agrees
// on where it lives. The backend's SROA pass promotes
// materialized slots that never escaped back to SSA values.
type Var struct {
	fn  *Function
	typ Type

	// slot is the alloca, non-nil once materialized.
	slot *Node

	// pending is the current SSA definition while unmaterialized.
	pending *Node

	// killed marks a variable whose pending value died behind an
	// unreachable terminator; loads yield undefined values.
	killed bool
}

// NewVar declares a variable of the given type.
func (f *Function) NewVar(t Type) *Var {
	v := &Var{fn: f, typ: t}
	f.vars = append(f.vars, v)
	return v
}

// NewVarInit declares a variable with an initial value.
func (f *Function) NewVarInit(init Value) *Var {
	v := f.NewVar(init.Type())
	v.Store(init)
	return v
}

// Type returns the variable's type.
func (v *Var) Type() Type {
	return v.typ
}

// Materialized reports whether the variable owns a stack slot.
func (v *Var) Materialized() bool {
	return v.slot != nil
}

// materialize allocates the stack slot and flushes the pending value.
func (v *Var) materialize() {
	if v.slot != nil {
		return
	}
	f := v.fn
	// Allocas conceptually live in the entry block; the backend
	// hoists them, so emission order does not matter.
	v.slot = f.append(&Node{Op: OpAlloca, Type: Pointer, Imm: []uint64{uint64(v.typ.Bytes())}})
	if v.pending != nil {
		f.append(&Node{Op: OpStore, Type: Void, Args: []*Node{v.slot, v.pending}})
		v.pending = nil
	}
}

// Addr returns the address of the variable, materializing it.
func (v *Var) Addr() Value {
	v.materialize()
	return Value{v.slot, Pointer}
}

// Load reads the current value.
func (v *Var) Load() Value {
	f := v.fn
	if v.slot == nil {
		if v.pending == nil {
			// Reading an uninitialized or killed variable yields an
			// undefined value of the right type.
			n := f.append(&Node{Op: OpConst, Type: v.typ, Imm: make([]uint64, v.typ.lanes())})
			return Value{n, v.typ}
		}
		return Value{v.pending, v.typ}
	}
	n := f.append(&Node{Op: OpLoad, Type: v.typ, Args: []*Node{v.slot}})
	return Value{n, v.typ}
}

// Store writes a new value. While the variable is unmaterialized the
// write only redirects the pending SSA value; no memory traffic is
// generated.
func (v *Var) Store(val Value) {
	if !val.valid() {
		return
	}
	if val.Type() != v.typ {
		v.fn.fail("store to %s variable with %s value", v.typ, val.Type())
		return
	}
	if v.slot == nil {
		v.pending = val.node
		v.killed = false
		return
	}
	v.fn.append(&Node{Op: OpStore, Type: Void, Args: []*Node{v.slot, val.node}})
}

// StoreMasked writes only the selected lanes (bit 0 = lane 0) of a
// 4-lane vector variable.
func (v *Var) StoreMasked(val Value, mask uint8) {
	if mask == 0xF || !v.typ.Vector() {
		v.Store(val)
		return
	}
	f := v.fn
	current := v.Load()
	// Build a lane mask constant of all-ones lanes for the written
	// components and select.
	lanes := make([]uint64, v.typ.lanes())
	for i := range lanes {
		if mask&(1<<uint(i)) != 0 {
			lanes[i] = ^uint64(0)
		}
	}
	sel := f.ConstVector(v.typ, lanes...)
	v.Store(f.Select(sel, val, current))
}

// materializeAll flushes every live unmaterialized variable. Control
// flow constructs call this before a block boundary so that all
// paths agree on where each variable lives.
func (f *Function) materializeAll() {
	for _, v := range f.vars {
		if v.slot == nil && v.pending != nil {
			v.materialize()
		}
	}
}

// killUnmaterialized drops pending values after an unreachable
// terminator. Their reads afterwards produce undefined values, which
// is safe because the code emitting them can never execute.
func (f *Function) killUnmaterialized() {
	for _, v := range f.vars {
		if v.slot == nil && v.pending != nil {
			v.pending = nil
			v.killed = true
		}
	}
}
