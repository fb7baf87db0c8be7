package ir

import "fmt"

// ValidationError describes one defect found in a program.
type ValidationError struct {
	Message     string
	Instruction int // index into Program.Instructions, -1 for program-level
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Instruction >= 0 {
		return fmt.Sprintf("instruction %d: %s", e.Instruction, e.Message)
	}
	return e.Message
}

// Validator checks a lowered program against the IR rules: every
// operand must reference a register that exists in its bank, writes
// must target writable banks, and structured control flow must nest.
type Validator struct {
	program *Program
	errors  []ValidationError
}

// Validate checks the program and returns all defects found, or nil.
func Validate(program *Program) []ValidationError {
	if program == nil {
		return []ValidationError{{Message: "program is nil", Instruction: -1}}
	}
	v := &Validator{program: program}
	v.validateInstructions()
	v.validateControlFlow()
	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) errorf(inst int, format string, args ...interface{}) {
	v.errors = append(v.errors, ValidationError{
		Message:     fmt.Sprintf(format, args...),
		Instruction: inst,
	})
}

// bankSize returns the number of registers declared in a bank. For the
// input and output banks that is one past the highest register any
// varying occupies, since explicit locations can leave gaps.
func (v *Validator) bankSize(b Bank) int {
	p := v.program
	switch b {
	case BankConstant:
		return len(p.Constants)
	case BankUniform:
		n := 0
		for i := range p.Uniforms {
			n += p.Uniforms[i].Size
		}
		return n
	case BankTemp:
		return p.TempCount
	case BankInput:
		n := 0
		for i := range p.Inputs {
			if end := p.Inputs[i].Register + p.Inputs[i].Size; end > n {
				n = end
			}
		}
		return n
	case BankOutput:
		n := 0
		for i := range p.Outputs {
			if end := p.Outputs[i].Register + p.Outputs[i].Size; end > n {
				n = end
			}
		}
		return n
	case BankSampler:
		return len(p.Samplers)
	case BankAddress:
		return 1
	}
	return 0
}

func (v *Validator) validateInstructions() {
	for i := range v.program.Instructions {
		inst := &v.program.Instructions[i]
		if !inst.Op.Valid() {
			v.errorf(i, "invalid opcode %d", inst.Op)
			continue
		}
		if inst.Op.HasDest() {
			v.checkDest(i, inst)
		}
		for s := 0; s < inst.Op.SourceCount(); s++ {
			v.checkSource(i, inst, s)
		}
		if inst.Op.IsSampling() {
			if inst.Src[1].Bank != BankSampler {
				v.errorf(i, "%s source 1 must be a sampler register, got %s", inst.Op, inst.Src[1].Register)
			}
		}
	}
}

func (v *Validator) checkDest(i int, inst *Instruction) {
	d := inst.Dst
	if !d.Bank.Valid() {
		v.errorf(i, "invalid destination bank %d", d.Bank)
		return
	}
	if !d.Bank.Writable() {
		v.errorf(i, "destination bank %s is read-only", d.Bank)
		return
	}
	if inst.Op == OpMovAddr && d.Bank != BankAddress {
		v.errorf(i, "mova must write the address bank, got %s", d.Register)
	}
	if d.Index < 0 || d.Index >= v.bankSize(d.Bank) {
		v.errorf(i, "destination %s out of range (bank holds %d)", d.Register, v.bankSize(d.Bank))
	}
	if d.Mask == 0 {
		v.errorf(i, "empty write mask")
	}
}

func (v *Validator) checkSource(i int, inst *Instruction, s int) {
	src := inst.Src[s]
	if !src.Bank.Valid() {
		v.errorf(i, "source %d: invalid bank %d", s, src.Bank)
		return
	}
	if src.Bank == BankSampler && !inst.Op.IsSampling() {
		v.errorf(i, "source %d: sampler register used by non-sampling %s", s, inst.Op)
	}
	if src.Index < 0 || src.Index >= v.bankSize(src.Bank) {
		v.errorf(i, "source %d: %s out of range (bank holds %d)", s, src.Register, v.bankSize(src.Bank))
	}
	if src.Index > maxRegisterIndex {
		v.errorf(i, "source %d: index %d exceeds encodable range", s, src.Index)
	}
}

func (v *Validator) validateControlFlow() {
	type frame struct {
		op    Opcode
		label int
		inst  int
	}
	var stack []frame
	loopDepth := 0

	for i := range v.program.Instructions {
		inst := &v.program.Instructions[i]
		switch inst.Op {
		case OpIf:
			stack = append(stack, frame{OpIf, inst.Label, i})
		case OpLoop:
			stack = append(stack, frame{OpLoop, inst.Label, i})
			loopDepth++
		case OpElse:
			if len(stack) == 0 || stack[len(stack)-1].op != OpIf {
				v.errorf(i, "else without matching if")
				continue
			}
			if stack[len(stack)-1].label != inst.Label {
				v.errorf(i, "else label %d does not match if label %d", inst.Label, stack[len(stack)-1].label)
			}
		case OpEndIf:
			if len(stack) == 0 || stack[len(stack)-1].op != OpIf {
				v.errorf(i, "endif without matching if")
				continue
			}
			stack = stack[:len(stack)-1]
		case OpEndLoop:
			if len(stack) == 0 || stack[len(stack)-1].op != OpLoop {
				v.errorf(i, "endloop without matching loop")
				continue
			}
			stack = stack[:len(stack)-1]
			loopDepth--
		case OpBreak, OpBreakC, OpContinue:
			if loopDepth == 0 {
				v.errorf(i, "%s outside of a loop", inst.Op)
			}
		case OpDiscard:
			if v.program.Type != FragmentShader {
				v.errorf(i, "discard in a %s shader", v.program.Type)
			}
		}
	}
	for _, f := range stack {
		v.errorf(f.inst, "unterminated %s", f.op)
	}
}
