package glsl

import (
	pp "github.com/gogpu/swgl/preprocessor"

	"github.com/gogpu/swgl/ir"
)

// regLoc is the home of one symbol: a base register in a bank and the
// register count it spans.
type regLoc struct {
	bank  ir.Bank
	base  int
	count int
	typ   *Type
}

// Lowerer walks the typed AST and emits the linear shader IR. The
// emitted program is self-contained; no AST references survive.
type Lowerer struct {
	unit    *TranslationUnit
	program *ir.Program
	errs    *SourceErrors

	shaderType ShaderKind

	// symbol ID → register location
	locations map[int]regLoc

	// register allocation for the temp bank
	tempHigh  int
	freeTemps []int

	nextLabel int

	// functionLabels maps mangled signatures to subroutine labels;
	// returnRegs to each function's return-value register.
	functionLabels map[string]int
	returnRegs     map[string]regLoc

	// loops tracks enclosing loops for break/continue lowering. Each
	// entry can emit the loop tail at a continue site.
	loops []loweredLoop

	// activeReturn is the return-value register of the subroutine
	// being lowered, nil inside main.
	activeReturn *regLoc

	currentLine int
}

type loweredLoop struct {
	emitTail func()
}

// Lower converts a translation unit into a shader IR program.
func Lower(unit *TranslationUnit, shaderType ShaderKind, errs *SourceErrors) *ir.Program {
	irType := ir.VertexShader
	if shaderType == FragmentShaderKind {
		irType = ir.FragmentShader
	}
	l := &Lowerer{
		unit:       unit,
		shaderType: shaderType,
		program: &ir.Program{
			Type:    irType,
			Version: unit.Version,
		},
		errs:           errs,
		locations:      make(map[int]regLoc),
		functionLabels: make(map[string]int),
		returnRegs:     make(map[string]regLoc),
		nextLabel:      1,
	}

	l.assignBuiltinRegisters()
	l.assignGlobalRegisters()
	l.markUniformUsage()

	// Subroutines first so calls know their labels, main last.
	main := unit.Main()
	for _, fn := range unit.Functions {
		if fn == main || !fn.Signature.Defined {
			continue
		}
		l.declareFunctionLabel(fn)
	}
	if main != nil {
		l.lowerFunctionBody(main)
		l.emit(ir.Instruction{Op: ir.OpRet})
	}
	for _, fn := range unit.Functions {
		if fn == main || !fn.Signature.Defined {
			continue
		}
		l.lowerSubroutine(fn)
	}

	l.program.TempCount = l.tempHigh
	return l.program
}

func (l *Lowerer) emit(inst ir.Instruction) int {
	inst.Line = l.currentLine
	return l.program.Emit(inst)
}

func (l *Lowerer) errorAt(loc pp.Location, token, format string, args ...interface{}) {
	l.errs.Add(loc, token, format, args...)
}

func (l *Lowerer) newLabel() int {
	label := l.nextLabel
	l.nextLabel++
	return label
}

// Register allocation

func (l *Lowerer) allocTemp(count int) int {
	if count == 1 && len(l.freeTemps) > 0 {
		r := l.freeTemps[len(l.freeTemps)-1]
		l.freeTemps = l.freeTemps[:len(l.freeTemps)-1]
		return r
	}
	base := l.tempHigh
	l.tempHigh += count
	return base
}

func (l *Lowerer) freeTemp(base, count int) {
	if count == 1 {
		l.freeTemps = append(l.freeTemps, base)
	}
	// Multi-register frames stay allocated; they are rare and scoped
	// to one function.
}

// Builtin register layout. Fixed indices keep the pipeline
// specializer independent of declaration order.
const (
	// Vertex outputs
	RegPosition  = 0
	RegPointSize = 1
	// First vertex varying output
	RegFirstVarying = 2

	// Fragment inputs
	RegFragCoord   = 0
	RegFrontFacing = 1
	RegPointCoord  = 2
	// First fragment varying input
	RegFirstFragVarying = 3
)

func (l *Lowerer) assignBuiltinRegisters() {
	p := l.program
	if l.shaderType == VertexShaderKind {
		p.Outputs = append(p.Outputs,
			ir.Varying{Name: "gl_Position", Register: RegPosition, Size: 1, Components: 4},
			ir.Varying{Name: "gl_PointSize", Register: RegPointSize, Size: 1, Components: 1},
		)
	} else {
		p.Inputs = append(p.Inputs,
			ir.Varying{Name: "gl_FragCoord", Register: RegFragCoord, Size: 1, Components: 4},
			ir.Varying{Name: "gl_FrontFacing", Register: RegFrontFacing, Size: 1, Components: 1, Interpolation: ir.InterpFlat},
			ir.Varying{Name: "gl_PointCoord", Register: RegPointCoord, Size: 1, Components: 2},
		)
	}
}

// builtinLocation resolves builtin variable names to their fixed
// registers.
func (l *Lowerer) builtinLocation(name string, typ *Type) (regLoc, bool) {
	if l.shaderType == VertexShaderKind {
		switch name {
		case "gl_Position":
			return regLoc{bank: ir.BankOutput, base: RegPosition, count: 1, typ: typ}, true
		case "gl_PointSize":
			return regLoc{bank: ir.BankOutput, base: RegPointSize, count: 1, typ: typ}, true
		}
		return regLoc{}, false
	}
	switch name {
	case "gl_FragCoord":
		return regLoc{bank: ir.BankInput, base: RegFragCoord, count: 1, typ: typ}, true
	case "gl_FrontFacing":
		return regLoc{bank: ir.BankInput, base: RegFrontFacing, count: 1, typ: typ}, true
	case "gl_PointCoord":
		return regLoc{bank: ir.BankInput, base: RegPointCoord, count: 1, typ: typ}, true
	case "gl_FragColor":
		return regLoc{bank: ir.BankOutput, base: 0, count: 1, typ: typ}, true
	case "gl_FragData":
		return regLoc{bank: ir.BankOutput, base: 0, count: maxDrawBuffers, typ: typ}, true
	}
	return regLoc{}, false
}

func interpolationOf(t *Type) ir.Interpolation {
	switch {
	case t.Flat:
		return ir.InterpFlat
	case t.Centroid:
		return ir.InterpCentroid
	}
	return ir.InterpSmooth
}

// assignGlobalRegisters lays out uniforms, samplers, attributes,
// varyings, and fragment outputs, and records global constants.
func (l *Lowerer) assignGlobalRegisters() {
	p := l.program

	nextUniform := 0
	nextSampler := 0
	nextInput := 0
	nextOutput := 0
	if l.shaderType == VertexShaderKind {
		nextOutput = RegFirstVarying
	} else {
		nextInput = RegFirstFragVarying
	}

	for _, g := range l.unit.Globals {
		typ := g.DeclType
		switch typ.Qualifier {
		case QualUniform:
			if typ.Basic.IsSampler() {
				count := 1
				if typ.IsArray() {
					count = typ.ArraySize
				}
				kind := samplerKindOf(typ.Basic)
				for i := 0; i < count; i++ {
					p.Samplers = append(p.Samplers, ir.Sampler{
						Name: g.Name, Register: nextSampler + i, Kind: kind,
					})
				}
				l.locations[g.ID] = regLoc{bank: ir.BankSampler, base: nextSampler, count: count, typ: typ}
				nextSampler += count
				continue
			}
			count := typ.Registers()
			p.Uniforms = append(p.Uniforms, ir.Uniform{
				Name: g.Name, Register: nextUniform, Size: count,
				Components: typ.Components(), Unused: true,
			})
			l.locations[g.ID] = regLoc{bank: ir.BankUniform, base: nextUniform, count: count, typ: typ}
			nextUniform += count

		case QualAttribute, QualVertexIn:
			count := typ.Registers()
			reg := nextInput
			if typ.Location >= 0 {
				reg = typ.Location
				if reg+count > nextInput {
					nextInput = reg + count
				}
			} else {
				nextInput += count
			}
			p.Inputs = append(p.Inputs, ir.Varying{
				Name: g.Name, Register: reg, Size: count, Components: typ.Components(),
			})
			l.locations[g.ID] = regLoc{bank: ir.BankInput, base: reg, count: count, typ: typ}

		case QualVaryingIn:
			count := typ.Registers()
			p.Inputs = append(p.Inputs, ir.Varying{
				Name: g.Name, Register: nextInput, Size: count,
				Components: typ.Components(), Interpolation: interpolationOf(typ),
			})
			l.locations[g.ID] = regLoc{bank: ir.BankInput, base: nextInput, count: count, typ: typ}
			nextInput += count

		case QualVaryingOut:
			count := typ.Registers()
			p.Outputs = append(p.Outputs, ir.Varying{
				Name: g.Name, Register: nextOutput, Size: count,
				Components: typ.Components(), Interpolation: interpolationOf(typ),
			})
			l.locations[g.ID] = regLoc{bank: ir.BankOutput, base: nextOutput, count: count, typ: typ}
			nextOutput += count

		case QualFragmentOut:
			count := typ.Registers()
			reg := nextOutput
			if typ.Location >= 0 {
				reg = typ.Location
				if reg+count > nextOutput {
					nextOutput = reg + count
				}
			} else {
				nextOutput += count
			}
			p.Outputs = append(p.Outputs, ir.Varying{
				Name: g.Name, Register: reg, Size: count, Components: typ.Components(),
			})
			l.locations[g.ID] = regLoc{bank: ir.BankOutput, base: reg, count: count, typ: typ}

		case QualConst, QualConstExpr:
			// Global constants fold at use sites; no register.

		default:
			// Plain globals live in the temp bank for the whole
			// program.
			count := typ.Registers()
			base := l.allocTemp(count)
			l.locations[g.ID] = regLoc{bank: ir.BankTemp, base: base, count: count, typ: typ}
		}
	}

	// ESSL1 fragment outputs are implicit.
	if l.shaderType == FragmentShaderKind && l.unit.Version < 300 {
		p.Outputs = append(p.Outputs, ir.Varying{
			Name: "gl_FragColor", Register: 0, Size: maxDrawBuffers, Components: 4,
		})
	}
}

func samplerKindOf(b BasicType) ir.SamplerKind {
	switch b {
	case TSamplerCube:
		return ir.SamplerCube
	case TSampler3D:
		return ir.Sampler3D
	case TSampler2DArray:
		return ir.Sampler2DArray
	}
	return ir.Sampler2D
}

// markUniformUsage clears the Unused flag of every uniform the AST
// references.
func (l *Lowerer) markUniformUsage() {
	used := make(map[int]bool)
	var walkExpr func(Expr)
	var walkStmt func(Stmt)

	walkExpr = func(e Expr) {
		switch n := e.(type) {
		case nil:
		case *SymbolExpr:
			used[n.ID] = true
		case *UnaryExpr:
			walkExpr(n.Operand)
		case *BinaryExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *IndexExpr:
			walkExpr(n.Base)
			walkExpr(n.Index)
		case *FieldExpr:
			walkExpr(n.Base)
		case *SwizzleExpr:
			walkExpr(n.Base)
		case *SelectExpr:
			walkExpr(n.Cond)
			walkExpr(n.TrueExpr)
			walkExpr(n.FalseExpr)
		case *CallExpr:
			for _, a := range n.Args {
				walkExpr(a)
			}
		}
	}
	walkStmt = func(s Stmt) {
		switch n := s.(type) {
		case nil:
		case *BlockStmt:
			for _, st := range n.Stmts {
				walkStmt(st)
			}
		case *DeclStmt:
			walkExpr(n.Init)
		case *ExprStmt:
			walkExpr(n.Expr)
		case *IfStmt:
			walkExpr(n.Cond)
			walkStmt(n.Then)
			walkStmt(n.Else)
		case *LoopStmt:
			walkStmt(n.Init)
			walkExpr(n.Cond)
			walkExpr(n.Step)
			walkStmt(n.Body)
		case *BranchStmt:
			walkExpr(n.Expr)
		}
	}
	for _, fn := range l.unit.Functions {
		walkStmt(fn.Body)
	}

	uniformIndex := 0
	for _, g := range l.unit.Globals {
		if g.DeclType.Qualifier != QualUniform || g.DeclType.Basic.IsSampler() {
			continue
		}
		if used[g.ID] {
			l.program.Uniforms[uniformIndex].Unused = false
		}
		uniformIndex++
	}
}

// Functions

func (l *Lowerer) declareFunctionLabel(fn *FunctionDecl) {
	key := fn.Signature.Mangled()
	l.functionLabels[key] = l.newLabel()

	// Parameters and the return slot get stable temp registers.
	for i := range fn.Signature.Params {
		param := &fn.Signature.Params[i]
		count := param.Type.Registers()
		base := l.allocTemp(count)
		l.locations[param.ID] = regLoc{bank: ir.BankTemp, base: base, count: count, typ: param.Type}
	}
	if fn.Signature.ReturnType.Basic != TVoid {
		count := fn.Signature.ReturnType.Registers()
		base := l.allocTemp(count)
		l.returnRegs[key] = regLoc{bank: ir.BankTemp, base: base, count: count, typ: fn.Signature.ReturnType}
	}
}

func (l *Lowerer) lowerSubroutine(fn *FunctionDecl) {
	label := l.functionLabels[fn.Signature.Mangled()]
	l.emit(ir.Instruction{Op: ir.OpLabel, Label: label})
	if ret, ok := l.returnRegs[fn.Signature.Mangled()]; ok {
		l.activeReturn = &ret
	}
	l.lowerFunctionBody(fn)
	l.activeReturn = nil
	l.emit(ir.Instruction{Op: ir.OpRet})
}

func (l *Lowerer) lowerFunctionBody(fn *FunctionDecl) {
	// Lower global initializers at the top of main.
	if fn.Signature.Name == "main" {
		for _, g := range l.unit.Globals {
			loc, ok := l.locations[g.ID]
			if ok && loc.bank == ir.BankTemp && g.Init != nil {
				l.lowerAssignTo(loc, g.Init)
			}
		}
	}
	l.lowerStmt(fn.Body)
}

// Statements

func (l *Lowerer) lowerStmt(s Stmt) {
	switch n := s.(type) {
	case nil:
	case *BlockStmt:
		for _, st := range n.Stmts {
			l.lowerStmt(st)
		}
	case *DeclStmt:
		l.lowerDecl(n)
	case *ExprStmt:
		l.currentLine = n.Loc().Line
		op := l.lowerExpr(n.Expr)
		l.release(op)
	case *IfStmt:
		l.lowerIf(n)
	case *LoopStmt:
		l.lowerLoop(n)
	case *BranchStmt:
		l.lowerBranch(n)
	}
}

// maxLoopIterations bounds non-counted loops so a shader cannot hang
// the rasterizer.
const maxLoopIterations = 0x00FFFFFF

// lowerLoop emits a counted loop for the canonical inductive form and
// a bounded conditional loop otherwise. Counted loops carry
// (count, init, step) in a constant register; the executor updates
// the index register between iterations.
func (l *Lowerer) lowerLoop(n *LoopStmt) {
	l.currentLine = n.Loc().Line

	if n.Kind == LoopFor && n.IndexID != 0 {
		if l.lowerCountedLoop(n) {
			return
		}
	}
	l.lowerGenericLoop(n)
}

// lowerCountedLoop handles for-loops in the canonical form. Returns
// false when the header does not fold.
func (l *Lowerer) lowerCountedLoop(n *LoopStmt) bool {
	decl, ok := n.Init.(*DeclStmt)
	if !ok {
		return false
	}
	cond, ok := n.Cond.(*BinaryExpr)
	if !ok {
		return false
	}

	initVal, ok := l.foldLower(decl.Init)
	if !ok || len(initVal) != 1 {
		return false
	}
	limitVal, ok := l.foldLower(cond.Right)
	if !ok || len(limitVal) != 1 {
		return false
	}

	step := 1.0
	switch s := n.Step.(type) {
	case *UnaryExpr:
		if s.Op == OpPreDecrement || s.Op == OpPostDecrement {
			step = -1
		}
	case *BinaryExpr:
		sv, ok := l.foldLower(s.Right)
		if !ok || len(sv) != 1 {
			return false
		}
		step = float64(sv[0].FloatValue())
		if s.Op == OpSubAssign {
			step = -step
		}
	default:
		return false
	}
	if step == 0 {
		return false
	}

	// Simulate the loop header to a trip count.
	value := float64(initVal[0].FloatValue())
	limit := float64(limitVal[0].FloatValue())
	count := 0
	holds := func(v float64) bool {
		switch cond.Op {
		case OpLess:
			return v < limit
		case OpLessEqual:
			return v <= limit
		case OpGreater:
			return v > limit
		case OpGreaterEqual:
			return v >= limit
		case OpEqual:
			return v == limit
		case OpNotEqual:
			return v != limit
		}
		return false
	}
	for holds(value) && count < maxLoopIterations {
		count++
		value += step
	}

	// Index register.
	base := l.allocTemp(1)
	loc := regLoc{bank: ir.BankTemp, base: base, count: 1, typ: decl.DeclType}
	l.locations[decl.ID] = loc

	ctrl := l.program.AddConstant([4]float32{
		float32(count), initVal[0].FloatValue(), float32(step), 0,
	})

	label := l.newLabel()
	l.emit(ir.Instruction{
		Op:     ir.OpLoop,
		Label:  label,
		Unroll: n.Unroll,
		Dst:    ir.Dest{Register: ir.Register{Bank: ir.BankTemp, Index: base}, Mask: 0x1},
		Src: [4]ir.Source{{
			Register: ir.Register{Bank: ir.BankConstant, Index: ctrl},
			Swizzle:  ir.SwizzleIdentity,
		}},
	})

	l.loops = append(l.loops, loweredLoop{emitTail: func() {}})
	l.lowerStmt(n.Body)
	l.loops = l.loops[:len(l.loops)-1]

	l.emit(ir.Instruction{Op: ir.OpEndLoop, Label: label})
	return true
}

// lowerGenericLoop emits while/do-while and non-canonical for loops
// as a bounded loop with an explicit conditional break.
func (l *Lowerer) lowerGenericLoop(n *LoopStmt) {
	if n.Init != nil {
		l.lowerStmt(n.Init)
	}

	ctrl := l.program.AddConstant([4]float32{maxLoopIterations, 0, 1, 0})
	label := l.newLabel()

	emitCondBreak := func() {
		if n.Cond == nil {
			return
		}
		cond := l.lowerExpr(n.Cond)
		if cond == nil {
			return
		}
		not := l.tempDest(1)
		l.emit(ir.Instruction{Op: ir.OpNot, Dst: not, Src: [4]ir.Source{cond.src}})
		l.release(cond)
		l.emit(ir.Instruction{Op: ir.OpBreakC, Src: [4]ir.Source{l.destAsSource(not)}})
		l.freeTemp(not.Index, 1)
	}
	emitStep := func() {
		if n.Step != nil {
			step := l.lowerExpr(n.Step)
			l.release(step)
		}
	}

	l.emit(ir.Instruction{
		Op:    ir.OpLoop,
		Label: label,
		Src: [4]ir.Source{{
			Register: ir.Register{Bank: ir.BankConstant, Index: ctrl},
			Swizzle:  ir.SwizzleIdentity,
		}},
	})

	switch n.Kind {
	case LoopDoWhile:
		l.loops = append(l.loops, loweredLoop{emitTail: emitCondBreak})
		l.lowerStmt(n.Body)
		l.loops = l.loops[:len(l.loops)-1]
		emitCondBreak()
	default:
		emitCondBreak()
		l.loops = append(l.loops, loweredLoop{emitTail: emitStep})
		l.lowerStmt(n.Body)
		l.loops = l.loops[:len(l.loops)-1]
		emitStep()
	}

	l.emit(ir.Instruction{Op: ir.OpEndLoop, Label: label})
}

func (l *Lowerer) lowerDecl(d *DeclStmt) {
	l.currentLine = d.Loc().Line
	if d.DeclType.Qualifier == QualConstExpr {
		// Folded constants need no storage.
		return
	}
	count := d.DeclType.Registers()
	base := l.allocTemp(count)
	loc := regLoc{bank: ir.BankTemp, base: base, count: count, typ: d.DeclType}
	l.locations[d.ID] = loc
	if d.Init != nil {
		l.lowerAssignTo(loc, d.Init)
	}
}

func (l *Lowerer) lowerIf(n *IfStmt) {
	l.currentLine = n.Loc().Line
	cond := l.lowerExpr(n.Cond)
	if cond == nil {
		return
	}
	label := l.newLabel()
	l.emit(ir.Instruction{Op: ir.OpIf, Label: label, Src: [4]ir.Source{cond.src}})
	l.release(cond)
	l.lowerStmt(n.Then)
	if n.Else != nil {
		l.emit(ir.Instruction{Op: ir.OpElse, Label: label})
		l.lowerStmt(n.Else)
	}
	l.emit(ir.Instruction{Op: ir.OpEndIf, Label: label})
}

func (l *Lowerer) lowerBranch(n *BranchStmt) {
	l.currentLine = n.Loc().Line
	switch n.Kind {
	case BranchDiscard:
		l.emit(ir.Instruction{Op: ir.OpDiscard})
	case BranchBreak:
		l.emit(ir.Instruction{Op: ir.OpBreak})
	case BranchContinue:
		if len(l.loops) > 0 {
			l.loops[len(l.loops)-1].emitTail()
		}
		l.emit(ir.Instruction{Op: ir.OpContinue})
	case BranchReturn:
		if n.Expr != nil && l.activeReturn != nil {
			l.lowerAssignTo(*l.activeReturn, n.Expr)
		}
		l.emit(ir.Instruction{Op: ir.OpRet})
	}
}
