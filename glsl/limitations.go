package glsl

import pp "github.com/gogpu/swgl/preprocessor"

// loopInfo is one entry of the validation loop stack.
type loopInfo struct {
	indexID int
	loop    *LoopStmt
}

// LimitationsValidator enforces the shading-language appendix
// restrictions on version 100 shaders: for-loops must have the
// canonical inductive form, loop indices are immutable inside the
// body and may not flow into out/inout parameters, and array indices
// must be constant-index-expressions. Integer-indexed loops are
// marked for unrolling.
type LimitationsValidator struct {
	shaderType ShaderKind
	version    int
	errs       *SourceErrors

	loopStack []loopInfo
}

// ValidateLimitations runs the validator over a translation unit.
// For version 300 shaders the loop-form, loop-kind and constant-index
// restrictions are not enforced; canonical for-loops are still
// tracked, so unroll marking and the checks against writing the loop
// index (directly or through an out/inout argument) still apply.
func ValidateLimitations(unit *TranslationUnit, shaderType ShaderKind, errs *SourceErrors) {
	v := &LimitationsValidator{shaderType: shaderType, version: unit.Version, errs: errs}
	for _, fn := range unit.Functions {
		v.walkStmt(fn.Body)
	}
}

func (v *LimitationsValidator) strict() bool {
	return v.version < 300
}

func (v *LimitationsValidator) error(loc pp.Location, token, format string, args ...interface{}) {
	v.errs.Add(loc, token, format, args...)
}

func (v *LimitationsValidator) isLoopIndex(id int) bool {
	for i := range v.loopStack {
		if v.loopStack[i].indexID == id {
			return true
		}
	}
	return false
}

func (v *LimitationsValidator) markUnroll(id int) {
	for i := range v.loopStack {
		if v.loopStack[i].indexID == id {
			v.loopStack[i].loop.Unroll = true
			return
		}
	}
}

// isConstExpr reports a structurally constant expression: literals,
// const-qualified symbols, and operators over them.
func isConstExpr(e Expr) bool {
	switch n := e.(type) {
	case *LiteralExpr:
		return true
	case *SymbolExpr:
		return n.Type().Qualifier == QualConstExpr
	case *UnaryExpr:
		return !n.Op.IsAssignment() && isConstExpr(n.Operand)
	case *BinaryExpr:
		return !n.Op.IsAssignment() && isConstExpr(n.Left) && isConstExpr(n.Right)
	case *SwizzleExpr:
		return isConstExpr(n.Base)
	case *CallExpr:
		if !n.Constructor {
			return false
		}
		for _, a := range n.Args {
			if !isConstExpr(a) {
				return false
			}
		}
		return true
	}
	return false
}

// isConstIndexExpr additionally admits loop indices.
func (v *LimitationsValidator) isConstIndexExpr(e Expr) bool {
	switch n := e.(type) {
	case *SymbolExpr:
		return n.Type().Qualifier == QualConstExpr || v.isLoopIndex(n.ID)
	case *UnaryExpr:
		return !n.Op.IsAssignment() && v.isConstIndexExpr(n.Operand)
	case *BinaryExpr:
		return !n.Op.IsAssignment() && v.isConstIndexExpr(n.Left) && v.isConstIndexExpr(n.Right)
	case *LiteralExpr:
		return true
	case *SwizzleExpr:
		return v.isConstIndexExpr(n.Base)
	case *CallExpr:
		if !n.Constructor {
			return false
		}
		for _, a := range n.Args {
			if !v.isConstIndexExpr(a) {
				return false
			}
		}
		return true
	}
	return false
}

func (v *LimitationsValidator) walkStmt(s Stmt) {
	switch n := s.(type) {
	case nil:
	case *BlockStmt:
		for _, st := range n.Stmts {
			v.walkStmt(st)
		}
	case *DeclStmt:
		if n.Init != nil {
			v.walkExpr(n.Init)
		}
	case *ExprStmt:
		v.walkExpr(n.Expr)
	case *IfStmt:
		v.walkExpr(n.Cond)
		v.walkStmt(n.Then)
		v.walkStmt(n.Else)
	case *LoopStmt:
		v.walkLoop(n)
	case *BranchStmt:
		if n.Expr != nil {
			v.walkExpr(n.Expr)
		}
	}
}

func (v *LimitationsValidator) walkLoop(loop *LoopStmt) {
	if loop.Kind != LoopFor {
		if v.strict() {
			word := "while"
			if loop.Kind == LoopDoWhile {
				word = "do"
			}
			v.error(loop.Loc(), word, "this type of loop is not allowed")
			return
		}
		v.walkExpr(loop.Cond)
		v.walkStmt(loop.Body)
		return
	}

	info, ok := v.validateForLoopHeader(loop)
	if !ok {
		if v.strict() {
			return
		}
		// Non-canonical for loops are legal past version 100 but get
		// no index tracking.
		v.walkStmt(loop.Init)
		v.walkExpr(loop.Cond)
		v.walkExpr(loop.Step)
		v.walkStmt(loop.Body)
		return
	}

	loop.IndexID = info.indexID

	// Integer loop indices force unrolling so the index can feed
	// addressing in the lowered program.
	if decl, isDecl := loop.Init.(*DeclStmt); isDecl && decl.DeclType.Basic.IsInteger() {
		loop.Unroll = true
	}

	v.loopStack = append(v.loopStack, info)
	v.walkStmt(loop.Body)
	v.loopStack = v.loopStack[:len(v.loopStack)-1]
}

// validateForLoopHeader checks the canonical for-loop form:
//
//	for (T index = constant; index ⊙ constant; step)
func (v *LimitationsValidator) validateForLoopHeader(loop *LoopStmt) (loopInfo, bool) {
	info := loopInfo{loop: loop}
	strict := v.strict()

	decl, ok := loop.Init.(*DeclStmt)
	if !ok {
		if strict {
			v.error(loop.Loc(), "for", "missing init declaration")
		}
		return info, false
	}
	basic := decl.DeclType.Basic
	if basic != TInt && basic != TUInt && basic != TFloat {
		if strict {
			v.error(loop.Loc(), decl.Name, "invalid type for loop index")
		}
		return info, false
	}
	if decl.Init == nil || !isConstExpr(decl.Init) {
		if strict {
			v.error(loop.Loc(), decl.Name, "loop index cannot be initialized with non-constant expression")
		}
		return info, false
	}
	info.indexID = decl.ID

	cond, ok := loop.Cond.(*BinaryExpr)
	if !ok {
		if strict {
			v.error(loop.Loc(), "for", "invalid condition")
		}
		return info, false
	}
	sym, ok := cond.Left.(*SymbolExpr)
	if !ok || sym.ID != info.indexID {
		if strict {
			v.error(cond.Loc(), "for", "expected loop index on the left of the condition")
		}
		return info, false
	}
	switch cond.Op {
	case OpEqual, OpNotEqual, OpLess, OpGreater, OpLessEqual, OpGreaterEqual:
	default:
		if strict {
			v.error(cond.Loc(), cond.Op.String(), "invalid relational operator")
		}
		return info, false
	}
	if !isConstExpr(cond.Right) {
		if strict {
			v.error(cond.Loc(), sym.Name, "loop index cannot be compared with non-constant expression")
		}
		return info, false
	}

	switch step := loop.Step.(type) {
	case *UnaryExpr:
		s, ok := step.Operand.(*SymbolExpr)
		if !ok || s.ID != info.indexID {
			if strict {
				v.error(step.Loc(), "for", "expected loop index in the loop expression")
			}
			return info, false
		}
		switch step.Op {
		case OpPreIncrement, OpPreDecrement, OpPostIncrement, OpPostDecrement:
		default:
			if strict {
				v.error(step.Loc(), step.Op.String(), "invalid operator")
			}
			return info, false
		}
	case *BinaryExpr:
		s, ok := step.Left.(*SymbolExpr)
		if !ok || s.ID != info.indexID {
			if strict {
				v.error(step.Loc(), "for", "expected loop index in the loop expression")
			}
			return info, false
		}
		switch step.Op {
		case OpAddAssign, OpSubAssign:
		default:
			if strict {
				v.error(step.Loc(), step.Op.String(), "invalid operator")
			}
			return info, false
		}
		if !isConstExpr(step.Right) {
			if strict {
				v.error(step.Loc(), s.Name, "loop index cannot be modified by non-constant expression")
			}
			return info, false
		}
	default:
		if strict {
			v.error(loop.Loc(), "for", "missing or invalid loop expression")
		}
		return info, false
	}

	return info, true
}

func (v *LimitationsValidator) walkExpr(e Expr) {
	switch n := e.(type) {
	case nil:
	case *UnaryExpr:
		if n.Op.IsAssignment() {
			v.checkIndexAssignment(n.Operand, n.Loc())
		}
		v.walkExpr(n.Operand)
	case *BinaryExpr:
		if n.Op.IsAssignment() {
			v.checkIndexAssignment(n.Left, n.Loc())
		}
		v.walkExpr(n.Left)
		v.walkExpr(n.Right)
	case *IndexExpr:
		v.validateIndexing(n)
		v.walkExpr(n.Base)
		v.walkExpr(n.Index)
	case *FieldExpr:
		v.walkExpr(n.Base)
	case *SwizzleExpr:
		v.walkExpr(n.Base)
	case *SelectExpr:
		v.walkExpr(n.Cond)
		v.walkExpr(n.TrueExpr)
		v.walkExpr(n.FalseExpr)
	case *CallExpr:
		v.validateCall(n)
		for _, a := range n.Args {
			v.walkExpr(a)
		}
	}
}

// checkIndexAssignment rejects writes to any active loop index.
func (v *LimitationsValidator) checkIndexAssignment(target Expr, loc pp.Location) {
	if sym, ok := target.(*SymbolExpr); ok && v.isLoopIndex(sym.ID) {
		v.error(loc, sym.Name, "loop index cannot be statically assigned to within the body of the loop")
	}
}

// validateCall rejects loop indices flowing into out/inout
// parameters.
func (v *LimitationsValidator) validateCall(call *CallExpr) {
	if call.Signature == nil {
		return
	}
	for i, param := range call.Signature.Params {
		if i >= len(call.Args) {
			break
		}
		q := param.Type.Qualifier
		if q != QualOut && q != QualInOut {
			continue
		}
		if sym, ok := call.Args[i].(*SymbolExpr); ok && v.isLoopIndex(sym.ID) {
			v.error(call.Loc(), sym.Name, "loop index cannot be used as argument to a function out or inout parameter")
		}
	}
}

// validateIndexing enforces the constant-index-expression rule and
// marks loops whose index addresses a sampler array.
func (v *LimitationsValidator) validateIndexing(idx *IndexExpr) {
	if !idx.Index.Type().IsScalarInt() && v.strict() {
		if idx.Index.Type().Basic != TFloat {
			v.error(idx.Loc(), "[]", "index expression must have integral type")
		}
	}

	// Loop indices addressing sampler arrays force unrolling.
	if idx.Base.Type().Basic.IsSampler() {
		v.markSamplerIndexLoops(idx.Index)
	}

	if !v.strict() {
		return
	}

	// Uniforms in vertex shaders may use dynamic indices.
	if v.shaderType == VertexShaderKind && idx.Base.Type().Qualifier == QualUniform {
		return
	}
	if !v.isConstIndexExpr(idx.Index) {
		v.error(idx.Loc(), "[]", "index expression must be constant")
	}
}

func (v *LimitationsValidator) markSamplerIndexLoops(e Expr) {
	switch n := e.(type) {
	case *SymbolExpr:
		if v.isLoopIndex(n.ID) {
			v.markUnroll(n.ID)
		}
	case *UnaryExpr:
		v.markSamplerIndexLoops(n.Operand)
	case *BinaryExpr:
		v.markSamplerIndexLoops(n.Left)
		v.markSamplerIndexLoops(n.Right)
	}
}
