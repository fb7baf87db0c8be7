package glsl

import (
	"strconv"
	"strings"

	pp "github.com/gogpu/swgl/preprocessor"
)

// expression parses a full expression including the comma operator.
func (p *Parser) expression() Expr {
	expr := p.assignmentExpression()
	for p.check(pp.TokenComma) {
		t := p.advance()
		right := p.assignmentExpression()
		if expr == nil || right == nil {
			return nil
		}
		seq := &BinaryExpr{Op: OpComma, Left: expr, Right: right}
		seq.Location = t.Location
		seq.Typ = right.Type()
		expr = seq
	}
	return expr
}

var assignOps = map[pp.TokenKind]Operator{
	pp.TokenEqual:               OpAssign,
	pp.TokenPlusEqual:           OpAddAssign,
	pp.TokenMinusEqual:          OpSubAssign,
	pp.TokenStarEqual:           OpMulAssign,
	pp.TokenSlashEqual:          OpDivAssign,
	pp.TokenPercentEqual:        OpIModAssign,
	pp.TokenAmpEqual:            OpBitAndAssign,
	pp.TokenPipeEqual:           OpBitOrAssign,
	pp.TokenCaretEqual:          OpBitXorAssign,
	pp.TokenLessLessEqual:       OpShiftLeftAssign,
	pp.TokenGreaterGreaterEqual: OpShiftRightAssign,
}

func (p *Parser) assignmentExpression() Expr {
	left := p.conditionalExpression()
	op, isAssign := assignOps[p.peek().Kind]
	if !isAssign {
		return left
	}
	t := p.advance()
	right := p.assignmentExpression()
	if left == nil || right == nil {
		return nil
	}

	p.checkLValue(left, t)
	typ := p.assignmentResultType(op, left, right, t)

	expr := &BinaryExpr{Op: op, Left: left, Right: right}
	expr.Location = t.Location
	expr.Typ = typ
	return expr
}

func (p *Parser) conditionalExpression() Expr {
	cond := p.binaryExpression(0)
	if !p.check(pp.TokenQuestion) {
		return cond
	}
	t := p.advance()
	trueExpr := p.assignmentExpression()
	p.expect(pp.TokenColon, "':'")
	falseExpr := p.assignmentExpression()
	if cond == nil || trueExpr == nil || falseExpr == nil {
		return nil
	}

	if !(cond.Type().Basic == TBool && cond.Type().IsScalar()) {
		p.errorAt(t, "ternary condition must be a scalar boolean")
	}
	if !trueExpr.Type().SameAs(falseExpr.Type()) {
		p.errorAt(t, "ternary operands must match: %s vs %s",
			trueExpr.Type().String(), falseExpr.Type().String())
	}

	expr := &SelectExpr{Cond: cond, TrueExpr: trueExpr, FalseExpr: falseExpr}
	expr.Location = t.Location
	expr.Typ = trueExpr.Type()
	return expr
}

// binaryOp describes one precedence level.
type binaryOp struct {
	kind pp.TokenKind
	op   Operator
}

// binaryPrecedence orders levels loosest first.
var binaryPrecedence = [][]binaryOp{
	{{pp.TokenPipePipe, OpLogicalOr}},
	{{pp.TokenCaretCaret, OpLogicalXor}},
	{{pp.TokenAmpAmp, OpLogicalAnd}},
	{{pp.TokenPipe, OpBitOr}},
	{{pp.TokenCaret, OpBitXor}},
	{{pp.TokenAmpersand, OpBitAnd}},
	{{pp.TokenEqualEqual, OpEqual}, {pp.TokenBangEqual, OpNotEqual}},
	{
		{pp.TokenLess, OpLess}, {pp.TokenGreater, OpGreater},
		{pp.TokenLessEqual, OpLessEqual}, {pp.TokenGreaterEqual, OpGreaterEqual},
	},
	{{pp.TokenLessLess, OpShiftLeft}, {pp.TokenGreaterGreater, OpShiftRight}},
	{{pp.TokenPlus, OpAdd}, {pp.TokenMinus, OpSub}},
	{{pp.TokenStar, OpMul}, {pp.TokenSlash, OpDiv}, {pp.TokenPercent, OpIMod}},
}

func (p *Parser) binaryExpression(level int) Expr {
	if level >= len(binaryPrecedence) {
		return p.unaryExpression()
	}
	left := p.binaryExpression(level + 1)
	for {
		var matched *binaryOp
		for i := range binaryPrecedence[level] {
			if p.check(binaryPrecedence[level][i].kind) {
				matched = &binaryPrecedence[level][i]
				break
			}
		}
		if matched == nil {
			return left
		}
		t := p.advance()
		right := p.binaryExpression(level + 1)
		if left == nil || right == nil {
			return nil
		}
		left, right = p.promoteMixedArithmetic(matched.op, left, right)
		typ := p.binaryResultType(matched.op, left, right, t)
		expr := &BinaryExpr{Op: matched.op, Left: left, Right: right}
		expr.Location = t.Location
		expr.Typ = typ
		left = expr
	}
}

func (p *Parser) unaryExpression() Expr {
	t := p.peek()
	var op Operator
	switch t.Kind {
	case pp.TokenMinus:
		op = OpNegate
	case pp.TokenBang:
		op = OpLogicalNot
	case pp.TokenTilde:
		op = OpBitNot
	case pp.TokenPlusPlus:
		op = OpPreIncrement
	case pp.TokenMinusMinus:
		op = OpPreDecrement
	case pp.TokenPlus:
		p.advance()
		return p.unaryExpression()
	default:
		return p.postfixExpression()
	}
	p.advance()
	operand := p.unaryExpression()
	if operand == nil {
		return nil
	}
	if op == OpPreIncrement || op == OpPreDecrement {
		p.checkLValue(operand, t)
	}
	typ := p.unaryResultType(op, operand, t)
	expr := &UnaryExpr{Op: op, Operand: operand}
	expr.Location = t.Location
	expr.Typ = typ
	return expr
}

func (p *Parser) postfixExpression() Expr {
	expr := p.primaryExpression()
	for expr != nil {
		switch p.peek().Kind {
		case pp.TokenLeftBracket:
			expr = p.indexSuffix(expr)
		case pp.TokenDot:
			expr = p.fieldSuffix(expr)
		case pp.TokenPlusPlus, pp.TokenMinusMinus:
			t := p.advance()
			op := OpPostIncrement
			if t.Kind == pp.TokenMinusMinus {
				op = OpPostDecrement
			}
			p.checkLValue(expr, t)
			typ := p.unaryResultType(op, expr, t)
			u := &UnaryExpr{Op: op, Operand: expr}
			u.Location = t.Location
			u.Typ = typ
			expr = u
		default:
			return expr
		}
	}
	return expr
}

func (p *Parser) indexSuffix(base Expr) Expr {
	t := p.advance() // '['
	index := p.expression()
	p.expect(pp.TokenRightBracket, "']'")
	if index == nil {
		return nil
	}

	baseType := base.Type()
	var resultType *Type
	switch {
	case baseType.IsArray():
		resultType = baseType.ElementType()
	case baseType.IsMatrix():
		resultType = baseType.ColumnType()
	case baseType.IsVector():
		resultType = baseType.ComponentType()
	default:
		p.errorAt(t, "cannot index %s", baseType.String())
		return nil
	}

	if !index.Type().IsScalarInt() {
		p.errorAt(t, "index must have integral type")
	}

	expr := &IndexExpr{Base: base, Index: index}
	expr.Location = t.Location
	expr.Typ = resultType

	if values, ok := p.foldConstant(index); ok && len(values) == 1 {
		expr.ConstIndex = int(values[0].IntValue())
		expr.IsConst = true
		limit := baseType.ArraySize
		if baseType.IsMatrix() {
			limit = baseType.Cols
		} else if baseType.IsVector() {
			limit = baseType.Size
		}
		if expr.ConstIndex < 0 || expr.ConstIndex >= limit {
			p.errorAt(t, "index %d out of range", expr.ConstIndex)
		}
	}
	return expr
}

var swizzleLanes = map[byte]int{
	'x': 0, 'y': 1, 'z': 2, 'w': 3,
	'r': 0, 'g': 1, 'b': 2, 'a': 3,
	's': 0, 't': 1, 'p': 2, 'q': 3,
}

func (p *Parser) fieldSuffix(base Expr) Expr {
	dot := p.advance() // '.'
	field := p.expect(pp.TokenIdentifier, "field name")

	baseType := base.Type()
	if baseType.IsStruct() {
		idx := baseType.Struct.FieldIndex(field.Text)
		if idx < 0 {
			p.errorAt(field, "no such field in %s", baseType.Struct.Name)
			return nil
		}
		expr := &FieldExpr{Base: base, Field: field.Text, Index: idx}
		expr.Location = dot.Location
		expr.Typ = baseType.Struct.Fields[idx].Type
		return expr
	}

	if baseType.IsVector() || baseType.IsScalar() {
		lanes, ok := parseSwizzle(field.Text, baseType.Size)
		if !ok {
			p.errorAt(field, "invalid swizzle on %s", baseType.String())
			return nil
		}
		expr := &SwizzleExpr{Base: base, Lanes: lanes, Source: field.Text}
		expr.Location = dot.Location
		expr.Typ = NewVector(baseType.Basic, len(lanes))
		expr.Typ.Precision = baseType.Precision
		return expr
	}

	p.errorAt(field, "cannot select a field of %s", baseType.String())
	return nil
}

// parseSwizzle validates a swizzle string against the vector size.
// All characters must come from one naming set.
func parseSwizzle(text string, size int) ([]int, bool) {
	if len(text) == 0 || len(text) > 4 {
		return nil, false
	}
	set := func(c byte) int {
		switch {
		case strings.IndexByte("xyzw", c) >= 0:
			return 0
		case strings.IndexByte("rgba", c) >= 0:
			return 1
		case strings.IndexByte("stpq", c) >= 0:
			return 2
		}
		return -1
	}
	first := set(text[0])
	if first < 0 {
		return nil, false
	}
	lanes := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		if set(text[i]) != first {
			return nil, false
		}
		lane := swizzleLanes[text[i]]
		if lane >= size {
			return nil, false
		}
		lanes[i] = lane
	}
	return lanes, true
}

func (p *Parser) primaryExpression() Expr {
	t := p.peek()

	switch t.Kind {
	case pp.TokenConstInt:
		p.advance()
		value, err := strconv.ParseInt(t.Text, 0, 64)
		if err != nil || value > 0xFFFFFFFF {
			p.errorAt(t, "integer constant overflow")
			value = 0
		}
		lit := &LiteralExpr{Values: []Scalar{IntScalar(int32(uint32(value)))}}
		lit.Location = t.Location
		lit.Typ = NewType(TInt)
		if strings.HasSuffix(t.Text, "u") || strings.HasSuffix(t.Text, "U") {
			lit.Typ = NewType(TUInt)
			lit.Values[0].Kind = TUInt
		}
		lit.Typ.Qualifier = QualConstExpr
		return lit

	case pp.TokenConstFloat:
		p.advance()
		text := strings.TrimRight(t.Text, "fF")
		value, err := strconv.ParseFloat(text, 32)
		if err != nil {
			p.errorAt(t, "float constant overflow")
			value = 0
		}
		lit := &LiteralExpr{Values: []Scalar{FloatScalar(float32(value))}}
		lit.Location = t.Location
		lit.Typ = NewType(TFloat)
		lit.Typ.Qualifier = QualConstExpr
		return lit

	case pp.TokenLeftParen:
		p.advance()
		expr := p.expression()
		p.expect(pp.TokenRightParen, "')'")
		return expr

	case pp.TokenIdentifier:
		return p.identifierExpression()
	}

	p.errorAt(t, "unexpected token")
	p.advance()
	return nil
}

func (p *Parser) identifierExpression() Expr {
	t := p.peek()

	switch t.Text {
	case "true", "false":
		p.advance()
		lit := &LiteralExpr{Values: []Scalar{BoolScalar(t.Text == "true")}}
		lit.Location = t.Location
		lit.Typ = NewType(TBool)
		lit.Typ.Qualifier = QualConstExpr
		return lit
	}

	// Constructor: a type keyword (or struct name) used as a call.
	if p.isTypeToken() {
		typ, _ := p.typeSpecifier()
		if p.match(pp.TokenLeftBracket) {
			// ESSL3 array constructor: type[size](...)
			if !p.check(pp.TokenRightBracket) {
				typ.ArraySize = p.constantArraySize()
			} else {
				typ.ArraySize = -1 // inferred from argument count
			}
			p.expect(pp.TokenRightBracket, "']'")
		}
		return p.constructorCall(typ, t)
	}

	// Function call?
	if p.peekAhead(1).Kind == pp.TokenLeftParen {
		return p.functionCall()
	}

	p.advance()
	sym := p.table.Find(t.Text)
	if sym == nil {
		p.errorAt(t, "undeclared identifier")
		return nil
	}
	if sym.ConstValue != nil {
		// Constants propagate at parse time so later stages never
		// need the symbol table to fold them.
		lit := &LiteralExpr{Values: sym.ConstValue}
		lit.Location = t.Location
		typ := *sym.Type
		typ.Qualifier = QualConstExpr
		lit.Typ = &typ
		return lit
	}
	expr := &SymbolExpr{Name: sym.Name, ID: sym.ID}
	expr.Location = t.Location
	expr.Typ = sym.Type
	return expr
}

func (p *Parser) callArguments() []Expr {
	p.expect(pp.TokenLeftParen, "'('")
	var args []Expr
	if !p.check(pp.TokenRightParen) {
		// A lone void means no arguments.
		if p.checkIdent("void") && p.peekAhead(1).Kind == pp.TokenRightParen {
			p.advance()
		} else {
			for {
				arg := p.assignmentExpression()
				if arg != nil {
					args = append(args, arg)
				}
				if !p.match(pp.TokenComma) {
					break
				}
			}
		}
	}
	p.expect(pp.TokenRightParen, "')'")
	return args
}

func (p *Parser) constructorCall(typ *Type, t pp.Token) Expr {
	args := p.callArguments()

	supplied := 0
	for _, a := range args {
		if a.Type().IsArray() {
			supplied += a.Type().Components() * a.Type().ArraySize
		} else {
			supplied += a.Type().Components()
		}
		if a.Type().Basic.IsSampler() {
			p.errorAt(t, "samplers cannot be constructor arguments")
			return nil
		}
	}

	if typ.ArraySize == -1 {
		typ.ArraySize = len(args)
	}

	switch {
	case typ.IsArray():
		if len(args) != typ.ArraySize {
			p.errorAt(t, "array constructor needs %d arguments, got %d", typ.ArraySize, len(args))
		}
		element := typ.ElementType()
		for _, a := range args {
			if !a.Type().SameAs(element) {
				p.errorAt(t, "array constructor argument type mismatch")
				break
			}
		}
	case typ.IsStruct():
		if len(args) != len(typ.Struct.Fields) {
			p.errorAt(t, "structure constructor needs %d arguments, got %d", len(typ.Struct.Fields), len(args))
		} else {
			for i, a := range args {
				if !a.Type().SameAs(typ.Struct.Fields[i].Type) {
					p.errorAt(t, "structure constructor argument %d type mismatch", i)
				}
			}
		}
	case typ.IsMatrix():
		// One scalar builds a diagonal matrix; one matrix converts;
		// otherwise components must fill the matrix exactly.
		if len(args) == 1 && args[0].Type().IsMatrix() {
			break
		}
		if len(args) == 1 && args[0].Type().IsScalar() {
			break
		}
		for _, a := range args {
			if a.Type().IsMatrix() {
				p.errorAt(t, "cannot mix matrices with other constructor arguments")
			}
		}
		if supplied != typ.Components() {
			p.errorAt(t, "constructor for %s needs %d components, got %d", typ.String(), typ.Components(), supplied)
		}
	case typ.IsVector():
		if len(args) == 1 && args[0].Type().IsScalar() {
			break // splat
		}
		if supplied < typ.Components() {
			p.errorAt(t, "too few components in %s constructor", typ.String())
		}
	case typ.IsScalar():
		if len(args) != 1 || args[0].Type().Components() < 1 {
			if supplied < 1 {
				p.errorAt(t, "scalar constructor needs an argument")
			}
		}
	case typ.Basic == TVoid:
		p.errorAt(t, "cannot construct void")
		return nil
	}

	result := *typ
	result.Qualifier = QualTemporary
	expr := &CallExpr{Name: typ.String(), Args: args, Constructor: true}
	expr.Location = t.Location
	expr.Typ = &result
	return expr
}

func (p *Parser) functionCall() Expr {
	name := p.advance()
	args := p.callArguments()

	argTypes := make([]*Type, len(args))
	for i, a := range args {
		if a == nil {
			return nil
		}
		argTypes[i] = a.Type()
	}

	// Builtins first; user functions cannot redeclare them.
	if builtin := resolveBuiltin(name.Text, argTypes, p.version); builtin != nil {
		if builtin.Result == nil {
			p.errorAt(name, "no matching overload for '%s'", name.Text)
			return nil
		}
		expr := &CallExpr{Name: name.Text, Args: args, Builtin: builtin}
		expr.Location = name.Location
		expr.Typ = builtin.Result
		return expr
	}

	sig := p.table.FindFunction(name.Text, argTypes)
	if sig == nil {
		p.errorAt(name, "no matching function for call to '%s'", name.Text)
		return nil
	}

	// Out and inout arguments must be lvalues.
	for i, param := range sig.Params {
		if param.Type.Qualifier == QualOut || param.Type.Qualifier == QualInOut {
			p.checkLValue(args[i], name)
		}
	}

	expr := &CallExpr{Name: name.Text, Args: args, Signature: sig}
	expr.Location = name.Location
	expr.Typ = sig.ReturnType
	return expr
}
