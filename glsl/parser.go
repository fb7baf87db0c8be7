package glsl

import (
	"strconv"

	pp "github.com/gogpu/swgl/preprocessor"
)

// ShaderKind selects the stage being compiled.
type ShaderKind uint8

const (
	VertexShaderKind ShaderKind = iota
	FragmentShaderKind
)

// Parser builds a typed AST from preprocessed tokens. Symbol
// resolution and type checking happen during the parse, as the
// grammar requires knowing which identifiers name types.
type Parser struct {
	tokens []pp.Token
	pos    int

	version    int
	shaderType ShaderKind
	table      *SymbolTable
	errs       *SourceErrors
	unit       *TranslationUnit

	currentFunction *FunctionSignature
	loopDepth       int

	// defaultPrecision per basic type, set by precision statements.
	defaultPrecision map[BasicType]Precision
}

// NewParser creates a parser over preprocessed tokens (newline and
// EOF markers are filtered internally).
func NewParser(tokens []pp.Token, version int, shaderType ShaderKind, errs *SourceErrors) *Parser {
	filtered := make([]pp.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind != pp.TokenNewline && t.Kind != pp.TokenEOF {
			filtered = append(filtered, t)
		}
	}
	table := NewSymbolTable()
	declareBuiltinVariables(table, shaderType, version)

	defPrec := map[BasicType]Precision{TInt: PrecisionHigh}
	if shaderType == VertexShaderKind {
		defPrec[TFloat] = PrecisionHigh
	}

	return &Parser{
		tokens:           filtered,
		version:          version,
		shaderType:       shaderType,
		table:            table,
		errs:             errs,
		unit:             &TranslationUnit{Version: version},
		defaultPrecision: defPrec,
	}
}

// Parse consumes the whole token stream and returns the translation
// unit. Errors are accumulated; the returned unit covers whatever
// parsed.
func (p *Parser) Parse() *TranslationUnit {
	for !p.atEnd() {
		before := p.pos
		p.externalDeclaration()
		if p.pos == before {
			// Ensure forward progress on malformed input.
			p.advance()
		}
	}
	if p.unit.Main() == nil {
		p.errs.Add(pp.Location{}, "main", "missing entry point")
	}
	return p.unit
}

// Token helpers

func (p *Parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *Parser) peek() pp.Token {
	if p.atEnd() {
		return pp.Token{Kind: pp.TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAhead(n int) pp.Token {
	if p.pos+n >= len(p.tokens) {
		return pp.Token{Kind: pp.TokenEOF}
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() pp.Token {
	t := p.peek()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) check(kind pp.TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) checkIdent(text string) bool {
	t := p.peek()
	return t.Kind == pp.TokenIdentifier && t.Text == text
}

func (p *Parser) match(kind pp.TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matchIdent(text string) bool {
	if p.checkIdent(text) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind pp.TokenKind, what string) pp.Token {
	if p.check(kind) {
		return p.advance()
	}
	t := p.peek()
	p.errs.Add(t.Location, t.Text, "expected %s", what)
	return t
}

// synchronize skips to the next ';' or '}' after a parse error.
func (p *Parser) synchronize() {
	for !p.atEnd() {
		t := p.advance()
		if t.Kind == pp.TokenSemicolon || t.Kind == pp.TokenRightBrace {
			return
		}
	}
}

func (p *Parser) errorAt(t pp.Token, format string, args ...interface{}) {
	p.errs.Add(t.Location, t.Text, format, args...)
}

// Keyword recognition. All keywords reach the parser as identifier
// tokens; classification happens here.

var storageKeywords = map[string]bool{
	"const": true, "attribute": true, "varying": true, "uniform": true,
	"in": true, "out": true, "inout": true, "invariant": true,
	"centroid": true, "flat": true, "smooth": true, "layout": true,
}

var precisionKeywords = map[string]Precision{
	"lowp": PrecisionLow, "mediump": PrecisionMedium, "highp": PrecisionHigh,
}

// typeFromKeyword maps a type keyword to a fresh Type, or nil.
func (p *Parser) typeFromKeyword(text string) *Type {
	switch text {
	case "void":
		return NewType(TVoid)
	case "float":
		return NewType(TFloat)
	case "int":
		return NewType(TInt)
	case "uint":
		if p.version < 300 {
			return nil
		}
		return NewType(TUInt)
	case "bool":
		return NewType(TBool)
	case "vec2", "vec3", "vec4":
		return NewVector(TFloat, int(text[3]-'0'))
	case "ivec2", "ivec3", "ivec4":
		return NewVector(TInt, int(text[4]-'0'))
	case "uvec2", "uvec3", "uvec4":
		if p.version < 300 {
			return nil
		}
		return NewVector(TUInt, int(text[4]-'0'))
	case "bvec2", "bvec3", "bvec4":
		return NewVector(TBool, int(text[4]-'0'))
	case "mat2", "mat3", "mat4":
		n := int(text[3] - '0')
		return NewMatrix(n, n)
	case "mat2x2", "mat2x3", "mat2x4", "mat3x2", "mat3x3", "mat3x4", "mat4x2", "mat4x3", "mat4x4":
		if p.version < 300 {
			return nil
		}
		return NewMatrix(int(text[3]-'0'), int(text[5]-'0'))
	case "sampler2D":
		return NewType(TSampler2D)
	case "samplerCube":
		return NewType(TSamplerCube)
	case "sampler3D":
		if p.version < 300 {
			return nil
		}
		return NewType(TSampler3D)
	case "sampler2DArray":
		if p.version < 300 {
			return nil
		}
		return NewType(TSampler2DArray)
	}
	return nil
}

// isTypeToken reports whether the current token begins a type
// specifier.
func (p *Parser) isTypeToken() bool {
	t := p.peek()
	if t.Kind != pp.TokenIdentifier {
		return false
	}
	if p.typeFromKeyword(t.Text) != nil || t.Text == "struct" {
		return true
	}
	return p.table.FindStruct(t.Text) != nil
}

// isDeclarationStart reports whether the current tokens begin a
// declaration (qualifiers, precision, or a type).
func (p *Parser) isDeclarationStart() bool {
	t := p.peek()
	if t.Kind != pp.TokenIdentifier {
		return false
	}
	if storageKeywords[t.Text] && t.Text != "in" && t.Text != "out" && t.Text != "inout" {
		return true
	}
	if t.Text == "in" || t.Text == "out" {
		// 'in'/'out' start declarations only at global scope in ESSL3.
		return p.version >= 300 && p.table.AtGlobalScope()
	}
	if _, ok := precisionKeywords[t.Text]; ok {
		return true
	}
	return p.isTypeToken()
}

// External declarations

func (p *Parser) externalDeclaration() {
	t := p.peek()

	if p.matchIdent("precision") {
		p.precisionStatement()
		return
	}

	if p.checkIdent("invariant") && p.peekAhead(1).Kind == pp.TokenIdentifier &&
		p.typeFromKeyword(p.peekAhead(1).Text) == nil && !storageKeywords[p.peekAhead(1).Text] &&
		p.peekAhead(2).Kind == pp.TokenSemicolon {
		// "invariant gl_Position;" form: re-qualify an output.
		p.advance()
		name := p.advance()
		p.expect(pp.TokenSemicolon, "';'")
		if sym := p.table.Find(name.Text); sym != nil {
			sym.Type.Invariant = true
		} else {
			p.errorAt(name, "undeclared identifier")
		}
		return
	}

	typ, ok := p.fullySpecifiedType()
	if !ok {
		p.errorAt(t, "expected declaration")
		p.synchronize()
		return
	}

	// A bare "struct S { ... };" declares only the type.
	if p.match(pp.TokenSemicolon) {
		return
	}

	name := p.expect(pp.TokenIdentifier, "identifier")

	if p.check(pp.TokenLeftParen) {
		p.functionDefinitionOrPrototype(typ, name)
		return
	}
	p.globalVariableDeclaration(typ, name)
}

func (p *Parser) precisionStatement() {
	prec, ok := precisionKeywords[p.peek().Text]
	if !ok {
		p.errorAt(p.peek(), "expected precision qualifier")
		p.synchronize()
		return
	}
	p.advance()
	t := p.peek()
	typ := p.typeFromKeyword(t.Text)
	if typ == nil || (typ.Basic != TFloat && typ.Basic != TInt && !typ.Basic.IsSampler()) {
		p.errorAt(t, "precision statement requires float, int, or a sampler type")
		p.synchronize()
		return
	}
	p.advance()
	p.expect(pp.TokenSemicolon, "';'")
	p.defaultPrecision[typ.Basic] = prec
}

// fullySpecifiedType parses qualifiers, precision, and a type
// specifier.
func (p *Parser) fullySpecifiedType() (*Type, bool) {
	qualifier := QualNone
	var invariant, flat, centroid bool
	location := -1

	for {
		t := p.peek()
		if t.Kind != pp.TokenIdentifier {
			break
		}
		switch t.Text {
		case "invariant":
			invariant = true
			p.advance()
			continue
		case "centroid":
			centroid = true
			p.advance()
			continue
		case "flat":
			flat = true
			p.advance()
			continue
		case "smooth":
			p.advance()
			continue
		case "layout":
			p.advance()
			location = p.layoutQualifier()
			continue
		case "const":
			qualifier = QualConst
			p.advance()
			continue
		case "attribute":
			if p.shaderType != VertexShaderKind {
				p.errorAt(t, "attribute qualifier is only legal in vertex shaders")
			}
			qualifier = QualAttribute
			p.advance()
			continue
		case "varying":
			if p.shaderType == VertexShaderKind {
				qualifier = QualVaryingOut
			} else {
				qualifier = QualVaryingIn
			}
			p.advance()
			continue
		case "uniform":
			qualifier = QualUniform
			p.advance()
			continue
		case "in":
			if p.version >= 300 && p.table.AtGlobalScope() {
				if p.shaderType == VertexShaderKind {
					qualifier = QualVertexIn
				} else {
					qualifier = QualVaryingIn
				}
				p.advance()
				continue
			}
		case "out":
			if p.version >= 300 && p.table.AtGlobalScope() {
				if p.shaderType == VertexShaderKind {
					qualifier = QualVaryingOut
				} else {
					qualifier = QualFragmentOut
				}
				p.advance()
				continue
			}
		}
		break
	}

	precision := PrecisionUndefined
	if prec, ok := precisionKeywords[p.peek().Text]; ok && p.peek().Kind == pp.TokenIdentifier {
		precision = prec
		p.advance()
	}

	typ, ok := p.typeSpecifier()
	if !ok {
		return nil, false
	}
	typ.Qualifier = qualifier
	typ.Invariant = invariant
	typ.Flat = flat
	typ.Centroid = centroid
	typ.Location = location
	if precision != PrecisionUndefined {
		typ.Precision = precision
	} else if dp, ok := p.defaultPrecision[typ.Basic]; ok {
		typ.Precision = dp
	} else if typ.Basic == TFloat && p.shaderType == FragmentShaderKind {
		// Fragment float has no implicit default precision.
		p.errorAt(p.peek(), "no default precision defined for float in a fragment shader")
	}
	return typ, true
}

// layoutQualifier parses "(location = N)" and returns the location.
func (p *Parser) layoutQualifier() int {
	location := -1
	if !p.match(pp.TokenLeftParen) {
		p.errorAt(p.peek(), "expected '(' after layout")
		return location
	}
	for {
		name := p.expect(pp.TokenIdentifier, "layout qualifier name")
		if p.match(pp.TokenEqual) {
			value := p.expect(pp.TokenConstInt, "integer")
			if name.Text == "location" {
				if v, err := strconv.Atoi(value.Text); err == nil {
					location = v
				}
			}
		}
		if !p.match(pp.TokenComma) {
			break
		}
	}
	p.expect(pp.TokenRightParen, "')'")
	return location
}

// typeSpecifier parses a type keyword, struct definition, or struct
// name.
func (p *Parser) typeSpecifier() (*Type, bool) {
	t := p.peek()
	if t.Kind != pp.TokenIdentifier {
		return nil, false
	}

	if t.Text == "struct" {
		return p.structSpecifier()
	}

	if typ := p.typeFromKeyword(t.Text); typ != nil {
		p.advance()
		return typ, true
	}

	if def := p.table.FindStruct(t.Text); def != nil {
		p.advance()
		typ := NewType(TStruct)
		typ.Struct = def
		return typ, true
	}
	return nil, false
}

func (p *Parser) structSpecifier() (*Type, bool) {
	p.advance() // struct
	var name string
	if p.check(pp.TokenIdentifier) && !p.check(pp.TokenLeftBrace) {
		name = p.advance().Text
	}
	p.expect(pp.TokenLeftBrace, "'{'")

	def := &StructDef{Name: name}
	for !p.check(pp.TokenRightBrace) && !p.atEnd() {
		fieldType, ok := p.fullySpecifiedType()
		if !ok {
			p.errorAt(p.peek(), "expected struct member type")
			p.synchronize()
			return nil, false
		}
		if fieldType.Basic.IsSampler() {
			p.errorAt(p.peek(), "samplers are not allowed in structures")
		}
		for {
			fieldName := p.expect(pp.TokenIdentifier, "member name")
			ft := *fieldType
			if p.match(pp.TokenLeftBracket) {
				ft.ArraySize = p.constantArraySize()
				p.expect(pp.TokenRightBracket, "']'")
			}
			if def.FieldIndex(fieldName.Text) >= 0 {
				p.errorAt(fieldName, "duplicate struct member")
			}
			def.Fields = append(def.Fields, StructField{Name: fieldName.Text, Type: &ft})
			if !p.match(pp.TokenComma) {
				break
			}
		}
		p.expect(pp.TokenSemicolon, "';'")
	}
	p.expect(pp.TokenRightBrace, "'}'")

	if name != "" {
		if !p.table.DeclareStruct(def) {
			p.errorAt(p.peek(), "redefinition of struct '%s'", name)
		}
	}
	typ := NewType(TStruct)
	typ.Struct = def
	return typ, true
}

// constantArraySize parses and folds an array size expression.
func (p *Parser) constantArraySize() int {
	t := p.peek()
	expr := p.conditionalExpression()
	if expr == nil {
		return 1
	}
	values, ok := p.foldConstant(expr)
	if !ok || len(values) != 1 || !expr.Type().IsScalarInt() {
		p.errorAt(t, "array size must be a constant integer expression")
		return 1
	}
	size := int(values[0].IntValue())
	if size <= 0 {
		p.errorAt(t, "array size must be greater than zero")
		return 1
	}
	return size
}

// Global variable declarations (including comma lists).

func (p *Parser) globalVariableDeclaration(typ *Type, name pp.Token) {
	for {
		varType := *typ
		if p.match(pp.TokenLeftBracket) {
			varType.ArraySize = p.constantArraySize()
			p.expect(pp.TokenRightBracket, "']'")
		}

		p.checkGlobalQualifiers(&varType, name)

		var init Expr
		if p.match(pp.TokenEqual) {
			init = p.assignmentExpression()
			init = p.checkInitializer(&varType, init, name)
		} else if varType.Qualifier == QualConst {
			p.errorAt(name, "const variable requires an initializer")
		}

		decl := p.declareVariable(&varType, name, init)
		if decl != nil {
			p.unit.Globals = append(p.unit.Globals, decl)
		}

		if !p.match(pp.TokenComma) {
			break
		}
		name = p.expect(pp.TokenIdentifier, "identifier")
	}
	p.expect(pp.TokenSemicolon, "';'")
}

func (p *Parser) checkGlobalQualifiers(typ *Type, name pp.Token) {
	if typ.Basic.IsSampler() && typ.Qualifier != QualUniform {
		p.errorAt(name, "samplers must be uniform")
	}
	switch typ.Qualifier {
	case QualAttribute, QualVertexIn:
		if typ.Basic != TFloat {
			p.errorAt(name, "attributes must be of float type")
		}
		if typ.IsArray() {
			p.errorAt(name, "attributes may not be arrays")
		}
	case QualVaryingIn, QualVaryingOut:
		if typ.Basic != TFloat && p.version < 300 {
			p.errorAt(name, "varyings must be of float type")
		}
	}
}

func (p *Parser) declareVariable(typ *Type, name pp.Token, init Expr) *DeclStmt {
	t := *typ
	sym, ok := p.table.Declare(name.Text, &t)
	if !ok {
		p.errorAt(name, "redefinition")
		return nil
	}
	if typ.Qualifier == QualConst && init != nil {
		if values, folded := p.foldConstant(init); folded {
			sym.ConstValue = values
			sym.Type.Qualifier = QualConstExpr
		}
	}
	decl := &DeclStmt{Name: name.Text, ID: sym.ID, DeclType: sym.Type, Init: init}
	decl.Location = name.Location
	return decl
}

// checkInitializer validates an initializer's type against the
// declared type.
func (p *Parser) checkInitializer(typ *Type, init Expr, name pp.Token) Expr {
	if init == nil {
		return nil
	}
	if typ.Basic.IsSampler() {
		p.errorAt(name, "samplers cannot be initialized")
		return nil
	}
	if !typ.SameAs(init.Type()) {
		p.errorAt(name, "cannot initialize %s with %s", typ.String(), init.Type().String())
		return nil
	}
	return init
}

// Functions

func (p *Parser) functionDefinitionOrPrototype(returnType *Type, name pp.Token) {
	p.expect(pp.TokenLeftParen, "'('")

	sig := &FunctionSignature{Name: name.Text, ReturnType: returnType}

	p.table.Push()
	if !p.check(pp.TokenRightParen) {
		for {
			param, ok := p.parameterDeclaration()
			if !ok {
				break
			}
			sig.Params = append(sig.Params, param)
			if !p.match(pp.TokenComma) {
				break
			}
		}
	}
	p.expect(pp.TokenRightParen, "')'")

	// A void single parameter means an empty list.
	if len(sig.Params) == 1 && sig.Params[0].Type.Basic == TVoid && sig.Params[0].Name == "" {
		sig.Params = nil
	}

	registered := p.table.DeclareFunction(sig)
	if registered != sig {
		// A previous prototype exists; reuse it but verify the
		// return type.
		if !registered.ReturnType.SameAs(sig.ReturnType) {
			p.errorAt(name, "overloaded functions must differ by parameters, not return type")
		}
		sig = registered
	}

	if p.match(pp.TokenSemicolon) {
		// Prototype only.
		p.table.Pop()
		return
	}

	if sig.Defined {
		p.errorAt(name, "redefinition of function '%s'", name.Text)
	}
	sig.Defined = true

	if name.Text == "main" {
		if returnType.Basic != TVoid {
			p.errorAt(name, "main must return void")
		}
		if len(sig.Params) != 0 {
			p.errorAt(name, "main takes no parameters")
		}
	}

	p.currentFunction = sig
	body := p.blockNoScope()
	p.currentFunction = nil
	p.table.Pop()

	fn := &FunctionDecl{Signature: sig, Body: body}
	fn.Location = name.Location
	p.unit.Functions = append(p.unit.Functions, fn)
}

func (p *Parser) parameterDeclaration() (Parameter, bool) {
	qualifier := QualIn
	for {
		t := p.peek()
		if t.Kind != pp.TokenIdentifier {
			break
		}
		switch t.Text {
		case "in":
			qualifier = QualIn
			p.advance()
			continue
		case "out":
			qualifier = QualOut
			p.advance()
			continue
		case "inout":
			qualifier = QualInOut
			p.advance()
			continue
		case "const":
			qualifier = QualConst
			p.advance()
			continue
		}
		break
	}
	if prec, ok := precisionKeywords[p.peek().Text]; ok {
		_ = prec
		p.advance()
	}

	typ, ok := p.typeSpecifier()
	if !ok {
		p.errorAt(p.peek(), "expected parameter type")
		return Parameter{}, false
	}
	typ.Qualifier = qualifier

	if typ.Basic.IsSampler() && (qualifier == QualOut || qualifier == QualInOut) {
		p.errorAt(p.peek(), "samplers cannot be out or inout parameters")
	}

	param := Parameter{Type: typ}
	if p.check(pp.TokenIdentifier) && !storageKeywords[p.peek().Text] {
		name := p.advance()
		param.Name = name.Text
		if p.match(pp.TokenLeftBracket) {
			typ.ArraySize = p.constantArraySize()
			p.expect(pp.TokenRightBracket, "']'")
		}
		if sym, declared := p.table.Declare(name.Text, typ); declared {
			param.ID = sym.ID
		} else {
			p.errorAt(name, "redefinition of parameter")
		}
	}
	return param, true
}

// Statements

// blockNoScope parses "{ ... }" into the current scope (used for
// function bodies whose parameters share the scope).
func (p *Parser) blockNoScope() *BlockStmt {
	open := p.expect(pp.TokenLeftBrace, "'{'")
	block := &BlockStmt{}
	block.Location = open.Location
	for !p.check(pp.TokenRightBrace) && !p.atEnd() {
		before := p.pos
		if s := p.statement(); s != nil {
			block.Stmts = append(block.Stmts, s)
		}
		if p.pos == before {
			p.advance()
		}
	}
	p.expect(pp.TokenRightBrace, "'}'")
	return block
}

func (p *Parser) block() *BlockStmt {
	p.table.Push()
	defer p.table.Pop()
	return p.blockNoScope()
}

func (p *Parser) statement() Stmt {
	t := p.peek()

	if t.Kind == pp.TokenLeftBrace {
		return p.block()
	}
	if t.Kind != pp.TokenIdentifier {
		return p.expressionStatement()
	}

	switch t.Text {
	case "if":
		return p.ifStatement()
	case "for":
		return p.forStatement()
	case "while":
		return p.whileStatement()
	case "do":
		return p.doWhileStatement()
	case "return":
		return p.returnStatement()
	case "break", "continue":
		return p.loopJumpStatement()
	case "discard":
		p.advance()
		p.expect(pp.TokenSemicolon, "';'")
		if p.shaderType != FragmentShaderKind {
			p.errorAt(t, "discard is only legal in fragment shaders")
		}
		s := &BranchStmt{Kind: BranchDiscard}
		s.Location = t.Location
		return s
	case "precision":
		p.advance()
		p.precisionStatement()
		return nil
	}

	if p.isDeclarationStart() {
		return p.localDeclaration()
	}
	return p.expressionStatement()
}

func (p *Parser) localDeclaration() Stmt {
	t := p.peek()
	typ, ok := p.fullySpecifiedType()
	if !ok {
		p.errorAt(t, "expected declaration")
		p.synchronize()
		return nil
	}
	if p.match(pp.TokenSemicolon) {
		// Struct declaration without a variable.
		return nil
	}

	switch typ.Qualifier {
	case QualAttribute, QualUniform, QualVaryingIn, QualVaryingOut, QualVertexIn, QualFragmentOut:
		p.errorAt(t, "'%s' is not allowed on local variables", typ.Qualifier)
		typ.Qualifier = QualTemporary
	}

	block := &BlockStmt{}
	block.Location = t.Location
	for {
		name := p.expect(pp.TokenIdentifier, "identifier")
		varType := *typ
		if p.match(pp.TokenLeftBracket) {
			varType.ArraySize = p.constantArraySize()
			p.expect(pp.TokenRightBracket, "']'")
		}
		var init Expr
		if p.match(pp.TokenEqual) {
			init = p.assignmentExpression()
			init = p.checkInitializer(&varType, init, name)
		} else if varType.Qualifier == QualConst {
			p.errorAt(name, "const variable requires an initializer")
		}
		if decl := p.declareVariable(&varType, name, init); decl != nil {
			block.Stmts = append(block.Stmts, decl)
		}
		if !p.match(pp.TokenComma) {
			break
		}
	}
	p.expect(pp.TokenSemicolon, "';'")
	if len(block.Stmts) == 1 {
		return block.Stmts[0]
	}
	return block
}

func (p *Parser) expressionStatement() Stmt {
	t := p.peek()
	if p.match(pp.TokenSemicolon) {
		return nil
	}
	expr := p.expression()
	p.expect(pp.TokenSemicolon, "';'")
	if expr == nil {
		return nil
	}
	s := &ExprStmt{Expr: expr}
	s.Location = t.Location
	return s
}

func (p *Parser) condition() Expr {
	cond := p.expression()
	if cond != nil && !(cond.Type().Basic == TBool && cond.Type().IsScalar()) {
		p.errorAt(p.peek(), "condition must be a scalar boolean")
	}
	return cond
}

func (p *Parser) ifStatement() Stmt {
	t := p.advance() // if
	p.expect(pp.TokenLeftParen, "'('")
	cond := p.condition()
	p.expect(pp.TokenRightParen, "')'")
	then := p.statement()
	var elseStmt Stmt
	if p.matchIdent("else") {
		elseStmt = p.statement()
	}
	s := &IfStmt{Cond: cond, Then: then, Else: elseStmt}
	s.Location = t.Location
	return s
}

func (p *Parser) forStatement() Stmt {
	t := p.advance() // for
	p.expect(pp.TokenLeftParen, "'('")
	p.table.Push()
	defer p.table.Pop()

	var init Stmt
	if !p.check(pp.TokenSemicolon) {
		if p.isDeclarationStart() {
			init = p.localDeclaration()
		} else {
			init = p.expressionStatement()
		}
	} else {
		p.advance()
	}

	var cond Expr
	if !p.check(pp.TokenSemicolon) {
		cond = p.condition()
	}
	p.expect(pp.TokenSemicolon, "';'")

	var step Expr
	if !p.check(pp.TokenRightParen) {
		step = p.expression()
	}
	p.expect(pp.TokenRightParen, "')'")

	p.loopDepth++
	body := p.statement()
	p.loopDepth--

	s := &LoopStmt{Kind: LoopFor, Init: init, Cond: cond, Step: step, Body: body}
	s.Location = t.Location
	return s
}

func (p *Parser) whileStatement() Stmt {
	t := p.advance() // while
	p.expect(pp.TokenLeftParen, "'('")
	cond := p.condition()
	p.expect(pp.TokenRightParen, "')'")
	p.loopDepth++
	body := p.statement()
	p.loopDepth--
	s := &LoopStmt{Kind: LoopWhile, Cond: cond, Body: body}
	s.Location = t.Location
	return s
}

func (p *Parser) doWhileStatement() Stmt {
	t := p.advance() // do
	p.loopDepth++
	body := p.statement()
	p.loopDepth--
	if !p.matchIdent("while") {
		p.errorAt(p.peek(), "expected while after do block")
	}
	p.expect(pp.TokenLeftParen, "'('")
	cond := p.condition()
	p.expect(pp.TokenRightParen, "')'")
	p.expect(pp.TokenSemicolon, "';'")
	s := &LoopStmt{Kind: LoopDoWhile, Cond: cond, Body: body}
	s.Location = t.Location
	return s
}

func (p *Parser) returnStatement() Stmt {
	t := p.advance() // return
	var value Expr
	if !p.check(pp.TokenSemicolon) {
		value = p.expression()
	}
	p.expect(pp.TokenSemicolon, "';'")

	if p.currentFunction != nil {
		ret := p.currentFunction.ReturnType
		switch {
		case value == nil && ret.Basic != TVoid:
			p.errorAt(t, "non-void function must return a value")
		case value != nil && ret.Basic == TVoid:
			p.errorAt(t, "void function cannot return a value")
		case value != nil && !ret.SameAs(value.Type()):
			p.errorAt(t, "return type mismatch: %s vs %s", ret.String(), value.Type().String())
		}
	}
	s := &BranchStmt{Kind: BranchReturn, Expr: value}
	s.Location = t.Location
	return s
}

func (p *Parser) loopJumpStatement() Stmt {
	t := p.advance() // break or continue
	p.expect(pp.TokenSemicolon, "';'")
	if p.loopDepth == 0 {
		p.errorAt(t, "%s outside of a loop", t.Text)
	}
	kind := BranchBreak
	if t.Text == "continue" {
		kind = BranchContinue
	}
	s := &BranchStmt{Kind: kind}
	s.Location = t.Location
	return s
}
