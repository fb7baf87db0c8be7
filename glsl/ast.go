package glsl

import "github.com/gogpu/swgl/preprocessor"

// Node is any AST node.
type Node interface {
	Loc() preprocessor.Location
}

// Expr is an expression node; every expression carries a type.
type Expr interface {
	Node
	Type() *Type
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

type nodeBase struct {
	Location preprocessor.Location
}

// Loc implements Node.
func (n nodeBase) Loc() preprocessor.Location { return n.Location }

type exprBase struct {
	nodeBase
	Typ *Type
}

// Type implements Expr.
func (e *exprBase) Type() *Type { return e.Typ }

func (e *exprBase) exprNode() {}

// Scalar is one constant component. The active field follows Kind.
type Scalar struct {
	Kind BasicType
	F    float32
	I    int32
	B    bool
}

// FloatValue returns the component as a float regardless of kind.
func (s Scalar) FloatValue() float32 {
	switch s.Kind {
	case TInt, TUInt:
		return float32(s.I)
	case TBool:
		if s.B {
			return 1
		}
		return 0
	}
	return s.F
}

// IntValue returns the component as an int regardless of kind.
func (s Scalar) IntValue() int32 {
	switch s.Kind {
	case TFloat:
		return int32(s.F)
	case TBool:
		if s.B {
			return 1
		}
		return 0
	}
	return s.I
}

// BoolValue returns the component as a bool regardless of kind.
func (s Scalar) BoolValue() bool {
	switch s.Kind {
	case TFloat:
		return s.F != 0
	case TInt, TUInt:
		return s.I != 0
	}
	return s.B
}

// FloatScalar builds a float component.
func FloatScalar(f float32) Scalar { return Scalar{Kind: TFloat, F: f} }

// IntScalar builds an int component.
func IntScalar(i int32) Scalar { return Scalar{Kind: TInt, I: i} }

// UIntScalar builds a uint component.
func UIntScalar(i int32) Scalar { return Scalar{Kind: TUInt, I: i} }

// BoolScalar builds a bool component.
func BoolScalar(b bool) Scalar { return Scalar{Kind: TBool, B: b} }

// SymbolExpr references a declared variable.
type SymbolExpr struct {
	exprBase
	Name string
	ID   int // unique symbol id, stable across references
}

// LiteralExpr is a constant value: one component per scalar, column
// major for matrices.
type LiteralExpr struct {
	exprBase
	Values []Scalar
}

// Operator enumerates unary and binary operators plus the compound
// assignments.
type Operator uint8

const (
	OpNone Operator = iota

	// Binary
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShiftLeft
	OpShiftRight
	OpEqual
	OpNotEqual
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpLogicalAnd
	OpLogicalOr
	OpLogicalXor
	OpComma

	// Unary
	OpNegate
	OpLogicalNot
	OpBitNot
	OpPostIncrement
	OpPostDecrement
	OpPreIncrement
	OpPreDecrement

	// Assignment
	OpAssign
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpIModAssign
	OpBitAndAssign
	OpBitOrAssign
	OpBitXorAssign
	OpShiftLeftAssign
	OpShiftRightAssign
)

var operatorNames = map[Operator]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpIMod: "%",
	OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^",
	OpShiftLeft: "<<", OpShiftRight: ">>",
	OpEqual: "==", OpNotEqual: "!=",
	OpLess: "<", OpGreater: ">", OpLessEqual: "<=", OpGreaterEqual: ">=",
	OpLogicalAnd: "&&", OpLogicalOr: "||", OpLogicalXor: "^^",
	OpNegate: "-", OpLogicalNot: "!", OpBitNot: "~",
	OpPostIncrement: "++", OpPostDecrement: "--",
	OpPreIncrement: "++", OpPreDecrement: "--",
	OpAssign: "=", OpAddAssign: "+=", OpSubAssign: "-=",
	OpMulAssign: "*=", OpDivAssign: "/=", OpIModAssign: "%=",
	OpBitAndAssign: "&=", OpBitOrAssign: "|=", OpBitXorAssign: "^=",
	OpShiftLeftAssign: "<<=", OpShiftRightAssign: ">>=",
}

// String returns the operator's source spelling.
func (op Operator) String() string {
	if s, ok := operatorNames[op]; ok {
		return s
	}
	return "?"
}

// IsAssignment reports whether the operator writes its left operand.
func (op Operator) IsAssignment() bool {
	switch op {
	case OpAssign, OpAddAssign, OpSubAssign, OpMulAssign, OpDivAssign,
		OpIModAssign, OpBitAndAssign, OpBitOrAssign, OpBitXorAssign,
		OpShiftLeftAssign, OpShiftRightAssign,
		OpPostIncrement, OpPostDecrement, OpPreIncrement, OpPreDecrement:
		return true
	}
	return false
}

// UnaryExpr applies a unary operator.
type UnaryExpr struct {
	exprBase
	Op      Operator
	Operand Expr
}

// BinaryExpr applies a binary or assignment operator.
type BinaryExpr struct {
	exprBase
	Op    Operator
	Left  Expr
	Right Expr
}

// IndexExpr subscripts an array, vector, or matrix. ConstIndex is
// valid when Index folded to a constant.
type IndexExpr struct {
	exprBase
	Base       Expr
	Index      Expr
	ConstIndex int
	IsConst    bool
}

// FieldExpr selects a struct member.
type FieldExpr struct {
	exprBase
	Base  Expr
	Field string
	Index int // member index in the struct definition
}

// SwizzleExpr selects vector components.
type SwizzleExpr struct {
	exprBase
	Base   Expr
	Lanes  []int // 1–4 entries, each 0–3
	Source string
}

// SelectExpr is the ternary ?: operator.
type SelectExpr struct {
	exprBase
	Cond      Expr
	TrueExpr  Expr
	FalseExpr Expr
}

// CallExpr invokes a user function, a builtin, or a constructor.
type CallExpr struct {
	exprBase
	Name        string
	Args        []Expr
	Constructor bool
	Builtin     *BuiltinFunction // nil for user functions and constructors
	Signature   *FunctionSignature
}

// Statements

type stmtBase struct {
	nodeBase
}

func (s *stmtBase) stmtNode() {}

// DeclStmt declares (and optionally initializes) one variable.
type DeclStmt struct {
	stmtBase
	Name     string
	ID       int
	DeclType *Type
	Init     Expr // may be nil
}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	stmtBase
	Expr Expr
}

// BlockStmt is a brace-enclosed scope.
type BlockStmt struct {
	stmtBase
	Stmts []Stmt
}

// IfStmt is a selection statement.
type IfStmt struct {
	stmtBase
	Cond Expr
	Then Stmt
	Else Stmt // may be nil
}

// LoopKind distinguishes the three loop statements.
type LoopKind uint8

const (
	LoopFor LoopKind = iota
	LoopWhile
	LoopDoWhile
)

// LoopStmt is any loop. For for-loops Init/Cond/Step hold the header;
// while-loops use Cond only; do-while evaluates Cond after Body.
type LoopStmt struct {
	stmtBase
	Kind LoopKind
	Init Stmt // may be nil
	Cond Expr // may be nil
	Step Expr // may be nil
	Body Stmt

	// IndexID is the loop index symbol for validated for-loops.
	IndexID int

	// Unroll is set for validated for-loops with an integer index and
	// for loops whose index is used as a sampler array index, forcing
	// the lowerer to unroll.
	Unroll bool
}

// BranchKind is the kind of jump statement.
type BranchKind uint8

const (
	BranchReturn BranchKind = iota
	BranchBreak
	BranchContinue
	BranchDiscard
)

// BranchStmt is return/break/continue/discard.
type BranchStmt struct {
	stmtBase
	Kind BranchKind
	Expr Expr // return value, may be nil
}

// Declarations

// Parameter is one function parameter.
type Parameter struct {
	Name string
	Type *Type
	ID   int
}

// FunctionSignature identifies a function by name and parameter
// types.
type FunctionSignature struct {
	Name       string
	ReturnType *Type
	Params     []Parameter
	Defined    bool // a body has been seen, not just a prototype
}

// Mangled returns the signature key used for exact-match resolution.
func (f *FunctionSignature) Mangled() string {
	s := f.Name + "("
	for _, p := range f.Params {
		s += p.Type.String() + ","
	}
	return s + ")"
}

// FunctionDecl is a function definition.
type FunctionDecl struct {
	nodeBase
	Signature *FunctionSignature
	Body      *BlockStmt
}

// TranslationUnit is a whole compiled shader.
type TranslationUnit struct {
	Version   int
	Functions []*FunctionDecl

	// Globals in declaration order: uniforms, attributes, varyings,
	// constants.
	Globals []*DeclStmt
}

// Main returns the shader entry point, or nil.
func (tu *TranslationUnit) Main() *FunctionDecl {
	for _, f := range tu.Functions {
		if f.Signature.Name == "main" && len(f.Signature.Params) == 0 {
			return f
		}
	}
	return nil
}
