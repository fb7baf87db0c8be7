package ir

// Opcode identifies a shader IR instruction.
type Opcode uint8

const (
	OpNop Opcode = iota

	// Data movement
	OpMov
	OpMovAddr // move into the address register bank

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpMad // dst = src0*src1 + src2
	OpDiv
	OpMod
	OpNeg
	OpAbs
	OpSign
	OpRcp
	OpRsq
	OpSqrt
	OpMin
	OpMax
	OpFrc
	OpFloor
	OpCeil
	OpTrunc
	OpRound
	OpExp2
	OpLog2
	OpExp
	OpLog
	OpPow
	OpSin
	OpCos
	OpTan
	OpAsin
	OpAcos
	OpAtan
	OpAtan2

	// Vector
	OpDp2
	OpDp3
	OpDp4
	OpCross
	OpNormalize
	OpLength
	OpDistance

	// Comparison (component-wise, writes all-ones/all-zeros masks)
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Logic and selection
	OpAnd
	OpOr
	OpXor
	OpNot
	OpSelect // dst = src0 ? src1 : src2, per component

	// Integer
	OpIAdd
	OpISub
	OpIMul
	OpIDiv
	OpIMod
	OpShl
	OpShr
	OpIMin
	OpIMax
	OpIAbs
	OpINeg
	OpIAnd
	OpIOr
	OpIXor

	// Conversion
	OpFloatToInt
	OpIntToFloat
	OpFloatToBool
	OpBoolToFloat

	// Texture sampling
	OpTex
	OpTexLod
	OpTexBias
	OpTexSize

	// Structured control flow. Branch opcodes carry label ids that
	// pair constructs; Loop additionally carries the unroll flag.
	OpIf
	OpElse
	OpEndIf
	OpLoop
	OpEndLoop
	OpBreak
	OpBreakC // conditional break, predicated on src0
	OpContinue
	OpDiscard
	OpCall
	OpRet
	OpLabel

	opcodeCount
)

var opcodeNames = [...]string{
	OpNop:         "nop",
	OpMov:         "mov",
	OpMovAddr:     "mova",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpMad:         "mad",
	OpDiv:         "div",
	OpMod:         "mod",
	OpNeg:         "neg",
	OpAbs:         "abs",
	OpSign:        "sign",
	OpRcp:         "rcp",
	OpRsq:         "rsq",
	OpSqrt:        "sqrt",
	OpMin:         "min",
	OpMax:         "max",
	OpFrc:         "frc",
	OpFloor:       "floor",
	OpCeil:        "ceil",
	OpTrunc:       "trunc",
	OpRound:       "round",
	OpExp2:        "exp2",
	OpLog2:        "log2",
	OpExp:         "exp",
	OpLog:         "log",
	OpPow:         "pow",
	OpSin:         "sin",
	OpCos:         "cos",
	OpTan:         "tan",
	OpAsin:        "asin",
	OpAcos:        "acos",
	OpAtan:        "atan",
	OpAtan2:       "atan2",
	OpDp2:         "dp2",
	OpDp3:         "dp3",
	OpDp4:         "dp4",
	OpCross:       "crs",
	OpNormalize:   "nrm",
	OpLength:      "len",
	OpDistance:    "dist",
	OpEq:          "eq",
	OpNe:          "ne",
	OpLt:          "lt",
	OpLe:          "le",
	OpGt:          "gt",
	OpGe:          "ge",
	OpAnd:         "and",
	OpOr:          "or",
	OpXor:         "xor",
	OpNot:         "not",
	OpSelect:      "sel",
	OpIAdd:        "iadd",
	OpISub:        "isub",
	OpIMul:        "imul",
	OpIDiv:        "idiv",
	OpIMod:        "imod",
	OpShl:         "shl",
	OpShr:         "shr",
	OpIMin:        "imin",
	OpIMax:        "imax",
	OpIAbs:        "iabs",
	OpINeg:        "ineg",
	OpIAnd:        "iand",
	OpIOr:         "ior",
	OpIXor:        "ixor",
	OpFloatToInt:  "ftoi",
	OpIntToFloat:  "itof",
	OpFloatToBool: "ftob",
	OpBoolToFloat: "btof",
	OpTex:         "tex",
	OpTexLod:      "texlod",
	OpTexBias:     "texbias",
	OpTexSize:     "texsize",
	OpIf:          "if",
	OpElse:        "else",
	OpEndIf:       "endif",
	OpLoop:        "loop",
	OpEndLoop:     "endloop",
	OpBreak:       "break",
	OpBreakC:      "breakc",
	OpContinue:    "continue",
	OpDiscard:     "discard",
	OpCall:        "call",
	OpRet:         "ret",
	OpLabel:       "label",
}

// String returns the mnemonic for the opcode.
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "invalid"
}

// Valid reports whether the opcode is a defined instruction.
func (op Opcode) Valid() bool {
	return op < opcodeCount
}

// SourceCount returns how many source operands the opcode consumes.
func (op Opcode) SourceCount() int {
	switch op {
	case OpNop, OpElse, OpEndIf, OpEndLoop, OpBreak, OpContinue,
		OpDiscard, OpRet, OpLabel, OpCall:
		return 0
	case OpMov, OpMovAddr, OpNeg, OpAbs, OpSign, OpRcp, OpRsq, OpSqrt,
		OpFrc, OpFloor, OpCeil, OpTrunc, OpRound, OpExp2, OpLog2,
		OpExp, OpLog, OpSin, OpCos, OpTan, OpAsin, OpAcos, OpAtan,
		OpNormalize, OpLength, OpNot, OpIAbs, OpINeg,
		OpFloatToInt, OpIntToFloat, OpFloatToBool, OpBoolToFloat,
		OpIf, OpLoop, OpBreakC, OpTexSize:
		return 1
	case OpMad, OpSelect, OpTexLod, OpTexBias:
		return 3
	default:
		return 2
	}
}

// HasDest reports whether the opcode writes a destination register.
func (op Opcode) HasDest() bool {
	switch op {
	case OpNop, OpIf, OpElse, OpEndIf, OpLoop, OpEndLoop, OpBreak,
		OpBreakC, OpContinue, OpDiscard, OpCall, OpRet, OpLabel:
		return false
	}
	return true
}

// IsControlFlow reports whether the opcode affects control flow.
func (op Opcode) IsControlFlow() bool {
	switch op {
	case OpIf, OpElse, OpEndIf, OpLoop, OpEndLoop, OpBreak, OpBreakC,
		OpContinue, OpDiscard, OpCall, OpRet, OpLabel:
		return true
	}
	return false
}

// IsSampling reports whether the opcode reads a sampler register.
func (op Opcode) IsSampling() bool {
	switch op {
	case OpTex, OpTexLod, OpTexBias, OpTexSize:
		return true
	}
	return false
}

// IsInteger reports whether the opcode operates on integer registers.
func (op Opcode) IsInteger() bool {
	switch op {
	case OpIAdd, OpISub, OpIMul, OpIDiv, OpIMod, OpShl, OpShr,
		OpIMin, OpIMax, OpIAbs, OpINeg, OpIntToFloat:
		return true
	}
	return false
}
