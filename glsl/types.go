package glsl

import (
	"fmt"
	"strings"
)

// BasicType is the scalar element type (or opaque type) of a value.
type BasicType uint8

const (
	TVoid BasicType = iota
	TFloat
	TInt
	TUInt
	TBool
	TSampler2D
	TSamplerCube
	TSampler3D
	TSampler2DArray
	TStruct
)

// String returns the GLSL keyword for the basic type.
func (t BasicType) String() string {
	switch t {
	case TVoid:
		return "void"
	case TFloat:
		return "float"
	case TInt:
		return "int"
	case TUInt:
		return "uint"
	case TBool:
		return "bool"
	case TSampler2D:
		return "sampler2D"
	case TSamplerCube:
		return "samplerCube"
	case TSampler3D:
		return "sampler3D"
	case TSampler2DArray:
		return "sampler2DArray"
	case TStruct:
		return "struct"
	}
	return "invalid"
}

// IsSampler reports whether the type is an opaque sampler.
func (t BasicType) IsSampler() bool {
	switch t {
	case TSampler2D, TSamplerCube, TSampler3D, TSampler2DArray:
		return true
	}
	return false
}

// IsInteger reports whether the type is int or uint.
func (t BasicType) IsInteger() bool {
	return t == TInt || t == TUInt
}

// Precision is the precision qualifier.
type Precision uint8

const (
	PrecisionUndefined Precision = iota
	PrecisionLow
	PrecisionMedium
	PrecisionHigh
)

// String returns the GLSL keyword.
func (p Precision) String() string {
	switch p {
	case PrecisionLow:
		return "lowp"
	case PrecisionMedium:
		return "mediump"
	case PrecisionHigh:
		return "highp"
	}
	return ""
}

// Qualifier is the storage/parameter qualifier of a variable.
type Qualifier uint8

const (
	QualNone Qualifier = iota
	QualTemporary
	QualConst
	QualConstExpr // compile-time constant expression
	QualAttribute
	QualVaryingIn
	QualVaryingOut
	QualUniform
	QualIn
	QualOut
	QualInOut
	QualFragmentOut // ESSL3 fragment "out"
	QualVertexIn    // ESSL3 vertex "in"
	QualGlobal
)

// String returns the qualifier keyword for diagnostics.
func (q Qualifier) String() string {
	switch q {
	case QualConst, QualConstExpr:
		return "const"
	case QualAttribute:
		return "attribute"
	case QualVaryingIn, QualVaryingOut:
		return "varying"
	case QualUniform:
		return "uniform"
	case QualIn, QualVertexIn:
		return "in"
	case QualOut, QualFragmentOut:
		return "out"
	case QualInOut:
		return "inout"
	}
	return ""
}

// StructField is one member of a structure type.
type StructField struct {
	Name string
	Type *Type
}

// StructDef is a named structure definition.
type StructDef struct {
	Name   string
	Fields []StructField
}

// FieldIndex returns the index of the named field, or -1.
func (s *StructDef) FieldIndex(name string) int {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Type describes any shading-language value: scalar, vector, matrix,
// array, structure, or sampler. Size is the vector size 1–4; matrices
// keep their row count in Size and their column count in Cols.
type Type struct {
	Basic     BasicType
	Precision Precision
	Qualifier Qualifier

	Size int // vector size 1–4, or rows for matrices
	Cols int // matrix columns; 0 for non-matrices

	// ArraySize is the element count; 0 means not an array.
	ArraySize int

	// Struct is set when Basic == TStruct.
	Struct *StructDef

	// Interpolation for varyings.
	Flat     bool
	Centroid bool

	// Invariant marks outputs that must be computed identically
	// across programs.
	Invariant bool

	// Layout location from ESSL3 layout qualifiers, -1 if absent.
	Location int
}

// NewType returns a scalar type with the given basic type.
func NewType(basic BasicType) *Type {
	return &Type{Basic: basic, Size: 1, Location: -1}
}

// NewVector returns a vector type of the given size.
func NewVector(basic BasicType, size int) *Type {
	return &Type{Basic: basic, Size: size, Location: -1}
}

// NewMatrix returns a float matrix with the given columns and rows.
func NewMatrix(cols, rows int) *Type {
	return &Type{Basic: TFloat, Size: rows, Cols: cols, Location: -1}
}

// IsScalar reports a one-component non-matrix value.
func (t *Type) IsScalar() bool {
	return t.Size == 1 && t.Cols == 0 && t.ArraySize == 0 && t.Basic != TStruct
}

// IsVector reports a 2–4 component non-matrix value.
func (t *Type) IsVector() bool {
	return t.Size > 1 && t.Cols == 0
}

// IsMatrix reports a matrix value.
func (t *Type) IsMatrix() bool {
	return t.Cols > 0
}

// IsArray reports an array type.
func (t *Type) IsArray() bool {
	return t.ArraySize > 0
}

// IsStruct reports a structure type.
func (t *Type) IsStruct() bool {
	return t.Basic == TStruct
}

// IsScalarInt reports a scalar int or uint.
func (t *Type) IsScalarInt() bool {
	return t.IsScalar() && t.Basic.IsInteger()
}

// ElementType returns the type of one array element.
func (t *Type) ElementType() *Type {
	e := *t
	e.ArraySize = 0
	return &e
}

// ColumnType returns the type of one matrix column.
func (t *Type) ColumnType() *Type {
	return &Type{Basic: t.Basic, Precision: t.Precision, Size: t.Size, Location: -1}
}

// ComponentType returns the scalar type of one component.
func (t *Type) ComponentType() *Type {
	return &Type{Basic: t.Basic, Precision: t.Precision, Size: 1, Location: -1}
}

// Components returns the total scalar component count (ignoring
// arrays).
func (t *Type) Components() int {
	if t.Cols > 0 {
		return t.Size * t.Cols
	}
	return t.Size
}

// Registers returns how many IR registers a value of this type
// occupies: one per matrix column or array element row.
func (t *Type) Registers() int {
	n := 1
	if t.Cols > 0 {
		n = t.Cols
	}
	if t.IsStruct() {
		n = 0
		for i := range t.Struct.Fields {
			n += t.Struct.Fields[i].Type.Registers()
		}
	}
	if t.ArraySize > 0 {
		n *= t.ArraySize
	}
	return n
}

// SameAs reports structural equality ignoring qualifiers and
// precision, the relation used for function overload resolution and
// constructor matching.
func (t *Type) SameAs(other *Type) bool {
	if t.Basic != other.Basic || t.Size != other.Size || t.Cols != other.Cols || t.ArraySize != other.ArraySize {
		return false
	}
	if t.Basic == TStruct {
		return t.Struct == other.Struct
	}
	return true
}

// String returns the GLSL spelling of the type.
func (t *Type) String() string {
	var name string
	switch {
	case t.IsMatrix():
		if t.Cols == t.Size {
			name = fmt.Sprintf("mat%d", t.Cols)
		} else {
			name = fmt.Sprintf("mat%dx%d", t.Cols, t.Size)
		}
	case t.IsVector():
		prefix := ""
		switch t.Basic {
		case TInt:
			prefix = "i"
		case TUInt:
			prefix = "u"
		case TBool:
			prefix = "b"
		}
		name = fmt.Sprintf("%svec%d", prefix, t.Size)
	case t.IsStruct():
		name = t.Struct.Name
	default:
		name = t.Basic.String()
	}
	if t.ArraySize > 0 {
		name = fmt.Sprintf("%s[%d]", name, t.ArraySize)
	}
	return name
}

// CompleteString includes qualifier and precision, used in
// diagnostics.
func (t *Type) CompleteString() string {
	var parts []string
	if q := t.Qualifier.String(); q != "" {
		parts = append(parts, q)
	}
	if p := t.Precision.String(); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, t.String())
	return strings.Join(parts, " ")
}
