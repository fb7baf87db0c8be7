package glsl

// BuiltinID identifies one builtin function family. Overloads of one
// name share the ID; the result type comes from resolveBuiltin.
type BuiltinID int

const (
	BuiltinNone BuiltinID = iota
	BuiltinRadians
	BuiltinDegrees
	BuiltinSin
	BuiltinCos
	BuiltinTan
	BuiltinAsin
	BuiltinAcos
	BuiltinAtan
	BuiltinAtan2
	BuiltinPow
	BuiltinExp
	BuiltinLog
	BuiltinExp2
	BuiltinLog2
	BuiltinSqrt
	BuiltinInverseSqrt
	BuiltinAbs
	BuiltinSign
	BuiltinFloor
	BuiltinCeil
	BuiltinTrunc
	BuiltinRound
	BuiltinFract
	BuiltinMod
	BuiltinMin
	BuiltinMax
	BuiltinClamp
	BuiltinMix
	BuiltinStep
	BuiltinSmoothstep
	BuiltinLength
	BuiltinDistance
	BuiltinDot
	BuiltinCross
	BuiltinNormalize
	BuiltinFaceforward
	BuiltinReflect
	BuiltinRefract
	BuiltinMatrixCompMult
	BuiltinLessThan
	BuiltinLessThanEqual
	BuiltinGreaterThan
	BuiltinGreaterThanEqual
	BuiltinEqual
	BuiltinNotEqual
	BuiltinAny
	BuiltinAll
	BuiltinNot
	BuiltinTexture2D
	BuiltinTexture2DProj
	BuiltinTexture2DLod
	BuiltinTextureCube
	BuiltinTextureCubeLod
	BuiltinTexture
	BuiltinTextureLod
	BuiltinTextureProj
)

// BuiltinFunction is the resolved form of one builtin call.
type BuiltinFunction struct {
	ID     BuiltinID
	Result *Type
}

// genType reports a float scalar or vector.
func genType(t *Type) bool {
	return t.Basic == TFloat && t.Cols == 0 && t.ArraySize == 0 && t.Size >= 1 && t.Size <= 4
}

func sameShape(a, b *Type) bool {
	return a.Basic == b.Basic && a.Size == b.Size && a.Cols == b.Cols && a.ArraySize == b.ArraySize
}

func floatScalar(t *Type) bool {
	return t.Basic == TFloat && t.IsScalar()
}

// resolveBuiltin matches a call against the builtin library. It
// returns nil when the name is not a builtin at all; a non-nil
// function with a nil Result when the name matched but the argument
// types did not.
func resolveBuiltin(name string, args []*Type, version int) *BuiltinFunction {
	n := len(args)
	arg := func(i int) *Type { return args[i] }

	// genType → genType, one argument.
	unary := map[string]BuiltinID{
		"radians": BuiltinRadians, "degrees": BuiltinDegrees,
		"sin": BuiltinSin, "cos": BuiltinCos, "tan": BuiltinTan,
		"asin": BuiltinAsin, "acos": BuiltinAcos, "atan": BuiltinAtan,
		"exp": BuiltinExp, "log": BuiltinLog,
		"exp2": BuiltinExp2, "log2": BuiltinLog2,
		"sqrt": BuiltinSqrt, "inversesqrt": BuiltinInverseSqrt,
		"abs": BuiltinAbs, "sign": BuiltinSign,
		"floor": BuiltinFloor, "ceil": BuiltinCeil, "fract": BuiltinFract,
		"normalize": BuiltinNormalize,
	}
	if id, ok := unary[name]; ok {
		if n == 1 && genType(arg(0)) {
			return &BuiltinFunction{ID: id, Result: NewVector(TFloat, arg(0).Size)}
		}
		return &BuiltinFunction{ID: id}
	}
	if name == "trunc" || name == "round" {
		if version < 300 {
			return nil
		}
		id := BuiltinTrunc
		if name == "round" {
			id = BuiltinRound
		}
		if n == 1 && genType(arg(0)) {
			return &BuiltinFunction{ID: id, Result: NewVector(TFloat, arg(0).Size)}
		}
		return &BuiltinFunction{ID: id}
	}

	// (genType, genType) → genType, both shapes equal.
	binary := map[string]BuiltinID{
		"atan": BuiltinAtan2, "pow": BuiltinPow,
		"reflect": BuiltinReflect,
	}
	if id, ok := binary[name]; ok && n == 2 {
		if genType(arg(0)) && sameShape(arg(0), arg(1)) {
			return &BuiltinFunction{ID: id, Result: NewVector(TFloat, arg(0).Size)}
		}
		return &BuiltinFunction{ID: id}
	}

	switch name {
	case "mod", "min", "max":
		id := map[string]BuiltinID{"mod": BuiltinMod, "min": BuiltinMin, "max": BuiltinMax}[name]
		if n == 2 && genType(arg(0)) && (sameShape(arg(0), arg(1)) || floatScalar(arg(1))) {
			return &BuiltinFunction{ID: id, Result: NewVector(TFloat, arg(0).Size)}
		}
		return &BuiltinFunction{ID: id}
	case "clamp":
		if n == 3 && genType(arg(0)) {
			if (sameShape(arg(0), arg(1)) && sameShape(arg(0), arg(2))) ||
				(floatScalar(arg(1)) && floatScalar(arg(2))) {
				return &BuiltinFunction{ID: BuiltinClamp, Result: NewVector(TFloat, arg(0).Size)}
			}
		}
		return &BuiltinFunction{ID: BuiltinClamp}
	case "mix":
		if n == 3 && genType(arg(0)) && sameShape(arg(0), arg(1)) {
			if sameShape(arg(0), arg(2)) || floatScalar(arg(2)) {
				return &BuiltinFunction{ID: BuiltinMix, Result: NewVector(TFloat, arg(0).Size)}
			}
		}
		return &BuiltinFunction{ID: BuiltinMix}
	case "step":
		if n == 2 && genType(arg(1)) && (sameShape(arg(0), arg(1)) || floatScalar(arg(0))) {
			return &BuiltinFunction{ID: BuiltinStep, Result: NewVector(TFloat, arg(1).Size)}
		}
		return &BuiltinFunction{ID: BuiltinStep}
	case "smoothstep":
		if n == 3 && genType(arg(2)) {
			if (sameShape(arg(0), arg(2)) && sameShape(arg(1), arg(2))) ||
				(floatScalar(arg(0)) && floatScalar(arg(1))) {
				return &BuiltinFunction{ID: BuiltinSmoothstep, Result: NewVector(TFloat, arg(2).Size)}
			}
		}
		return &BuiltinFunction{ID: BuiltinSmoothstep}
	case "length":
		if n == 1 && genType(arg(0)) {
			return &BuiltinFunction{ID: BuiltinLength, Result: NewType(TFloat)}
		}
		return &BuiltinFunction{ID: BuiltinLength}
	case "distance":
		if n == 2 && genType(arg(0)) && sameShape(arg(0), arg(1)) {
			return &BuiltinFunction{ID: BuiltinDistance, Result: NewType(TFloat)}
		}
		return &BuiltinFunction{ID: BuiltinDistance}
	case "dot":
		if n == 2 && genType(arg(0)) && sameShape(arg(0), arg(1)) {
			return &BuiltinFunction{ID: BuiltinDot, Result: NewType(TFloat)}
		}
		return &BuiltinFunction{ID: BuiltinDot}
	case "cross":
		if n == 2 && genType(arg(0)) && arg(0).Size == 3 && sameShape(arg(0), arg(1)) {
			return &BuiltinFunction{ID: BuiltinCross, Result: NewVector(TFloat, 3)}
		}
		return &BuiltinFunction{ID: BuiltinCross}
	case "faceforward":
		if n == 3 && genType(arg(0)) && sameShape(arg(0), arg(1)) && sameShape(arg(0), arg(2)) {
			return &BuiltinFunction{ID: BuiltinFaceforward, Result: NewVector(TFloat, arg(0).Size)}
		}
		return &BuiltinFunction{ID: BuiltinFaceforward}
	case "refract":
		if n == 3 && genType(arg(0)) && sameShape(arg(0), arg(1)) && floatScalar(arg(2)) {
			return &BuiltinFunction{ID: BuiltinRefract, Result: NewVector(TFloat, arg(0).Size)}
		}
		return &BuiltinFunction{ID: BuiltinRefract}
	case "matrixCompMult":
		if n == 2 && arg(0).IsMatrix() && sameShape(arg(0), arg(1)) {
			return &BuiltinFunction{ID: BuiltinMatrixCompMult, Result: NewMatrix(arg(0).Cols, arg(0).Size)}
		}
		return &BuiltinFunction{ID: BuiltinMatrixCompMult}
	case "lessThan", "lessThanEqual", "greaterThan", "greaterThanEqual", "equal", "notEqual":
		id := map[string]BuiltinID{
			"lessThan": BuiltinLessThan, "lessThanEqual": BuiltinLessThanEqual,
			"greaterThan": BuiltinGreaterThan, "greaterThanEqual": BuiltinGreaterThanEqual,
			"equal": BuiltinEqual, "notEqual": BuiltinNotEqual,
		}[name]
		if n == 2 && arg(0).IsVector() && sameShape(arg(0), arg(1)) {
			ok := arg(0).Basic == TFloat || arg(0).Basic.IsInteger()
			if (id == BuiltinEqual || id == BuiltinNotEqual) && arg(0).Basic == TBool {
				ok = true
			}
			if ok {
				return &BuiltinFunction{ID: id, Result: NewVector(TBool, arg(0).Size)}
			}
		}
		return &BuiltinFunction{ID: id}
	case "any", "all":
		id := BuiltinAny
		if name == "all" {
			id = BuiltinAll
		}
		if n == 1 && arg(0).Basic == TBool && arg(0).IsVector() {
			return &BuiltinFunction{ID: id, Result: NewType(TBool)}
		}
		return &BuiltinFunction{ID: id}
	case "not":
		if n == 1 && arg(0).Basic == TBool && arg(0).IsVector() {
			return &BuiltinFunction{ID: BuiltinNot, Result: NewVector(TBool, arg(0).Size)}
		}
		return &BuiltinFunction{ID: BuiltinNot}
	}

	return resolveTextureBuiltin(name, args, version)
}

func resolveTextureBuiltin(name string, args []*Type, version int) *BuiltinFunction {
	n := len(args)
	arg := func(i int) *Type { return args[i] }
	vec4f := NewVector(TFloat, 4)

	coordIs := func(i, size int) bool {
		return n > i && arg(i).Basic == TFloat && arg(i).Cols == 0 && arg(i).Size == size
	}
	samplerIs := func(b BasicType) bool {
		return n > 0 && arg(0).Basic == b && arg(0).ArraySize == 0
	}

	switch name {
	case "texture2D":
		if samplerIs(TSampler2D) && coordIs(1, 2) && (n == 2 || (n == 3 && floatScalar(arg(2)))) {
			return &BuiltinFunction{ID: BuiltinTexture2D, Result: vec4f}
		}
		return &BuiltinFunction{ID: BuiltinTexture2D}
	case "texture2DProj":
		if samplerIs(TSampler2D) && (coordIs(1, 3) || coordIs(1, 4)) && (n == 2 || (n == 3 && floatScalar(arg(2)))) {
			return &BuiltinFunction{ID: BuiltinTexture2DProj, Result: vec4f}
		}
		return &BuiltinFunction{ID: BuiltinTexture2DProj}
	case "texture2DLod":
		if samplerIs(TSampler2D) && coordIs(1, 2) && n == 3 && floatScalar(arg(2)) {
			return &BuiltinFunction{ID: BuiltinTexture2DLod, Result: vec4f}
		}
		return &BuiltinFunction{ID: BuiltinTexture2DLod}
	case "textureCube":
		if samplerIs(TSamplerCube) && coordIs(1, 3) && (n == 2 || (n == 3 && floatScalar(arg(2)))) {
			return &BuiltinFunction{ID: BuiltinTextureCube, Result: vec4f}
		}
		return &BuiltinFunction{ID: BuiltinTextureCube}
	case "textureCubeLod":
		if samplerIs(TSamplerCube) && coordIs(1, 3) && n == 3 && floatScalar(arg(2)) {
			return &BuiltinFunction{ID: BuiltinTextureCubeLod, Result: vec4f}
		}
		return &BuiltinFunction{ID: BuiltinTextureCubeLod}
	case "texture":
		if version < 300 {
			return nil
		}
		ok := (samplerIs(TSampler2D) && coordIs(1, 2)) ||
			(samplerIs(TSamplerCube) && coordIs(1, 3)) ||
			(samplerIs(TSampler3D) && coordIs(1, 3)) ||
			(samplerIs(TSampler2DArray) && coordIs(1, 3))
		if ok && (n == 2 || (n == 3 && floatScalar(arg(2)))) {
			return &BuiltinFunction{ID: BuiltinTexture, Result: vec4f}
		}
		return &BuiltinFunction{ID: BuiltinTexture}
	case "textureLod":
		if version < 300 {
			return nil
		}
		ok := (samplerIs(TSampler2D) && coordIs(1, 2)) ||
			(samplerIs(TSamplerCube) && coordIs(1, 3)) ||
			(samplerIs(TSampler3D) && coordIs(1, 3)) ||
			(samplerIs(TSampler2DArray) && coordIs(1, 3))
		if ok && n == 3 && floatScalar(arg(2)) {
			return &BuiltinFunction{ID: BuiltinTextureLod, Result: vec4f}
		}
		return &BuiltinFunction{ID: BuiltinTextureLod}
	case "textureProj":
		if version < 300 {
			return nil
		}
		if samplerIs(TSampler2D) && (coordIs(1, 3) || coordIs(1, 4)) && (n == 2 || (n == 3 && floatScalar(arg(2)))) {
			return &BuiltinFunction{ID: BuiltinTextureProj, Result: vec4f}
		}
		return &BuiltinFunction{ID: BuiltinTextureProj}
	}
	return nil
}

// IsSamplingBuiltin reports whether the builtin reads a sampler.
func (id BuiltinID) IsSamplingBuiltin() bool {
	switch id {
	case BuiltinTexture2D, BuiltinTexture2DProj, BuiltinTexture2DLod,
		BuiltinTextureCube, BuiltinTextureCubeLod,
		BuiltinTexture, BuiltinTextureLod, BuiltinTextureProj:
		return true
	}
	return false
}

// declareBuiltinVariables installs the implicitly declared variables
// for the shader type and version.
func declareBuiltinVariables(table *SymbolTable, shaderType ShaderKind, version int) {
	vec4 := func(q Qualifier, p Precision) *Type {
		t := NewVector(TFloat, 4)
		t.Qualifier = q
		t.Precision = p
		return t
	}

	switch shaderType {
	case VertexShaderKind:
		table.DeclareBuiltIn("gl_Position", vec4(QualVaryingOut, PrecisionHigh))
		pointSize := NewType(TFloat)
		pointSize.Qualifier = QualVaryingOut
		pointSize.Precision = PrecisionMedium
		table.DeclareBuiltIn("gl_PointSize", pointSize)
	case FragmentShaderKind:
		fragCoord := vec4(QualVaryingIn, PrecisionMedium)
		table.DeclareBuiltIn("gl_FragCoord", fragCoord)
		frontFacing := NewType(TBool)
		frontFacing.Qualifier = QualVaryingIn
		table.DeclareBuiltIn("gl_FrontFacing", frontFacing)
		pointCoord := NewVector(TFloat, 2)
		pointCoord.Qualifier = QualVaryingIn
		pointCoord.Precision = PrecisionMedium
		table.DeclareBuiltIn("gl_PointCoord", pointCoord)
		if version < 300 {
			table.DeclareBuiltIn("gl_FragColor", vec4(QualVaryingOut, PrecisionMedium))
			fragData := vec4(QualVaryingOut, PrecisionMedium)
			fragData.ArraySize = maxDrawBuffers
			table.DeclareBuiltIn("gl_FragData", fragData)
		}
	}
}

// Implementation limits.
const (
	maxDrawBuffers     = 4
	maxVertexAttribs   = 16
	maxVaryingVectors  = 10
	maxUniformVectors  = 256
	maxSamplerUnits    = 16
	maxNestedLoops     = 16
	maxFunctionNesting = 16
)
