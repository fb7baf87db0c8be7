package preprocessor

import "strconv"

// MacroKind distinguishes object-like from function-like macros.
type MacroKind int

const (
	MacroObject MacroKind = iota
	MacroFunction
)

// Macro is one entry in the macro table.
type Macro struct {
	Name       string
	Kind       MacroKind
	Parameters []string // ordered, unique within the macro
	Replacement []Token

	// Predefined macros cannot be redefined or undefined.
	Predefined bool

	// ExpansionCount is non-zero while the macro is being expanded;
	// such a macro may not be undefined.
	ExpansionCount int

	// builtin, when set, computes the replacement at expansion time
	// (__LINE__ and __FILE__).
	builtin func(loc Location) Token
}

// Equals reports whether two definitions are identical token for
// token, as required for a silent redefinition.
func (m *Macro) Equals(other *Macro) bool {
	if m.Kind != other.Kind || m.Name != other.Name {
		return false
	}
	if len(m.Parameters) != len(other.Parameters) || len(m.Replacement) != len(other.Replacement) {
		return false
	}
	for i := range m.Parameters {
		if m.Parameters[i] != other.Parameters[i] {
			return false
		}
	}
	for i := range m.Replacement {
		if !m.Replacement[i].Equals(other.Replacement[i]) {
			return false
		}
	}
	return true
}

// MacroSet is the macro table. An undefined name simply has no entry;
// a name can never map to more than one definition.
type MacroSet map[string]*Macro

// PredefineInt installs a predefined object macro with an integer
// replacement, overwriting any previous definition of the name.
func (s MacroSet) PredefineInt(name string, value int) {
	s[name] = &Macro{
		Name:       name,
		Kind:       MacroObject,
		Predefined: true,
		Replacement: []Token{{
			Kind: TokenConstInt,
			Text: strconv.Itoa(value),
		}},
	}
}

func (s MacroSet) predefineBuiltin(name string, fn func(loc Location) Token) {
	s[name] = &Macro{Name: name, Kind: MacroObject, Predefined: true, builtin: fn}
}

// NewMacroSet returns a macro table holding the standard predefined
// macros: __LINE__, __FILE__, __VERSION__, and GL_ES.
func NewMacroSet() MacroSet {
	s := make(MacroSet)
	s.predefineBuiltin("__LINE__", func(loc Location) Token {
		return Token{Kind: TokenConstInt, Text: strconv.Itoa(loc.Line)}
	})
	s.predefineBuiltin("__FILE__", func(loc Location) Token {
		return Token{Kind: TokenConstInt, Text: strconv.Itoa(loc.File)}
	})
	s.PredefineInt("__VERSION__", 100)
	s.PredefineInt("GL_ES", 1)
	return s
}
