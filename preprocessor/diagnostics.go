package preprocessor

import "fmt"

// DiagnosticID identifies a preprocessor condition.
type DiagnosticID int

const (
	DiagInternalError DiagnosticID = iota
	DiagOutOfMemory
	DiagInvalidCharacter
	DiagInvalidNumber
	DiagIntegerOverflow
	DiagFloatOverflow
	DiagTokenTooLong
	DiagInvalidExpression
	DiagDivisionByZero
	DiagEOFInComment
	DiagEOFInDirective
	DiagUnexpectedToken
	DiagDirectiveInvalidName
	DiagMacroNameReserved
	DiagMacroRedefined
	DiagMacroPredefinedRedefined
	DiagMacroPredefinedUndefined
	DiagMacroUnterminatedInvocation
	DiagMacroUndefinedWhileInvoked
	DiagMacroTooFewArgs
	DiagMacroTooManyArgs
	DiagMacroDuplicateParameterNames
	DiagMacroInvocationChainTooDeep
	DiagConditionalElseWithoutIf
	DiagConditionalElseAfterElse
	DiagConditionalElifWithoutIf
	DiagConditionalElifAfterElse
	DiagConditionalEndifWithoutIf
	DiagConditionalUnexpectedToken
	DiagConditionalUnterminated
	DiagInvalidExtensionName
	DiagInvalidExtensionBehavior
	DiagInvalidExtensionDirective
	DiagNonPPTokenBeforeExtension
	DiagInvalidVersionNumber
	DiagInvalidVersionDirective
	DiagUnsupportedShaderVersion
	DiagVersionNotFirstStatement
	DiagVersionNotFirstLine
	DiagInvalidLineNumber
	DiagInvalidFileNumber
	DiagInvalidLineDirective
	DiagUnrecognizedPragma

	// Warnings
	DiagWarningMacroNameReserved
)

var diagnosticNames = map[DiagnosticID]string{
	DiagInternalError:                "internal error",
	DiagOutOfMemory:                  "out of memory",
	DiagInvalidCharacter:             "invalid character",
	DiagInvalidNumber:                "invalid number",
	DiagIntegerOverflow:              "integer overflow",
	DiagFloatOverflow:                "float overflow",
	DiagTokenTooLong:                 "token too long",
	DiagInvalidExpression:            "invalid expression",
	DiagDivisionByZero:               "division by zero",
	DiagEOFInComment:                 "unexpected end of file in comment",
	DiagEOFInDirective:               "unexpected end of file in directive",
	DiagUnexpectedToken:              "unexpected token",
	DiagDirectiveInvalidName:         "invalid directive name",
	DiagMacroNameReserved:            "macro name is reserved",
	DiagMacroRedefined:               "macro redefined",
	DiagMacroPredefinedRedefined:     "predefined macro redefined",
	DiagMacroPredefinedUndefined:     "predefined macro undefined",
	DiagMacroUnterminatedInvocation:  "unterminated macro invocation",
	DiagMacroUndefinedWhileInvoked:   "macro undefined while being invoked",
	DiagMacroTooFewArgs:              "too few macro arguments",
	DiagMacroTooManyArgs:             "too many macro arguments",
	DiagMacroDuplicateParameterNames: "duplicate macro parameter name",
	DiagMacroInvocationChainTooDeep:  "macro invocation chain too deep",
	DiagConditionalElseWithoutIf:     "unexpected #else without #if",
	DiagConditionalElseAfterElse:     "unexpected #else after #else",
	DiagConditionalElifWithoutIf:     "unexpected #elif without #if",
	DiagConditionalElifAfterElse:     "unexpected #elif after #else",
	DiagConditionalEndifWithoutIf:    "unexpected #endif without #if",
	DiagConditionalUnexpectedToken:   "unexpected token in conditional directive",
	DiagConditionalUnterminated:      "unterminated conditional directive",
	DiagInvalidExtensionName:         "invalid extension name",
	DiagInvalidExtensionBehavior:     "invalid extension behavior",
	DiagInvalidExtensionDirective:    "invalid extension directive",
	DiagNonPPTokenBeforeExtension:    "extension directive must occur before any non-preprocessor tokens",
	DiagInvalidVersionNumber:         "invalid version number",
	DiagInvalidVersionDirective:      "invalid version directive",
	DiagUnsupportedShaderVersion:     "unsupported shader version",
	DiagVersionNotFirstStatement:     "#version directive must occur before anything else",
	DiagVersionNotFirstLine:          "#version directive must occur on the first line of the shader",
	DiagInvalidLineNumber:            "invalid line number",
	DiagInvalidFileNumber:            "invalid file number",
	DiagInvalidLineDirective:         "invalid line directive",
	DiagUnrecognizedPragma:           "unrecognized pragma",
	DiagWarningMacroNameReserved:     "macro name with a double underscore is reserved",
}

// Message returns the human-readable description of the diagnostic.
func (id DiagnosticID) Message() string {
	if m, ok := diagnosticNames[id]; ok {
		return m
	}
	return "unknown diagnostic"
}

// Severity classifies a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

// Severity returns whether the diagnostic is an error or a warning.
func (id DiagnosticID) Severity() Severity {
	if id >= DiagWarningMacroNameReserved {
		return Warning
	}
	return Error
}

// Location is a source position: the index of the source string the
// token came from and its 1-based logical line.
type Location struct {
	File int
	Line int
}

// String formats the location in file:line form.
func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.File, l.Line)
}

// Diagnostic is one reported condition.
type Diagnostic struct {
	ID       DiagnosticID
	Location Location
	Text     string // the offending token or name
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	if d.Text != "" {
		return fmt.Sprintf("%s: %s: '%s'", d.Location, d.ID.Message(), d.Text)
	}
	return fmt.Sprintf("%s: %s", d.Location, d.ID.Message())
}

// Sink receives diagnostics as they are found.
type Sink interface {
	Report(id DiagnosticID, loc Location, text string)
}

// CountingSink collects diagnostics and counts errors and warnings.
// The zero value is ready to use.
type CountingSink struct {
	Diagnostics []Diagnostic
	ErrorCount  int
	WarnCount   int
}

// Report implements Sink.
func (s *CountingSink) Report(id DiagnosticID, loc Location, text string) {
	s.Diagnostics = append(s.Diagnostics, Diagnostic{ID: id, Location: loc, Text: text})
	if id.Severity() == Error {
		s.ErrorCount++
	} else {
		s.WarnCount++
	}
}

// HasErrors reports whether any error-severity diagnostic arrived.
func (s *CountingSink) HasErrors() bool {
	return s.ErrorCount > 0
}
