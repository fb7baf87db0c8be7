package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/swgl/preprocessor"
)

// SourceError is one compile error or warning with its location.
type SourceError struct {
	Message  string
	Location preprocessor.Location
	Token    string // offending token text, may be empty
	Warning  bool
}

// Error implements the error interface in the info-log line format.
func (e *SourceError) Error() string {
	kind := "ERROR"
	if e.Warning {
		kind = "WARNING"
	}
	if e.Token != "" {
		return fmt.Sprintf("%s: %d:%d: '%s' : %s", kind, e.Location.File, e.Location.Line, e.Token, e.Message)
	}
	return fmt.Sprintf("%s: %d:%d: %s", kind, e.Location.File, e.Location.Line, e.Message)
}

// SourceErrors accumulates diagnostics across all compile stages.
type SourceErrors []*SourceError

// Error implements the error interface.
func (el SourceErrors) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", el[0].Error(), len(el)-1)
}

// InfoLog renders every diagnostic, one per line, the way the shader
// info log reports them.
func (el SourceErrors) InfoLog() string {
	var sb strings.Builder
	for _, e := range el {
		sb.WriteString(e.Error())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// HasErrors reports whether any non-warning diagnostic is present.
func (el SourceErrors) HasErrors() bool {
	for _, e := range el {
		if !e.Warning {
			return true
		}
	}
	return false
}

// Add appends an error.
func (el *SourceErrors) Add(loc preprocessor.Location, token, format string, args ...interface{}) {
	*el = append(*el, &SourceError{
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
		Token:    token,
	})
}

// AddWarning appends a warning.
func (el *SourceErrors) AddWarning(loc preprocessor.Location, token, format string, args ...interface{}) {
	*el = append(*el, &SourceError{
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
		Token:    token,
		Warning:  true,
	})
}
