package renderer

// ErrorCode mirrors the GL error enumeration the surrounding API
// layer reports from its last-error slot.
type ErrorCode uint32

const (
	NoError                      ErrorCode = 0
	InvalidEnum                  ErrorCode = 0x0500
	InvalidValue                 ErrorCode = 0x0501
	InvalidOperation             ErrorCode = 0x0502
	OutOfMemory                  ErrorCode = 0x0505
	InvalidFramebufferOperation  ErrorCode = 0x0506
)

// String returns the GL constant name.
func (e ErrorCode) String() string {
	switch e {
	case NoError:
		return "GL_NO_ERROR"
	case InvalidEnum:
		return "GL_INVALID_ENUM"
	case InvalidValue:
		return "GL_INVALID_VALUE"
	case InvalidOperation:
		return "GL_INVALID_OPERATION"
	case OutOfMemory:
		return "GL_OUT_OF_MEMORY"
	case InvalidFramebufferOperation:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	}
	return "GL_UNKNOWN"
}

// Error is a draw-time failure carrying its GL code.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code.String() + ": " + e.Message
}

func glError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}
