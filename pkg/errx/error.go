package errx

import (
	"errors"
	"maps"
	"strings"
)

// Error is the application error carried through every layer and rendered
// by ToEnvelope at the edge. Errors with the same Code match under
// errors.Is.
type Error struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Type       Type           `json:"type"`
	HTTPStatus int            `json:"http_status"`
	Details    map[string]any `json:"details,omitempty"`

	// Err is the cause. It never reaches clients outside debug mode.
	Err error `json:"-"`
}

func New(message string, errType Type) *Error {
	return &Error{
		Code:       string(errType),
		Message:    message,
		Type:       errType,
		HTTPStatus: typeToHTTPStatus(errType),
		Details:    map[string]any{},
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[" + e.Code + "] " + e.Message)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithDetail mutates e and returns it for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	maps.Copy(e.Details, details)
	return e
}

// Wrap attaches message to err. When err already carries an *Error its code,
// type and status win over errType so registered codes survive wrapping.
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}
	wrapped := New(message, errType)
	wrapped.Err = err
	var inner *Error
	if errors.As(err, &inner) {
		wrapped.Code = inner.Code
		wrapped.Type = inner.Type
		wrapped.HTTPStatus = inner.HTTPStatus
		wrapped.Details = inner.Details
	}
	return wrapped
}

// From returns the first *Error in err's chain. Anything else becomes an
// internal error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, "Internal server error", TypeInternal)
}

// IsCode reports whether err carries the registered code.
func IsCode(err error, code *ErrorCode) bool {
	var e *Error
	return code != nil && errors.As(err, &e) && e.Code == code.Code
}

func IsType(err error, t Type) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}
