package errx

import (
	"maps"
	"net/http"
	"sync"
)

// ErrorCode is the template for every error a module raises under one code.
// Code carries the registry prefix, e.g. AUTH_INVALID_TOKEN.
type ErrorCode struct {
	Code       string
	Type       Type
	HTTPStatus int
	Message    string
}

// Registry namespaces the codes of one module under a shared prefix.
type Registry struct {
	prefix string

	mu    sync.RWMutex
	codes map[string]*ErrorCode
}

func NewRegistry(prefix string) *Registry {
	return &Registry{prefix: prefix, codes: map[string]*ErrorCode{}}
}

// Register declares code under the registry prefix. httpStatus 0 means the
// status implied by errType. Registering the same short code twice replaces
// the earlier entry.
func (r *Registry) Register(code string, errType Type, httpStatus int, message string) *ErrorCode {
	if httpStatus == 0 {
		httpStatus = typeToHTTPStatus(errType)
	}
	ec := &ErrorCode{
		Code:       r.prefix + "_" + code,
		Type:       errType,
		HTTPStatus: httpStatus,
		Message:    message,
	}

	r.mu.Lock()
	r.codes[code] = ec
	r.mu.Unlock()
	return ec
}

func (r *Registry) New(code *ErrorCode) *Error {
	return code.build(code.Message, nil)
}

func (r *Registry) NewWithMessage(code *ErrorCode, message string) *Error {
	return code.build(message, nil)
}

func (r *Registry) NewWithCause(code *ErrorCode, cause error) *Error {
	return code.build(code.Message, cause)
}

// Get looks a code up by its short, unprefixed name.
func (r *Registry) Get(code string) (*ErrorCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ec, ok := r.codes[code]
	return ec, ok
}

// Codes snapshots the registry, keyed by short name.
func (r *Registry) Codes() map[string]*ErrorCode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.codes)
}

func (c *ErrorCode) build(message string, cause error) *Error {
	status := c.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{
		Code:       c.Code,
		Message:    message,
		Type:       c.Type,
		HTTPStatus: status,
		Details:    map[string]any{},
		Err:        cause,
	}
}
