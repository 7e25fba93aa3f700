package errx

import "net/http"

// Type is the coarse category of an Error. It decides the default HTTP
// status and whether the message is safe to show to clients.
type Type string

const (
	TypeInternal       Type = "INTERNAL"
	TypeValidation     Type = "VALIDATION"
	TypeAuthentication Type = "AUTHENTICATION"
	TypeAuthorization  Type = "AUTHORIZATION"
	TypeNotFound       Type = "NOT_FOUND"
	TypeConflict       Type = "CONFLICT"
	TypeBusiness       Type = "BUSINESS"
	TypeRateLimit      Type = "RATE_LIMIT"
	TypeExternal       Type = "EXTERNAL"
)

var typeStatus = map[Type]int{
	TypeValidation:     http.StatusBadRequest,
	TypeAuthentication: http.StatusUnauthorized,
	TypeAuthorization:  http.StatusForbidden,
	TypeNotFound:       http.StatusNotFound,
	TypeConflict:       http.StatusConflict,
	TypeBusiness:       http.StatusUnprocessableEntity,
	TypeRateLimit:      http.StatusTooManyRequests,
	TypeExternal:       http.StatusBadGateway,
}

// HTTPStatus is the status used when an error of this type has none of its own.
func (t Type) HTTPStatus() int {
	return typeToHTTPStatus(t)
}

func typeToHTTPStatus(t Type) int {
	if status, ok := typeStatus[t]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func Internal(message string) *Error        { return New(message, TypeInternal) }
func Validation(message string) *Error      { return New(message, TypeValidation) }
func Forbidden(message string) *Error       { return New(message, TypeAuthorization) }
func NotFound(message string) *Error        { return New(message, TypeNotFound) }
func Conflict(message string) *Error        { return New(message, TypeConflict) }
func TooManyRequests(message string) *Error { return New(message, TypeRateLimit) }

// External marks a failure in a dependency such as SES or Redis.
func External(message string) *Error { return New(message, TypeExternal) }
