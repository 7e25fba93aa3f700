package otp

import (
	"net/http"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("OTP")

var (
	// CodeInvalidOrExpired deliberately covers wrong, expired, consumed and unknown codes.
	CodeInvalidOrExpired = ErrRegistry.Register("INVALID_OR_EXPIRED", errx.TypeValidation, http.StatusBadRequest, "Invalid or expired code")
	CodeInvalidLength    = ErrRegistry.Register("INVALID_LENGTH", errx.TypeValidation, http.StatusBadRequest, "Code length must be between 3 and 15 digits")
	CodeGenerationFailed = ErrRegistry.Register("GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to generate code")
	CodeTooManyRequests  = ErrRegistry.Register("TOO_MANY_REQUESTS", errx.TypeRateLimit, http.StatusTooManyRequests, "Too many code requests")
	CodeAlreadyVerified  = ErrRegistry.Register("ALREADY_VERIFIED", errx.TypeBusiness, http.StatusUnprocessableEntity, "Email is already verified")
)

func ErrInvalidOrExpired() *errx.Error { return ErrRegistry.New(CodeInvalidOrExpired) }
func ErrInvalidLength() *errx.Error    { return ErrRegistry.New(CodeInvalidLength) }
func ErrTooManyRequests() *errx.Error  { return ErrRegistry.New(CodeTooManyRequests) }
