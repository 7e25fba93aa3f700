package jobx

import "github.com/Abraxas-365/gatekeeper/pkg/errx"

var jobxErrors = errx.NewRegistry("JOBX")

var (
	ErrNoHandler      = jobxErrors.Register("NO_HANDLER", errx.TypeValidation, 0, "No handler registered for job type")
	ErrInvalidJob     = jobxErrors.Register("INVALID_JOB", errx.TypeValidation, 0, "Invalid job definition")
	ErrInvalidPayload = jobxErrors.Register("INVALID_PAYLOAD", errx.TypeValidation, 0, "Job payload could not be decoded")
	ErrAlreadyRunning = jobxErrors.Register("ALREADY_RUNNING", errx.TypeConflict, 0, "Worker is already running")
	ErrHandlerPanic   = jobxErrors.Register("HANDLER_PANIC", errx.TypeInternal, 0, "Job handler panicked")
)
