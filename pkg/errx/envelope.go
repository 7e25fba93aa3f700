package errx

// Envelope is the uniform JSON body returned to API clients.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
	Type    string         `json:"type,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   string         `json:"cause,omitempty"`
}

// OK builds a success envelope.
func OK(data any, message string) Envelope {
	return Envelope{Success: true, Data: data, Message: message}
}

// ToEnvelope renders err for a client. Internal causes are only exposed when
// debug is set; internal messages are replaced by a generic one otherwise.
func ToEnvelope(err error, debug bool) (int, Envelope) {
	e := From(err)
	env := Envelope{
		Success: false,
		Error:   e.Message,
		Code:    e.Code,
		Type:    string(e.Type),
	}
	if len(e.Details) > 0 {
		env.Details = e.Details
	}
	if e.Type == TypeInternal && !debug {
		env.Error = "Internal server error"
		env.Details = nil
	}
	if debug && e.Err != nil {
		env.Cause = e.Err.Error()
	}
	return e.HTTPStatus, env
}
