package notifx

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	From     string   `json:"from"`
	To       []string `json:"to"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body,omitempty"`
	HTMLBody string   `json:"html_body,omitempty"`
}

// Recipient is a single addressee with an optional display name.
type Recipient struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// SendResult is what a provider reports for one accepted message.
type SendResult struct {
	MessageID string `json:"message_id,omitempty"`
	To        string `json:"to"`
	Success   bool   `json:"success"`
}

// Delivery is the outcome of a templated send. Success means the message
// was rendered and handed to the provider; Delivered means the provider
// accepted it.
type Delivery struct {
	Success   bool   `json:"success"`
	Delivered bool   `json:"delivered"`
	MessageID string `json:"message_id,omitempty"`
}

// Template keys understood by the default registry.
const (
	TemplateEmailVerification = "email-verification"
	TemplatePasswordReset     = "password-reset"
)
