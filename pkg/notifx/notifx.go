package notifx

import (
	"context"
	"fmt"
	"slices"
)

// EmailSender sends a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage, opts ...Option) (SendResult, error)
}

// TemplateSender renders a registered template with merge fields and sends
// it to one recipient.
type TemplateSender interface {
	SendTemplate(ctx context.Context, to Recipient, templateKey string, merge map[string]any) (Delivery, error)
}

// Client is the main entry point for sending notifications.
type Client struct {
	provider  EmailSender
	templates *TemplateRegistry
	from      string
	opts      []Option
}

// NewClient creates a new notification client. from is used when a message
// carries no sender of its own.
func NewClient(provider EmailSender, templates *TemplateRegistry, from string, opts ...Option) *Client {
	if templates == nil {
		templates = NewTemplateRegistry()
	}
	return &Client{
		provider:  provider,
		templates: templates,
		from:      from,
		opts:      opts,
	}
}

// Templates exposes the registry so callers can add or override templates.
func (c *Client) Templates() *TemplateRegistry {
	return c.templates
}

// SendEmail sends an email through the configured provider.
func (c *Client) SendEmail(ctx context.Context, msg EmailMessage, opts ...Option) (SendResult, error) {
	if c.provider == nil {
		return SendResult{}, notifxErrors.New(ErrNoProvider)
	}
	if len(msg.To) == 0 {
		return SendResult{}, notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "no recipients")
	}
	if msg.Subject == "" {
		return SendResult{}, notifxErrors.New(ErrInvalidMessage).WithDetail("reason", "empty subject")
	}
	if msg.From == "" {
		msg.From = c.from
	}
	return c.provider.SendEmail(ctx, msg, append(slices.Clone(c.opts), opts...)...)
}

// SendTemplate renders templateKey and sends the result. Provider failures
// are reported both in the error and as an unsuccessful Delivery.
func (c *Client) SendTemplate(ctx context.Context, to Recipient, templateKey string, merge map[string]any) (Delivery, error) {
	rendered, err := c.templates.Render(templateKey, merge)
	if err != nil {
		return Delivery{}, err
	}

	address := to.Address
	if to.Name != "" {
		address = fmt.Sprintf("%q <%s>", to.Name, to.Address)
	}

	res, err := c.SendEmail(ctx, EmailMessage{
		To:       []string{address},
		Subject:  rendered.Subject,
		HTMLBody: rendered.HTML,
	}, WithTags(map[string]string{"template": templateKey}))
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{Success: true, Delivered: res.Success, MessageID: res.MessageID}, nil
}
