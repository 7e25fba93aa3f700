// Package notifxconsole is the development mail provider: messages are
// written to the log instead of leaving the process, so verification and
// reset codes can be read off the terminal.
package notifxconsole

import (
	"context"
	"strings"

	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/google/uuid"
)

type ConsoleProvider struct {
	logger *logx.Logger
}

// NewConsoleProvider logs through the package default logger.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

// WithLogger returns a provider writing to l.
func (p *ConsoleProvider) WithLogger(l *logx.Logger) *ConsoleProvider {
	return &ConsoleProvider{logger: l}
}

func (p *ConsoleProvider) SendEmail(_ context.Context, msg notifx.EmailMessage, opts ...notifx.Option) (notifx.SendResult, error) {
	so := notifx.ApplySendOptions(opts)
	to := strings.Join(msg.To, ", ")
	result := notifx.SendResult{MessageID: "console-" + uuid.NewString(), To: to, Success: true}

	fields := logx.Fields{
		"message_id": result.MessageID,
		"from":       msg.From,
		"to":         to,
		"subject":    msg.Subject,
	}
	if len(so.Tags) > 0 {
		fields["tags"] = so.Tags
	}
	if so.ConfigID != "" {
		fields["config_set"] = so.ConfigID
	}

	log := p.log().WithFields(fields)
	log.Info("notifx/console: email captured")
	if msg.TextBody != "" {
		log.Info(msg.TextBody)
	}
	if msg.HTMLBody != "" {
		log.Debug(msg.HTMLBody)
	}
	return result, nil
}

func (p *ConsoleProvider) log() *logx.Logger {
	if p.logger != nil {
		return p.logger
	}
	return logx.GetDefaultLogger()
}
