package config

import "net/mail"

// NotifxConfig selects and configures the outbound mail provider.
type NotifxConfig struct {
	// Provider is "console" or "ses".
	Provider    string
	FromName    string
	FromAddress string
	AWSRegion   string
	// TemplateDir, when set, overrides built-in templates by file name.
	TemplateDir string
}

// Sender formats the From header, e.g. "Gatekeeper <noreply@gatekeeper.dev>".
func (n NotifxConfig) Sender() string {
	return (&mail.Address{Name: n.FromName, Address: n.FromAddress}).String()
}

func loadNotifxConfig() NotifxConfig {
	// the EMAIL_* and AWS_REGION names are accepted as fallbacks
	return NotifxConfig{
		Provider:    getEnv("NOTIFX_PROVIDER", "console"),
		FromName:    getEnv("NOTIFX_FROM_NAME", getEnv("EMAIL_FROM_NAME", "Gatekeeper")),
		FromAddress: getEnv("NOTIFX_FROM_ADDRESS", getEnv("EMAIL_FROM_ADDRESS", "noreply@gatekeeper.dev")),
		AWSRegion:   getEnv("NOTIFX_AWS_REGION", getEnv("AWS_REGION", "us-east-1")),
		TemplateDir: getEnv("NOTIFX_TEMPLATE_DIR", ""),
	}
}
