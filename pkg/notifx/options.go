package notifx

import "maps"

// SendOptions are the per-send knobs a provider may honor. Providers ignore
// what they do not support.
type SendOptions struct {
	// Tags end up as message tags on SES and as log fields on the console.
	Tags map[string]string
	// ConfigID names an SES configuration set.
	ConfigID string
}

type Option func(*SendOptions)

// WithTags merges tags into any set by earlier options.
func WithTags(tags map[string]string) Option {
	return func(o *SendOptions) {
		if o.Tags == nil {
			o.Tags = map[string]string{}
		}
		maps.Copy(o.Tags, tags)
	}
}

func WithConfigID(id string) Option {
	return func(o *SendOptions) { o.ConfigID = id }
}

// ApplySendOptions resolves opts in order; later options win.
func ApplySendOptions(opts []Option) SendOptions {
	so := SendOptions{}
	for _, apply := range opts {
		if apply != nil {
			apply(&so)
		}
	}
	return so
}
