package notifxses

import (
	"context"
	"sort"

	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// API is the part of the SES client the provider uses.
type API interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESProvider implements notifx.EmailSender using AWS SES.
type SESProvider struct {
	client      API
	fromAddress string
}

// NewSESProvider creates a new SES email provider.
func NewSESProvider(client API, fromAddress string) *SESProvider {
	return &SESProvider{
		client:      client,
		fromAddress: fromAddress,
	}
}

// NewFromRegion loads the default AWS credential chain for region.
func NewFromRegion(ctx context.Context, region, fromAddress string) (*SESProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, sesErrors.NewWithCause(ErrConfig, err).WithDetail("region", region)
	}
	return NewSESProvider(ses.NewFromConfig(cfg), fromAddress), nil
}

// SendEmail sends a single email via SES.
func (p *SESProvider) SendEmail(ctx context.Context, msg notifx.EmailMessage, opts ...notifx.Option) (notifx.SendResult, error) {
	so := notifx.ApplySendOptions(opts)

	from := msg.From
	if from == "" {
		from = p.fromAddress
	}

	body := &types.Body{}
	if msg.TextBody != "" {
		body.Text = &types.Content{
			Data:    aws.String(msg.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{
			Data:    aws.String(msg.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(from),
		Destination: &types.Destination{ToAddresses: msg.To},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: body,
		},
	}

	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if so.ConfigID != "" {
		input.ConfigurationSetName = aws.String(so.ConfigID)
	}
	input.Tags = messageTags(so.Tags)

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return notifx.SendResult{}, sesErrors.NewWithCause(ErrSendFailed, err).
			WithDetail("subject", msg.Subject)
	}

	result := notifx.SendResult{Success: true}
	if len(msg.To) > 0 {
		result.To = msg.To[0]
	}
	if out != nil && out.MessageId != nil {
		result.MessageID = *out.MessageId
	}
	return result, nil
}

func messageTags(tags map[string]string) []types.MessageTag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.MessageTag, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.MessageTag{Name: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}
