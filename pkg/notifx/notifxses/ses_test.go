package notifxses

import (
	"context"
	"errors"
	"testing"

	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/notifx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESProviderBuildsInput(t *testing.T) {
	api := &fakeSES{}
	p := NewSESProvider(api, "noreply@example.com")

	res, err := p.SendEmail(context.Background(), notifx.EmailMessage{
		To:       []string{"ada@example.com"},
		Subject:  "Verify your email",
		HTMLBody: "<p>123456</p>",
	}, notifx.WithConfigID("auth-events"), notifx.WithTags(map[string]string{"template": "email-verification"}))
	require.NoError(t, err)

	assert.Equal(t, "ses-123", res.MessageID)
	assert.True(t, res.Success)
	assert.Equal(t, "noreply@example.com", aws.ToString(api.input.Source))
	assert.Equal(t, []string{"ada@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "<p>123456</p>", aws.ToString(api.input.Message.Body.Html.Data))
	assert.Nil(t, api.input.Message.Body.Text)
	assert.Equal(t, "auth-events", aws.ToString(api.input.ConfigurationSetName))
	require.Len(t, api.input.Tags, 1)
	assert.Equal(t, "template", aws.ToString(api.input.Tags[0].Name))
}

func TestSESProviderWrapsFailure(t *testing.T) {
	p := NewSESProvider(&fakeSES{err: errors.New("MessageRejected")}, "noreply@example.com")

	_, err := p.SendEmail(context.Background(), notifx.EmailMessage{To: []string{"a@example.com"}, Subject: "s"})
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, ErrSendFailed))
	assert.True(t, errx.IsType(err, errx.TypeExternal))
}
