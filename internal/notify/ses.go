package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESMailer delivers notifications via Amazon SES. When fromEmail is empty
// the mailer is disabled and Notify silently skips sending.
type SESMailer struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
	enabled   bool
	log       *slog.Logger
}

// NewSESMailer creates an SES-backed notifier
func NewSESMailer(ctx context.Context, awsRegion, fromEmail, fromName string, log *slog.Logger) (*SESMailer, error) {
	if fromEmail == "" {
		log.Info("email notifications disabled: SES_FROM_EMAIL not configured")
		return &SESMailer{enabled: false, log: log}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("email notifications enabled", "from", fromEmail, "region", awsRegion)
	return &SESMailer{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		log:       log,
	}, nil
}

// IsEnabled returns whether the mailer will actually send
func (m *SESMailer) IsEnabled() bool {
	return m.enabled
}

// Notify sends the message to each recipient email address
func (m *SESMailer) Notify(ctx context.Context, msg Message) error {
	if !m.enabled {
		m.log.Debug("skipping email send (mailer disabled)", "type", msg.Type)
		return nil
	}
	if len(msg.Emails) == 0 {
		return nil
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>%s</h2>
		<p>%s</p>
	</div>
</body>
</html>`, msg.Title, msg.Body)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)),
		Destination: &types.Destination{
			ToAddresses: msg.Emails,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Title)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody)},
					Text: &types.Content{Data: aws.String(msg.Body)},
				},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
