package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/Keoroanthony/shopnow-api/configs"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailSender sends mail through Amazon SES.
type EmailSender struct {
	client  sesAPI
	sender  string
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *zap.Logger
}

func NewEmailSender(ctx context.Context, cfg config.EmailConfig, log *zap.Logger) (*EmailSender, error) {
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("sender email address is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	return newEmailSender(ses.NewFromConfig(awsCfg), cfg.SenderEmail, log), nil
}

func newEmailSender(client sesAPI, sender string, log *zap.Logger) *EmailSender {
	return &EmailSender{
		client:  client,
		sender:  sender,
		breaker: newBreaker("email", log),
		log:     log,
	}
}

func (e *EmailSender) Send(ctx context.Context, to, subject, html, text string) error {
	if to == "" {
		return fmt.Errorf("recipient email address is empty")
	}

	input := &ses.SendEmailInput{
		Source: aws.String(e.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(html),
				},
				Text: &types.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(text),
				},
			},
		},
	}

	_, err := e.breaker.Execute(func() (struct{}, error) {
		_, err := e.client.SendEmail(ctx, input)
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.log.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
