// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"loanbot/internal/common/config"
	"loanbot/internal/common/logger"
	"loanbot/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier alerts the operator when a record reaches permanent_error.
// Delivery failures are logged, never propagated: alerting must not
// disturb the scheduler loop.
type Notifier struct {
	config    config.NotificationConfig
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
}

func New(cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	n := &Notifier{
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}

	if !cfg.Email.Enabled && !cfg.SMS.Enabled {
		return n, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	n.sesClient = ses.NewFromConfig(awsCfg)
	n.snsClient = sns.NewFromConfig(awsCfg)
	return n, nil
}

// NewWithClients wires explicit SES/SNS implementations (used in tests).
func NewWithClients(cfg config.NotificationConfig, log logger.Logger, sesClient SESService, snsClient SNSService) *Notifier {
	return &Notifier{
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
		sesClient: sesClient,
		snsClient: snsClient,
	}
}

// RecordFailed sends the configured alerts for one permanently failed
// application.
func (n *Notifier) RecordFailed(ctx context.Context, rec *models.ApplicationRecord, reason string) {
	subject := fmt.Sprintf("loanbot: application %s permanently failed", rec.ID)
	body := fmt.Sprintf(
		"Application %s (father national code %s) reached permanent_error after %d attempts.\nLast response: %s",
		rec.ID, rec.FatherNationalCode, rec.AttemptCount+1, reason,
	)

	if n.config.Email.Enabled && n.sesClient != nil {
		if err := n.sendEmail(ctx, subject, body); err != nil {
			n.logger.Error("alert email failed", map[string]interface{}{
				"applicationId": rec.ID,
				"error":         err,
			})
		}
	}

	if n.config.SMS.Enabled && n.snsClient != nil {
		if err := n.sendSMS(ctx, subject); err != nil {
			n.logger.Error("alert sms failed", map[string]interface{}{
				"applicationId": rec.ID,
				"error":         err,
			})
		}
	}
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{n.config.Email.ToEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(n.config.SMS.ToPhone),
		Message:     aws.String(message),
	})
	return err
}
