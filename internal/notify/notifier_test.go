package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanbot/internal/common/config"
	"loanbot/internal/common/logger"
	"loanbot/internal/models"
)

type mockSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (m *mockSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.inputs = append(m.inputs, params)
	return &ses.SendEmailOutput{}, m.err
}

type mockSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, params)
	return &sns.PublishOutput{}, m.err
}

func testNotifyConfig(email, sms bool) config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Email.Enabled = email
	cfg.Email.FromEmail = "alerts@example.com"
	cfg.Email.ToEmail = "ops@example.com"
	cfg.SMS.Enabled = sms
	cfg.SMS.ToPhone = "+989120000000"
	cfg.AWS.Region = "eu-central-1"
	return cfg
}

func failedRecord() *models.ApplicationRecord {
	return &models.ApplicationRecord{
		ID:                 "app-1",
		FatherNationalCode: "1234567890",
		AttemptCount:       4,
		Status:             models.StatusPermanentError,
	}
}

func TestNotifier_RecordFailed_BothChannels(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewWithClients(testNotifyConfig(true, true), logger.NewTestLogger(t), sesMock, snsMock)

	n.RecordFailed(context.Background(), failedRecord(), "portal rejected")

	require.Len(t, sesMock.inputs, 1)
	input := sesMock.inputs[0]
	assert.Equal(t, []string{"ops@example.com"}, input.Destination.ToAddresses)
	assert.Contains(t, *input.Message.Subject.Data, "app-1")
	assert.Contains(t, *input.Message.Body.Text.Data, "portal rejected")
	assert.Equal(t, "alerts@example.com", *input.Source)

	require.Len(t, snsMock.inputs, 1)
	assert.Equal(t, "+989120000000", *snsMock.inputs[0].PhoneNumber)
}

func TestNotifier_RecordFailed_DisabledChannelsSkipped(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	n := NewWithClients(testNotifyConfig(true, false), logger.NewTestLogger(t), sesMock, snsMock)

	n.RecordFailed(context.Background(), failedRecord(), "x")

	assert.Len(t, sesMock.inputs, 1)
	assert.Empty(t, snsMock.inputs)
}

func TestNotifier_RecordFailed_DeliveryFailureDoesNotPanic(t *testing.T) {
	sesMock := &mockSES{err: errors.New("ses throttled")}
	snsMock := &mockSNS{err: errors.New("sns down")}
	n := NewWithClients(testNotifyConfig(true, true), logger.NewTestLogger(t), sesMock, snsMock)

	// Errors are swallowed and logged; the call must return normally.
	n.RecordFailed(context.Background(), failedRecord(), "x")
}

func TestNotifier_New_DisabledNeedsNoAWS(t *testing.T) {
	n, err := New(testNotifyConfig(false, false), logger.NewTestLogger(t))
	require.NoError(t, err)

	// Safe to call with no clients wired.
	n.RecordFailed(context.Background(), failedRecord(), "x")
}
