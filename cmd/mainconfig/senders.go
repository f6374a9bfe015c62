package mainconfig

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/clinicware/vet-reminders/internal/config"
	"github.com/clinicware/vet-reminders/internal/notify"
	"github.com/clinicware/vet-reminders/pkg/logging"
)

// NewEmailSender builds the configured email sender. Falls back to a logging
// stub when the provider is not configured.
func NewEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
		if sender != nil {
			return sender, nil
		}
	default:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender, nil
		}
	}
	logger.Warn("email provider not configured, using stub sender", "provider", cfg.EmailProvider)
	return notify.NewStubEmailSender(logger), nil
}

// NewSMSSender builds the configured SMS sender. Falls back to a logging stub
// when the provider is not configured.
func NewSMSSender(cfg *appconfig.Config, logger *logging.Logger) notify.SMSSender {
	if cfg.SMSProvider == "telnyx" && cfg.TelnyxAPIKey != "" {
		return notify.NewTelnyxSender(notify.TelnyxConfig{
			APIKey:             cfg.TelnyxAPIKey,
			MessagingProfileID: cfg.TelnyxMessagingProfileID,
			FromNumber:         cfg.TelnyxFromNumber,
			MaxAttempts:        cfg.TelnyxRetryMaxAttempts,
			RetryBaseDelay:     cfg.TelnyxRetryBaseDelay,
		}, logger)
	}
	logger.Warn("sms provider not configured, using stub sender", "provider", cfg.SMSProvider)
	return notify.NewStubSMSSender(logger)
}
