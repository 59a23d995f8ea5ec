package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/vetclinic-platform/internal/config"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// BuildNotifier assembles the confirmation channels enabled by cfg: an SQS
// queue when NOTIFY_QUEUE_URL is set and an email sender chosen by
// EMAIL_PROVIDER. With no channel configured, confirmations are only logged.
func BuildNotifier(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewLogNotifier(logger)
	}

	var channels notify.Fanout
	if url := strings.TrimSpace(cfg.NotifyQueueURL); url != "" {
		channels = append(channels, notify.NewSQSNotifier(sqs.NewFromConfig(awsCfg), url))
		logger.Info("booking confirmations enabled", "channel", "sqs")
	}
	if sender := buildEmailSender(cfg, awsCfg, logger); sender != nil {
		channels = append(channels, notify.NewEmailNotifier(sender, logger))
		logger.Info("booking confirmations enabled", "channel", "email", "provider", cfg.EmailProvider)
	}

	switch len(channels) {
	case 0:
		return notify.NewLogNotifier(logger)
	case 1:
		return channels[0]
	default:
		return channels
	}
}

func buildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			logger.Warn("EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is empty; email disabled")
			return nil
		}
		return sender
	case "ses":
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	case "stub":
		return notify.NewStubEmailSender(logger)
	case "":
		return nil
	default:
		logger.Warn("unknown EMAIL_PROVIDER; email disabled", "provider", cfg.EmailProvider)
		return nil
	}
}
