package slack

import (
	"github.com/outboundiq/costwatch/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("slack",
	fx.Provide(New),
)

// New returns a webhook-backed provider when one is configured, a no-op
// otherwise.
func New(cfg config.Config, log *zap.Logger) Provider {
	if cfg.SlackWebhookURL == "" {
		log.Info("slack webhook not configured, cost alerts disabled")
		return NoOpProvider{}
	}
	log.Info("slack cost alerts enabled", zap.String("channel", cfg.SlackChannel))
	return NewWebhookProvider(cfg.SlackWebhookURL, cfg.SlackChannel)
}
