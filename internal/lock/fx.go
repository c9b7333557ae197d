package lock

import (
	"github.com/outboundiq/costwatch/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(New),
)

// New picks the locker implementation: redis when configured, in-process
// otherwise.
func New(cfg config.Config, log *zap.Logger) Locker {
	if cfg.RedisAddr == "" {
		return NewKeyedLocker()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	log.Info("using redis month locks", zap.String("addr", cfg.RedisAddr))
	return NewRedisLocker(client)
}
