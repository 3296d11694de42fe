package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/pkg/config"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
)

const leaseKeyPrefix = "vipbot:job_lease:"

// Locker grants a short exclusive lease per job so that of several
// replicas only one runs a pass at a time.
type Locker interface {
	TryLock(ctx context.Context, job string, ttl time.Duration) (unlock func(context.Context), ok bool, err error)
}

// localLocker always grants the lease. It is used when Redis is not
// configured.
type localLocker struct{}

func (localLocker) TryLock(context.Context, string, time.Duration) (func(context.Context), bool, error) {
	return func(context.Context) {}, true, nil
}

// releaseScript deletes the lease only if this owner still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

func NewRedisLocker(client *redis.Client, log *zap.SugaredLogger) *RedisLocker {
	return &RedisLocker{client: client, log: log}
}

func (l *RedisLocker) TryLock(ctx context.Context, job string, ttl time.Duration) (func(context.Context), bool, error) {
	key := leaseKeyPrefix + job
	owner := tool.GenerateUUIDV7()
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire job lease %s: %w", job, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) {
		if err := releaseScript.Run(ctx, l.client, []string{key}, owner).Err(); err != nil {
			l.log.Warnw("release job lease failed", "job", job, "err", err)
		}
	}, true, nil
}

// NewRedisClient returns nil when no address is configured.
func NewRedisClient(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		log.Infow("redis not configured, job leases are local")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return client.Close() },
	})
	return client, nil
}

func newLocker(client *redis.Client, log *zap.SugaredLogger) Locker {
	if client == nil {
		return localLocker{}
	}
	return NewRedisLocker(client, log)
}
