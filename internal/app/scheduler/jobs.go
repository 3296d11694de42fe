package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/service/broadcast"
	"github.com/alanwang5210/telegram-bot/internal/app/service/membership"
	"github.com/alanwang5210/telegram-bot/internal/app/service/notification"
	"github.com/alanwang5210/telegram-bot/internal/app/service/statistics"
	"github.com/alanwang5210/telegram-bot/pkg/config"
)

const (
	JobDispatch = "notification_dispatch"
	JobExpire   = "subscription_expire"
	JobRemind   = "subscription_remind"
	JobPush     = "broadcast_push"
	JobSnapshot = "membership_snapshot"

	expireBatch = 500
)

var Module = fx.Options(
	fx.Provide(NewRedisClient),
	fx.Provide(newLocker),
	fx.Provide(NewJobs),
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

// NewJobs wires the maintenance passes to their services.
func NewJobs(cfg *config.Config, notifications *notification.Service, m *membership.Service,
	messages *broadcast.Service, stats *statistics.Service, log *zap.SugaredLogger) []Job {
	return []Job{
		{
			Name:     JobDispatch,
			Interval: cfg.Notification.DispatchInterval,
			Run: func(ctx context.Context) error {
				results, err := notifications.DispatchAll(ctx)
				for _, r := range results {
					if r.Selected > 0 {
						log.Infow("notifications dispatched", "channel", r.Channel,
							"delivered", r.Delivered, "failed", r.Failed, "skipped", r.Skipped)
					}
				}
				return err
			},
		},
		{
			Name:     JobExpire,
			Interval: cfg.Subscription.ExpiryInterval,
			Run: func(ctx context.Context) error {
				n, err := m.ExpireDue(ctx, expireBatch)
				if n > 0 {
					log.Infow("subscriptions expired", "count", n)
				}
				return err
			},
		},
		{
			Name:     JobRemind,
			Interval: cfg.Subscription.ReminderInterval,
			Run: func(ctx context.Context) error {
				n, err := m.RemindExpiring(ctx)
				if n > 0 {
					log.Infow("expiry reminders queued", "count", n)
				}
				return err
			},
		},
		{
			Name:     JobPush,
			Interval: cfg.Scheduler.PushInterval,
			Run: func(ctx context.Context) error {
				res, err := messages.PushPending(ctx, 0)
				if res.Pushed+res.Failed > 0 {
					log.Infow("broadcast deliveries pushed", "pushed", res.Pushed, "failed", res.Failed)
				}
				return err
			},
		},
		{
			Name:     JobSnapshot,
			Interval: cfg.Scheduler.SnapshotInterval,
			Run: func(ctx context.Context) error {
				if _, err := stats.SaveDailySnapshots(ctx); err != nil {
					return fmt.Errorf("membership snapshot: %w", err)
				}
				return nil
			},
		},
	}
}

// Find returns the job with the given name.
func Find(jobs []Job, name string) (Job, bool) {
	for _, j := range jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}
