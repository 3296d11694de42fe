package membership

import (
	"context"
	"fmt"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

const defaultReminderDays = 3

// ExpireDue deactivates subscriptions past their end date and tells each
// owner.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	return s.subs.ExpireDue(ctx, limit, func(ctx context.Context, sub *models.Subscription) error {
		u, err := s.users.GetByID(ctx, sub.UserID)
		if err != nil {
			return err
		}
		return s.notify(ctx, u, types.NotificationTypeSubscriptionExpiry, "VIP expired",
			fmt.Sprintf("Your VIP subscription ended on %s.", formatDate(sub.EndDate)))
	})
}

// RemindExpiring enqueues one reminder per subscription ending within
// the configured number of days.
func (s *Service) RemindExpiring(ctx context.Context) (int, error) {
	days := s.cfg.Subscription.ReminderDays
	if days <= 0 {
		days = defaultReminderDays
	}
	return s.subs.RemindExpiring(ctx, days, func(ctx context.Context, sub *models.Subscription) error {
		u := sub.User
		if u == nil {
			var err error
			if u, err = s.users.GetByID(ctx, sub.UserID); err != nil {
				return err
			}
		}
		return s.notify(ctx, u, types.NotificationTypeSubscriptionExpiry, "VIP expiring soon",
			fmt.Sprintf("Your VIP subscription ends on %s.", formatDate(sub.EndDate)))
	})
}
