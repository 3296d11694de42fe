package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// Activate inserts an active subscription of planID for userID starting
// at start (now when zero) and recounts the user's VIP state. It joins
// the caller's transaction when there is one.
func (s *Service) Activate(ctx context.Context, userID, planID string, start time.Time, reason types.SubscriptionChangeReason) (*models.Subscription, error) {
	plan := s.cfg.GetPlan(planID)
	if !plan.Valid() {
		return nil, apperr.InvalidTransition("unknown plan %q", planID)
	}
	if start.IsZero() {
		start = s.now()
	}
	sub := &models.Subscription{
		ID:        tool.GenerateUUIDV7(),
		UserID:    userID,
		PlanID:    plan.ID,
		StartDate: start.UTC(),
		EndDate:   start.UTC().Add(plan.Duration()),
		IsActive:  true,
	}

	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			return err
		}
		if err := s.gw.Conn(ctx).Create(sub).Error; err != nil {
			return db.Translate("create subscription", err)
		}
		if err := s.writeLog(ctx, nil, sub, reason); err != nil {
			return err
		}
		return s.emit(ctx, Event{Kind: EventActivated, UserID: userID, SubscriptionID: sub.ID})
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription activated",
		"user_id", userID, "subscription_id", sub.ID, "plan_id", plan.ID, "end_date", sub.EndDate, "reason", reason)
	return sub, nil
}

// Cancel deactivates the subscription and recounts the owner's VIP
// state. It reports false, without error, when the subscription does not
// exist or is already inactive.
func (s *Service) Cancel(ctx context.Context, subscriptionID string, reason types.SubscriptionChangeReason) (bool, error) {
	return s.cancel(ctx, subscriptionID, reason, nil)
}

func (s *Service) cancel(ctx context.Context, subscriptionID string, reason types.SubscriptionChangeReason, hook Hook) (bool, error) {
	cancelled := false
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		var before models.Subscription
		err := s.gw.Conn(ctx).Where("id = ?", subscriptionID).Take(&before).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return db.Translate("get subscription", err)
		}
		res := s.gw.Conn(ctx).Model(&models.Subscription{}).
			Where("id = ? AND is_active = ?", subscriptionID, true).
			Updates(map[string]any{"is_active": false, "auto_renew": false})
		if res.Error != nil {
			return db.Translate("cancel subscription", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		cancelled = true

		after := before
		after.IsActive = false
		after.AutoRenew = false
		if err := s.writeLog(ctx, &before, &after, reason); err != nil {
			return err
		}
		if err := s.emit(ctx, Event{Kind: EventDeactivated, UserID: before.UserID, SubscriptionID: before.ID}); err != nil {
			return err
		}
		if hook != nil {
			return hook(ctx, &after)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if cancelled {
		logctx.FromCtx(ctx, s.log).Infow("subscription deactivated", "subscription_id", subscriptionID, "reason", reason)
	}
	return cancelled, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.gw.Conn(ctx).Where("id = ?", id).Take(&sub).Error; err != nil {
		return nil, db.Translate("get subscription", err)
	}
	return &sub, nil
}

// ListByUser returns every subscription of the user, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := s.gw.Conn(ctx).Where("user_id = ?", userID).Order("start_date desc").Find(&subs).Error; err != nil {
		return nil, db.Translate("list subscriptions", err)
	}
	return subs, nil
}

// GetExpiringWithin returns active subscriptions whose end date falls in
// [now, now+days], with their users loaded. It never deactivates anything.
func (s *Service) GetExpiringWithin(ctx context.Context, days int) ([]*models.Subscription, error) {
	if days < 0 {
		return nil, apperr.InvalidArgument("days must not be negative, got %d", days)
	}
	now := s.now()
	var subs []*models.Subscription
	err := s.gw.Conn(ctx).Preload("User").
		Where("is_active = ? AND end_date >= ? AND end_date <= ?", true, now, now.Add(time.Duration(days)*24*time.Hour)).
		Order("end_date").
		Find(&subs).Error
	if err != nil {
		return nil, db.Translate("get expiring subscriptions", err)
	}
	return subs, nil
}

// ExpireDue deactivates up to limit active subscriptions whose end date
// has passed, running hook for each in the same transaction. Each
// subscription is cancelled in its own transaction so one failure does
// not undo the rest of the sweep.
func (s *Service) ExpireDue(ctx context.Context, limit int, hook Hook) (int, error) {
	var due []*models.Subscription
	q := s.gw.Conn(ctx).Where("is_active = ? AND end_date <= ?", true, s.now()).Order("end_date")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&due).Error; err != nil {
		return 0, db.Translate("find due subscriptions", err)
	}

	expired := 0
	var firstErr error
	for _, sub := range due {
		ok, err := s.cancel(ctx, sub.ID, types.SubscriptionChangeReasonExpire, hook)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("expire subscription failed", "subscription_id", sub.ID, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, firstErr
}

// RemindExpiring runs hook once per subscription ending within days.
// The reminder is claimed with a conditional update on
// expiry_reminded_at, so overlapping sweeps never remind twice.
func (s *Service) RemindExpiring(ctx context.Context, days int, hook Hook) (int, error) {
	subs, err := s.GetExpiringWithin(ctx, days)
	if err != nil {
		return 0, err
	}
	reminded := 0
	for _, sub := range subs {
		if sub.ExpiryRemindedAt != nil {
			continue
		}
		claimed := false
		err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
			res := s.gw.Conn(ctx).Model(&models.Subscription{}).
				Where("id = ? AND expiry_reminded_at IS NULL", sub.ID).
				Update("expiry_reminded_at", s.now())
			if res.Error != nil {
				return db.Translate("claim expiry reminder", res.Error)
			}
			if res.RowsAffected == 0 {
				return nil
			}
			claimed = true
			return hook(ctx, sub)
		})
		if err != nil {
			return reminded, fmt.Errorf("remind subscription %s: %w", sub.ID, err)
		}
		if claimed {
			reminded++
		}
	}
	return reminded, nil
}

func (s *Service) writeLog(ctx context.Context, before, after *models.Subscription, reason types.SubscriptionChangeReason) error {
	entry := &models.SubscriptionLog{
		ID:             tool.GenerateUUIDV7(),
		UserID:         after.UserID,
		SubscriptionID: after.ID,
		Reason:         reason,
		Before:         datatypes.NewJSONType(before),
		After:          datatypes.NewJSONType(after),
		Extra:          datatypes.JSONMap{"plan_id": after.PlanID},
	}
	if err := s.gw.Conn(ctx).Create(entry).Error; err != nil {
		return db.Translate("write subscription log", err)
	}
	return nil
}
