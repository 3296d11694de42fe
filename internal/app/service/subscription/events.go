package subscription

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
)

type EventKind string

const (
	EventActivated   EventKind = "activated"
	EventDeactivated EventKind = "deactivated"
)

// Event is emitted inside the transaction of every subscription change.
type Event struct {
	Kind           EventKind
	UserID         string
	SubscriptionID string
}

// emit is the single place reacting to subscription changes. Both kinds
// end in a VIP recount so the user row always mirrors its subscriptions.
func (s *Service) emit(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventActivated, EventDeactivated:
		if err := s.recountVip(ctx, ev.UserID); err != nil {
			return fmt.Errorf("recount vip after %s %s: %w", ev.Kind, ev.SubscriptionID, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown subscription event %q", ev.Kind)
	}
}

// recountVip derives is_vip and vip_expiry from the user's active,
// unexpired subscriptions. It is the only caller of SetVipStatus.
func (s *Service) recountVip(ctx context.Context, userID string) error {
	latest, err := s.GetActive(ctx, userID)
	if err != nil {
		return err
	}
	if latest == nil {
		s.metrics.VipRecount(false)
		return s.users.SetVipStatus(ctx, userID, false, nil)
	}
	expiry := latest.EndDate
	s.metrics.VipRecount(true)
	logctx.FromCtx(ctx, s.log).Debugw("vip recount", "user_id", userID, "subscription_id", latest.ID, "vip_expiry", expiry)
	return s.users.SetVipStatus(ctx, userID, true, &expiry)
}

// GetActive returns the active, unexpired subscription with the latest
// end date, or nil when the user has none.
func (s *Service) GetActive(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.gw.Conn(ctx).
		Where("user_id = ? AND is_active = ? AND end_date > ?", userID, true, s.now()).
		Order("end_date desc").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Translate("get active subscription", err)
	}
	return &sub, nil
}
