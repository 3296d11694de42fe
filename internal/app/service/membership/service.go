// Package membership composes the user, subscription, activation code,
// payment and notification services into the operations the bot and the
// admin surface call. Every operation runs in one transaction.
package membership

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/service/activation"
	"github.com/alanwang5210/telegram-bot/internal/app/service/notification"
	"github.com/alanwang5210/telegram-bot/internal/app/service/payment"
	"github.com/alanwang5210/telegram-bot/internal/app/service/subscription"
	"github.com/alanwang5210/telegram-bot/internal/app/service/user"
	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/config"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

type Service struct {
	gw            *db.Gateway
	cfg           *config.Config
	users         *user.Service
	subs          *subscription.Service
	codes         *activation.Service
	payments      *payment.Service
	notifications *notification.Service
	log           *zap.SugaredLogger
	now           func() time.Time
}

func NewService(gw *db.Gateway, cfg *config.Config, users *user.Service, subs *subscription.Service,
	codes *activation.Service, payments *payment.Service, notifications *notification.Service,
	log *zap.SugaredLogger) *Service {
	return &Service{
		gw:            gw,
		cfg:           cfg,
		users:         users,
		subs:          subs,
		codes:         codes,
		payments:      payments,
		notifications: notifications,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RegisterUser creates the user on first contact and refreshes the
// profile afterwards.
func (s *Service) RegisterUser(ctx context.Context, externalID int64, p user.Profile) (*models.User, error) {
	return s.users.UpsertByExternalID(ctx, externalID, p)
}

func (s *Service) GetVipStatus(ctx context.Context, externalID int64) (*types.VipStatus, error) {
	u, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	// the flag may lag behind an expiry the sweep has not processed yet
	isVip := u.IsVip && u.VipExpiry != nil && u.VipExpiry.After(s.now())
	st := &types.VipStatus{IsVip: isVip}
	if isVip {
		st.VipExpiry = u.VipExpiry
	}
	return st, nil
}

// GetSubscriptionInfo describes the user's current subscription.
func (s *Service) GetSubscriptionInfo(ctx context.Context, externalID int64) (*types.UserSubscriptionInfo, error) {
	u, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.GetActive(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("active subscription")
	}
	return s.subscriptionInfo(sub), nil
}

func (s *Service) subscriptionInfo(sub *models.Subscription) *types.UserSubscriptionInfo {
	info := &types.UserSubscriptionInfo{
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		PlanName:       sub.PlanID,
		StartDate:      sub.StartDate,
		EndDate:        sub.EndDate,
		IsActive:       sub.IsActive,
		AutoRenew:      sub.AutoRenew,
	}
	if plan := s.cfg.GetPlan(sub.PlanID); plan.Valid() {
		info.PlanName = plan.Name
	}
	return info
}

// CancelSubscription deactivates the user's current subscription.
func (s *Service) CancelSubscription(ctx context.Context, externalID int64) (*types.UserSubscriptionInfo, error) {
	var info *types.UserSubscriptionInfo
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByExternalID(ctx, externalID)
		if err != nil {
			return err
		}
		sub, err := s.subs.GetActive(ctx, u.ID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperr.NotFound("active subscription")
		}
		ok, err := s.subs.Cancel(ctx, sub.ID, types.SubscriptionChangeReasonCancel)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("active subscription")
		}
		sub.IsActive = false
		info = s.subscriptionInfo(sub)
		return s.notify(ctx, u, types.NotificationTypeSystem, "Subscription cancelled",
			"Your VIP subscription has been cancelled.")
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription cancelled by user", "external_id", externalID, "subscription_id", info.SubscriptionID)
	return info, nil
}

// notify enqueues a chat notification, plus email when the user has an
// address.
func (s *Service) notify(ctx context.Context, u *models.User, typ types.NotificationType, title, content string) error {
	_, err := s.notifications.Create(ctx, notification.CreateRequest{
		UserID:   u.ID,
		Type:     typ,
		Title:    title,
		Content:  content,
		Email:    u.HasEmail(),
		Telegram: true,
	})
	return err
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
