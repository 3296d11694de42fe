package membership

import (
	"context"
	"fmt"

	"github.com/alanwang5210/telegram-bot/internal/app/service/payment"
	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

type RedeemResult struct {
	Subscription *models.Subscription `json:"subscription"`
	Payment      *models.Payment      `json:"payment"`
	PlanName     string               `json:"plan_name"`
}

// RedeemCode claims an activation code for the user, activates its plan
// and records a completed card payment. Nothing is applied unless every
// step succeeds, so a failed redemption leaves the code unused.
func (s *Service) RedeemCode(ctx context.Context, externalID int64, code string) (*RedeemResult, error) {
	var out RedeemResult
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByExternalID(ctx, externalID)
		if err != nil {
			return err
		}
		ac, err := s.codes.Claim(ctx, code, u.ID)
		if err != nil {
			return err
		}
		plan := s.cfg.GetPlan(ac.PlanID)
		if !plan.Valid() {
			return apperr.InvalidTransition("activation code has unknown plan %q", ac.PlanID)
		}
		sub, err := s.subs.Activate(ctx, u.ID, plan.ID, s.now(), types.SubscriptionChangeReasonActivationCode)
		if err != nil {
			return err
		}
		p, err := s.payments.Open(ctx, payment.OpenRequest{
			UserID:         u.ID,
			Type:           types.PaymentTypeCard,
			Amount:         plan.Price,
			Currency:       plan.Currency,
			SubscriptionID: &sub.ID,
			Metadata:       map[string]any{"activation_code_id": ac.ID, "plan_id": plan.ID},
		})
		if err != nil {
			return err
		}
		if p, err = s.payments.Advance(ctx, p.ID, payment.AdvanceRequest{Status: types.PaymentStatusCompleted}); err != nil {
			return err
		}
		out = RedeemResult{Subscription: sub, Payment: p, PlanName: plan.Name}
		return s.notify(ctx, u, types.NotificationTypePaymentSuccess, "VIP activated",
			fmt.Sprintf("%s is active until %s.", plan.Name, formatDate(sub.EndDate)))
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("activation code redeemed", "external_id", externalID,
		"subscription_id", out.Subscription.ID, "payment_id", out.Payment.ID)
	return &out, nil
}

// IssueCodes generates count activation codes for planID.
func (s *Service) IssueCodes(ctx context.Context, planID string, count int) ([]string, error) {
	return s.codes.IssueBatch(ctx, planID, count)
}

type GiftRequest struct {
	ExternalID int64  `json:"external_id"`
	PlanID     string `json:"plan_id"`
	OperatorID string `json:"operator_id"`
}

// Gift grants a plan without a payment. Operators use it for support
// compensation.
func (s *Service) Gift(ctx context.Context, req GiftRequest) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByExternalID(ctx, req.ExternalID)
		if err != nil {
			return err
		}
		plan := s.cfg.GetPlan(req.PlanID)
		if !plan.Valid() {
			return apperr.InvalidTransition("unknown plan %q", req.PlanID)
		}
		if sub, err = s.subs.Activate(ctx, u.ID, plan.ID, s.now(), types.SubscriptionChangeReasonGift); err != nil {
			return err
		}
		return s.notify(ctx, u, types.NotificationTypeSystem, "VIP gift received",
			fmt.Sprintf("You received %s, valid until %s.", plan.Name, formatDate(sub.EndDate)))
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("plan gifted", "external_id", req.ExternalID, "plan_id", req.PlanID,
		"operator_id", req.OperatorID, "subscription_id", sub.ID)
	return sub, nil
}
