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

// StartPurchase opens a pending payment for planID. The payment carries
// the plan in its metadata; the gateway callback that completes it
// activates the plan.
func (s *Service) StartPurchase(ctx context.Context, externalID int64, planID string, typ types.PaymentType) (*models.Payment, error) {
	plan := s.cfg.GetPlan(planID)
	if !plan.Valid() {
		return nil, apperr.InvalidTransition("unknown plan %q", planID)
	}
	u, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.payments.Open(ctx, payment.OpenRequest{
		UserID:   u.ID,
		Type:     typ,
		Amount:   plan.Price,
		Currency: plan.Currency,
		Metadata: map[string]any{"plan_id": plan.ID},
	})
}

// CompletePurchase marks the payment completed and activates the plan it
// paid for. A repeated completion only merges metadata.
func (s *Service) CompletePurchase(ctx context.Context, paymentID string, req payment.AdvanceRequest) (*models.Payment, error) {
	req.Status = types.PaymentStatusCompleted
	var out *models.Payment
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.Lock(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status == types.PaymentStatusCompleted {
			out, err = s.payments.Advance(ctx, paymentID, req)
			return err
		}
		if !p.Status.CanAdvanceTo(req.Status) {
			return apperr.InvalidTransition("payment %s: %s -> %s", paymentID, p.Status, req.Status)
		}
		plan := s.cfg.GetPlan(p.MetadataString("plan_id"))
		if !plan.Valid() {
			return apperr.InvalidTransition("payment %s has no known plan", paymentID)
		}
		u, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		sub, err := s.subs.Activate(ctx, u.ID, plan.ID, s.now(), types.SubscriptionChangeReasonPurchase)
		if err != nil {
			return err
		}
		req.SubscriptionID = &sub.ID
		if out, err = s.payments.Advance(ctx, paymentID, req); err != nil {
			return err
		}
		return s.notify(ctx, u, types.NotificationTypePaymentSuccess, "Payment received",
			fmt.Sprintf("%s is active until %s.", plan.Name, formatDate(sub.EndDate)))
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("purchase completed", "payment_id", paymentID, "subscription_id", out.SubscriptionID)
	return out, nil
}

// FailPurchase marks a pending payment failed and tells the user.
func (s *Service) FailPurchase(ctx context.Context, paymentID string, req payment.AdvanceRequest) (*models.Payment, error) {
	req.Status = types.PaymentStatusFailed
	var out *models.Payment
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.Lock(ctx, paymentID)
		if err != nil {
			return err
		}
		repeated := p.Status == types.PaymentStatusFailed
		if out, err = s.payments.Advance(ctx, paymentID, req); err != nil {
			return err
		}
		if repeated {
			return nil
		}
		u, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		return s.notify(ctx, u, types.NotificationTypePaymentFailed, "Payment failed",
			"Your payment could not be completed. No VIP time was added.")
	})
	return out, err
}

// RefundPurchase marks the payment refunded and cancels the subscription
// it paid for.
func (s *Service) RefundPurchase(ctx context.Context, paymentID string, req payment.AdvanceRequest) (*models.Payment, error) {
	req.Status = types.PaymentStatusRefunded
	var out *models.Payment
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.Lock(ctx, paymentID)
		if err != nil {
			return err
		}
		if out, err = s.payments.Advance(ctx, paymentID, req); err != nil {
			return err
		}
		if p.Status != types.PaymentStatusCompleted || p.SubscriptionID == nil {
			return nil
		}
		_, err = s.subs.Cancel(ctx, *p.SubscriptionID, types.SubscriptionChangeReasonRefund)
		return err
	})
	return out, err
}
