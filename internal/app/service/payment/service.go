package payment

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/metrics"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// scanFields are the columns admin filters may reference.
var scanFields = []string{"id", "user_id", "subscription_id", "type", "amount", "currency", "status", "transaction_ref", "created_at", "updated_at"}

// Service is the payment ledger.
type Service struct {
	gw      *db.Gateway
	log     *zap.SugaredLogger
	metrics *metrics.Business
}

func NewService(gw *db.Gateway, log *zap.SugaredLogger, m *metrics.Business) *Service {
	return &Service{gw: gw, log: log, metrics: m}
}

type OpenRequest struct {
	UserID         string            `json:"user_id"`
	Type           types.PaymentType `json:"type"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	SubscriptionID *string           `json:"subscription_id"`
	Metadata       map[string]any    `json:"metadata"`
}

// Open records a pending payment attempt.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*models.Payment, error) {
	if !req.Type.Valid() {
		return nil, apperr.InvalidArgument("unknown payment type %q", req.Type)
	}
	if req.Amount < 0 || req.Currency == "" {
		return nil, apperr.InvalidArgument("amount must be non-negative with a currency")
	}
	p := &models.Payment{
		ID:             tool.GenerateUUIDV7(),
		UserID:         req.UserID,
		SubscriptionID: req.SubscriptionID,
		Type:           req.Type,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         types.PaymentStatusPending,
		Metadata:       datatypes.JSONMap(MergePatch(nil, req.Metadata)),
	}
	if err := s.gw.Conn(ctx).Create(p).Error; err != nil {
		return nil, db.Translate("open payment", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("payment opened", "payment_id", p.ID, "user_id", p.UserID, "type", p.Type, "amount", p.Amount, "currency", p.Currency)
	return p, nil
}

type AdvanceRequest struct {
	Status         types.PaymentStatus `json:"status"`
	TransactionRef *string             `json:"transaction_ref"`
	// Metadata is merged into the stored metadata, see MergePatch.
	Metadata map[string]any `json:"metadata"`
	// SubscriptionID links the payment to the subscription it paid for.
	SubscriptionID *string `json:"subscription_id"`
}

// Advance moves a payment forward. Backward moves fail with
// apperr.ErrInvalidTransition and leave the record untouched; repeating
// the current status only merges metadata.
func (s *Service) Advance(ctx context.Context, paymentID string, req AdvanceRequest) (*models.Payment, error) {
	if !req.Status.Valid() {
		return nil, apperr.InvalidTransition("unknown payment status %q", req.Status)
	}
	var after models.Payment
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		var before models.Payment
		err := s.gw.Conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", paymentID).Take(&before).Error
		if err != nil {
			return db.Translate("get payment", err)
		}
		if !before.Status.CanAdvanceTo(req.Status) {
			return apperr.InvalidTransition("payment %s: %s -> %s", paymentID, before.Status, req.Status)
		}

		updates := map[string]any{
			"status":   req.Status,
			"metadata": datatypes.JSONMap(MergePatch(before.Metadata, req.Metadata)),
		}
		if req.TransactionRef != nil {
			updates["transaction_ref"] = *req.TransactionRef
		}
		if req.SubscriptionID != nil {
			updates["subscription_id"] = *req.SubscriptionID
		}
		res := s.gw.Conn(ctx).Model(&models.Payment{}).
			Where("id = ? AND status IN ?", paymentID, req.Status.Predecessors()).
			Updates(updates)
		if res.Error != nil {
			return db.Translate("advance payment", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidTransition("payment %s changed concurrently", paymentID)
		}

		if err := s.gw.Conn(ctx).Where("id = ?", paymentID).Take(&after).Error; err != nil {
			return db.Translate("reload payment", err)
		}
		entry := &models.PaymentLog{
			ID:         tool.GenerateUUIDV7(),
			PaymentID:  paymentID,
			UserID:     before.UserID,
			FromStatus: before.Status,
			ToStatus:   req.Status,
			Before:     datatypes.NewJSONType(&before),
			After:      datatypes.NewJSONType(&after),
		}
		if err := s.gw.Conn(ctx).Create(entry).Error; err != nil {
			return db.Translate("write payment log", err)
		}
		return nil
	})
	if err != nil {
		result := "error"
		if errors.Is(err, apperr.ErrInvalidTransition) {
			result = "rejected"
		}
		s.metrics.PaymentAdvance(string(req.Status), result)
		return nil, err
	}
	s.metrics.PaymentAdvance(string(req.Status), "ok")
	logctx.FromCtx(ctx, s.log).Infow("payment advanced", "payment_id", paymentID, "status", req.Status)
	return &after, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := s.gw.Conn(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		return nil, db.Translate("get payment", err)
	}
	return &p, nil
}

// Lock reads a payment with a row lock held until the surrounding
// transaction ends.
func (s *Service) Lock(ctx context.Context, id string) (*models.Payment, error) {
	if !db.InTransaction(ctx) {
		return nil, errors.New("payment lock outside transaction")
	}
	var p models.Payment
	if err := s.gw.Conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&p).Error; err != nil {
		return nil, db.Translate("lock payment", err)
	}
	return &p, nil
}

// ListByUser returns the user's payments, newest first. With
// subscriptionOnly set, only payments that bought a subscription are
// returned.
func (s *Service) ListByUser(ctx context.Context, userID string, subscriptionOnly bool) ([]*models.Payment, error) {
	q := s.gw.Conn(ctx).Where("user_id = ?", userID)
	if subscriptionOnly {
		q = q.Where("subscription_id IS NOT NULL")
	}
	var out []*models.Payment
	if err := q.Order("created_at desc").Order("id desc").Find(&out).Error; err != nil {
		return nil, db.Translate("list payments", err)
	}
	return out, nil
}

type ScanRequest struct {
	Filters types.FiltersAnd `json:"filters"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// Scan lists payments matching admin filters.
func (s *Service) Scan(ctx context.Context, req ScanRequest) ([]*models.Payment, int64, error) {
	for _, f := range req.Filters {
		if err := f.Validate(scanFields); err != nil {
			return nil, 0, apperr.InvalidArgument("%v", err)
		}
	}
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}
	q := s.gw.Conn(ctx).Model(&models.Payment{}).Where(req.Filters).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, db.Translate("count payments", err)
	}
	var out []*models.Payment
	if err := q.Order("created_at desc").Limit(req.Limit).Offset(req.Offset).Find(&out).Error; err != nil {
		return nil, 0, db.Translate("scan payments", err)
	}
	return out, total, nil
}

// SumCompleted totals completed payments created in [from, to) per currency.
func (s *Service) SumCompleted(ctx context.Context, from, to time.Time) (map[string]int64, int64, error) {
	var rows []struct {
		Currency string
		Total    int64
		Cnt      int64
	}
	err := s.gw.Conn(ctx).Model(&models.Payment{}).
		Select("currency, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS cnt").
		Where("status = ? AND updated_at >= ? AND updated_at < ?", types.PaymentStatusCompleted, from, to).
		Group("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, db.Translate("sum payments", err)
	}
	out := make(map[string]int64, len(rows))
	var count int64
	for _, r := range rows {
		out[r.Currency] = r.Total
		count += r.Cnt
	}
	return out, count, nil
}
