package gatewaylog

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
)

var Module = fx.Options(
	fx.Provide(New),
)

// Service keeps the raw payload and outcome of payment gateway callbacks.
// It writes outside any caller transaction so a rolled back callback is
// still on record.
type Service struct {
	gw  *db.Gateway
	log *zap.SugaredLogger
}

func New(gw *db.Gateway, log *zap.SugaredLogger) *Service { return &Service{gw: gw, log: log} }

// Received records an incoming callback. Store failures are logged, not
// returned; a nil entry is ignored.
func (s *Service) Received(ctx context.Context, entry *models.GatewayCallbackLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	entry.Status = models.GatewayCallbackLogStatusReceived
	if err := s.gw.Pool(ctx).Create(entry).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to save gateway callback log", "gateway", entry.Gateway, "err", err)
	}
}

// Finish stores the outcome of a callback recorded with Received.
func (s *Service) Finish(ctx context.Context, entry *models.GatewayCallbackLog, handleErr error, result map[string]any) {
	if entry == nil || entry.ID == "" {
		return
	}
	status := models.GatewayCallbackLogStatusHandled
	if handleErr != nil {
		status = models.GatewayCallbackLogStatusHandleFailed
		if result == nil {
			result = map[string]any{}
		}
		result["error"] = handleErr.Error()
	}
	updates := map[string]any{"status": status, "result": datatypes.JSONMap(result)}
	if entry.UserID != nil {
		updates["user_id"] = *entry.UserID
	}
	err := s.gw.Pool(ctx).Model(&models.GatewayCallbackLog{}).Where("id = ?", entry.ID).Updates(updates).Error
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to update gateway callback log", "id", entry.ID, "err", err)
		return
	}
	entry.Status = status
}

// List returns the newest callbacks, optionally for one payment.
func (s *Service) List(ctx context.Context, paymentID string, limit int) ([]*models.GatewayCallbackLog, error) {
	q := s.gw.Pool(ctx)
	if paymentID != "" {
		q = q.Where("payment_id = ?", paymentID)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*models.GatewayCallbackLog
	if err := q.Order("created_at desc").Order("id desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, db.Translate("list gateway callbacks", err)
	}
	return out, nil
}
