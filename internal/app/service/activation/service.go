package activation

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/config"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/metrics"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
)

const (
	defaultCodeLength = 16
	// maxCollisions bounds regeneration when a fresh code already exists.
	maxCollisions = 5
)

// Service is the activation code vault.
type Service struct {
	gw      *db.Gateway
	cfg     *config.Config
	log     *zap.SugaredLogger
	metrics *metrics.Business
	now     func() time.Time
}

func NewService(gw *db.Gateway, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Business) *Service {
	return &Service{
		gw:      gw,
		cfg:     cfg,
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) codeLength() int {
	if s.cfg != nil && s.cfg.Activation.CodeLength > 0 {
		return s.cfg.Activation.CodeLength
	}
	return defaultCodeLength
}

// IssueBatch stores count new unused codes for planID and returns them.
func (s *Service) IssueBatch(ctx context.Context, planID string, count int) ([]string, error) {
	if s.cfg.GetPlan(planID) == nil {
		return nil, apperr.InvalidTransition("unknown plan %q", planID)
	}
	if count <= 0 {
		return nil, apperr.InvalidArgument("count must be positive, got %d", count)
	}
	if limit := s.cfg.Activation.MaxBatch; limit > 0 && count > limit {
		return nil, apperr.InvalidArgument("count %d exceeds batch limit %d", count, limit)
	}

	codes := make([]string, 0, count)
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		for len(codes) < count {
			code, err := s.insertUnique(ctx, planID)
			if err != nil {
				return err
			}
			codes = append(codes, code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("activation codes issued", "plan_id", planID, "count", len(codes))
	return codes, nil
}

func (s *Service) insertUnique(ctx context.Context, planID string) (string, error) {
	for i := 0; i < maxCollisions; i++ {
		code, err := tool.RandomAlphanumeric(s.codeLength())
		if err != nil {
			return "", err
		}
		res := s.gw.Conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ActivationCode{
			ID:     tool.GenerateUUIDV7(),
			Code:   code,
			PlanID: planID,
		})
		if res.Error != nil {
			return "", db.Translate("insert activation code", res.Error)
		}
		if res.RowsAffected == 1 {
			return code, nil
		}
	}
	return "", db.Translate("insert activation code", errCodeSpaceExhausted)
}

// Claim marks code used by userID. It is one conditional update, so of
// any number of concurrent claims for the same code exactly one wins.
// Unknown and already used codes both yield apperr.ErrInvalidCode.
func (s *Service) Claim(ctx context.Context, code, userID string) (*models.ActivationCode, error) {
	if code == "" {
		s.metrics.CodeClaim("invalid")
		return nil, apperr.ErrInvalidCode
	}
	now := s.now()
	res := s.gw.Conn(ctx).Model(&models.ActivationCode{}).
		Where("code = ? AND is_used = ?", code, false).
		Updates(map[string]any{"is_used": true, "used_by": userID, "used_at": now})
	if res.Error != nil {
		s.metrics.CodeClaim("error")
		return nil, db.Translate("claim activation code", res.Error)
	}
	if res.RowsAffected == 0 {
		s.metrics.CodeClaim("invalid")
		logctx.FromCtx(ctx, s.log).Infow("activation code rejected", "user_id", userID)
		return nil, apperr.ErrInvalidCode
	}

	var ac models.ActivationCode
	if err := s.gw.Conn(ctx).Where("code = ?", code).First(&ac).Error; err != nil {
		return nil, db.Translate("load activation code", err)
	}
	s.metrics.CodeClaim("ok")
	logctx.FromCtx(ctx, s.log).Infow("activation code claimed", "code_id", ac.ID, "plan_id", ac.PlanID, "user_id", userID)
	return &ac, nil
}

// ListUnused returns up to limit unused codes, optionally for one plan.
func (s *Service) ListUnused(ctx context.Context, planID string, limit int) ([]*models.ActivationCode, error) {
	q := s.gw.Conn(ctx).Where("is_used = ?", false)
	if planID != "" {
		q = q.Where("plan_id = ?", planID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*models.ActivationCode
	if err := q.Order("created_at").Find(&out).Error; err != nil {
		return nil, db.Translate("list activation codes", err)
	}
	return out, nil
}
