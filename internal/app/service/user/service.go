package user

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
)

// Profile holds the mutable fields of a user. A nil Email leaves the
// stored address untouched.
type Profile struct {
	Username  *string `json:"username"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     *string `json:"email"`
}

// Service is the user registry. It never changes is_vip or vip_expiry
// except through SetVipStatus.
type Service struct {
	gw  *db.Gateway
	log *zap.SugaredLogger
}

func NewService(gw *db.Gateway, log *zap.SugaredLogger) *Service {
	return &Service{gw: gw, log: log}
}

// UpsertByExternalID inserts the user if absent, else updates its profile.
func (s *Service) UpsertByExternalID(ctx context.Context, externalID int64, p Profile) (*models.User, error) {
	u := &models.User{
		ID:               tool.GenerateUUIDV7(),
		ExternalIdentity: externalID,
		Username:         p.Username,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		Email:            p.Email,
	}
	cols := []string{"username", "first_name", "last_name", "updated_at"}
	if p.Email != nil {
		cols = append(cols, "email")
	}
	err := s.gw.Conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_identity"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(u).Error
	if err != nil {
		return nil, db.Translate("upsert user", err)
	}
	// the generated id is discarded on conflict
	out, err := s.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Debugw("user upserted", "user_id", out.ID, "external_identity", externalID)
	return out, nil
}

func (s *Service) GetByExternalID(ctx context.Context, externalID int64) (*models.User, error) {
	var u models.User
	if err := s.gw.Conn(ctx).Where("external_identity = ?", externalID).First(&u).Error; err != nil {
		return nil, db.Translate("get user", err)
	}
	return &u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.gw.Conn(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, db.Translate("get user", err)
	}
	return &u, nil
}

// findBatch bounds the IN list of one lookup query.
const findBatch = 500

// FindByIDs returns the users that exist among ids, keyed by id.
func (s *Service) FindByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, chunk := range lo.Chunk(ids, findBatch) {
		var users []*models.User
		if err := s.gw.Conn(ctx).Where("id IN ?", chunk).Find(&users).Error; err != nil {
			return nil, db.Translate("find users", err)
		}
		for _, u := range users {
			out[u.ID] = u
		}
	}
	return out, nil
}

// SetVipStatus is the only writer of the VIP columns. The subscription
// lifecycle calls it after recounting active subscriptions.
func (s *Service) SetVipStatus(ctx context.Context, userID string, isVip bool, expiry *time.Time) error {
	if !isVip {
		expiry = nil
	}
	res := s.gw.Conn(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"is_vip": isVip, "vip_expiry": expiry})
	if res.Error != nil {
		return db.Translate("set vip status", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user")
	}
	logctx.FromCtx(ctx, s.log).Infow("vip status set", "user_id", userID, "is_vip", isVip, "vip_expiry", expiry)
	return nil
}

// ListIDs returns all user ids, or only VIP ones.
func (s *Service) ListIDs(ctx context.Context, vipOnly bool) ([]string, error) {
	q := s.gw.Conn(ctx).Model(&models.User{})
	if vipOnly {
		q = q.Where("is_vip = ?", true)
	}
	var ids []string
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, db.Translate("list users", err)
	}
	return ids, nil
}
