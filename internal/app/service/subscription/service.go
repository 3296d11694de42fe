package subscription

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/service/user"
	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/pkg/config"
	"github.com/alanwang5210/telegram-bot/pkg/metrics"
)

// Service is the subscription lifecycle manager. It owns the VIP
// columns of users through recountVip.
type Service struct {
	gw      *db.Gateway
	cfg     *config.Config
	users   *user.Service
	log     *zap.SugaredLogger
	metrics *metrics.Business
	now     func() time.Time
}

func NewService(gw *db.Gateway, cfg *config.Config, users *user.Service, log *zap.SugaredLogger, m *metrics.Business) *Service {
	return &Service{
		gw:      gw,
		cfg:     cfg,
		users:   users,
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Hook runs inside the transaction that changed sub. Returning an
// error rolls the change back.
type Hook func(ctx context.Context, sub *models.Subscription) error
