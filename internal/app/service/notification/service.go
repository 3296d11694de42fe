package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/service/user"
	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/internal/platform/transport"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/config"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/metrics"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

const (
	defaultBatchSize   = 100
	defaultSendTimeout = 10 * time.Second
	defaultLease       = 2 * time.Minute
)

// Service enqueues notifications and drains them through the email and
// chat transports.
type Service struct {
	gw      *db.Gateway
	users   *user.Service
	email   transport.EmailSender
	chat    transport.ChatSender
	log     *zap.SugaredLogger
	metrics *metrics.Business
	now     func() time.Time

	batchSize   int
	sendTimeout time.Duration
	lease       time.Duration
}

func NewService(gw *db.Gateway, users *user.Service, email transport.EmailSender, chat transport.ChatSender,
	cfg *config.Config, log *zap.SugaredLogger, m *metrics.Business) *Service {
	s := &Service{
		gw:          gw,
		users:       users,
		email:       email,
		chat:        chat,
		log:         log,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
		batchSize:   defaultBatchSize,
		sendTimeout: defaultSendTimeout,
		lease:       defaultLease,
	}
	if cfg != nil {
		if cfg.Notification.BatchSize > 0 {
			s.batchSize = cfg.Notification.BatchSize
		}
		if cfg.Notification.SendTimeout > 0 {
			s.sendTimeout = cfg.Notification.SendTimeout
		}
		if cfg.Notification.Lease > 0 {
			s.lease = cfg.Notification.Lease
		}
	}
	return s
}

type CreateRequest struct {
	UserID   string                 `json:"user_id"`
	Type     types.NotificationType `json:"type"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Email    bool                   `json:"email"`
	Telegram bool                   `json:"telegram"`
}

// Create enqueues an unsent notification. It joins the caller's
// transaction, so a notification only exists if the change it reports
// committed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Notification, error) {
	if !req.Type.Valid() {
		return nil, apperr.InvalidArgument("unknown notification type %q", req.Type)
	}
	if !req.Email && !req.Telegram {
		return nil, apperr.InvalidArgument("notification needs at least one channel")
	}
	n := &models.Notification{
		ID:         tool.GenerateUUIDV7(),
		UserID:     req.UserID,
		Type:       req.Type,
		Title:      req.Title,
		Content:    req.Content,
		IsEmail:    req.Email,
		IsTelegram: req.Telegram,
	}
	if err := s.gw.Conn(ctx).Create(n).Error; err != nil {
		return nil, db.Translate("create notification", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("notification created", "notification_id", n.ID, "user_id", n.UserID, "type", n.Type)
	return n, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := s.gw.Conn(ctx).Where("id = ?", id).Take(&n).Error; err != nil {
		return nil, db.Translate("get notification", err)
	}
	return &n, nil
}

// ListByUser returns the user's notifications, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, pendingOnly bool, limit int) ([]*models.Notification, error) {
	q := s.gw.Conn(ctx).Where("user_id = ?", userID)
	if pendingOnly {
		q = q.Where("is_sent = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*models.Notification
	if err := q.Order("created_at desc").Order("id desc").Find(&out).Error; err != nil {
		return nil, db.Translate("list notifications", err)
	}
	return out, nil
}
