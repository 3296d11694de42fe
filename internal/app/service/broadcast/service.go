package broadcast

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/alanwang5210/telegram-bot/internal/app/service/user"
	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/internal/platform/transport"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/metrics"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
)

const (
	adSeparator = "\n\n---\n"
	// insertBatch keeps one delivery insert well under the bind
	// parameter limit of sqlite and postgres.
	insertBatch = 500
)

type Service struct {
	gw      *db.Gateway
	users   *user.Service
	chat    transport.ChatSender
	log     *zap.SugaredLogger
	metrics *metrics.Business
	now     func() time.Time
}

func NewService(gw *db.Gateway, users *user.Service, chat transport.ChatSender, log *zap.SugaredLogger, m *metrics.Business) *Service {
	return &Service{
		gw:      gw,
		users:   users,
		chat:    chat,
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type CreateRequest struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Ad       string  `json:"ad"`
	VipOnly  bool    `json:"vip_only"`
	AuthorID *string `json:"author_id"`
}

// Create stores a message. A non-empty Ad is appended below a separator.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Message, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.InvalidArgument("message content is empty")
	}
	content := req.Content
	if ad := strings.TrimSpace(req.Ad); ad != "" {
		content += adSeparator + ad
	}
	m := &models.Message{
		ID:       tool.GenerateUUIDV7(),
		Title:    req.Title,
		Content:  content,
		VipOnly:  req.VipOnly,
		AuthorID: req.AuthorID,
	}
	if err := s.gw.Conn(ctx).Create(m).Error; err != nil {
		return nil, db.Translate("create message", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("message created", "message_id", m.ID, "vip_only", m.VipOnly)
	return m, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := s.gw.Conn(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, db.Translate("get message", err)
	}
	return &m, nil
}

// Broadcast fans a message out to recipients and returns the number of
// deliveries actually created. A nil recipient list means every user, or
// every VIP user for a VIP-only message. Repeated recipients and pairs
// that already exist are skipped, as are ids with no user behind them.
//
// New deliveries are pushed to the chat transport once the insert has
// committed. Inside a caller's transaction the push is left to PushPending.
func (s *Service) Broadcast(ctx context.Context, messageID string, recipients []string) (int64, error) {
	var created int64
	err := s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		msg, err := s.Get(ctx, messageID)
		if err != nil {
			return err
		}
		ids, err := s.resolve(ctx, msg, recipients)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		for _, chunk := range lo.Chunk(ids, insertBatch) {
			rows := lo.Map(chunk, func(id string, _ int) *models.MessageDelivery {
				return &models.MessageDelivery{ID: tool.GenerateUUIDV7(), MessageID: msg.ID, UserID: id}
			})
			res := s.gw.Conn(ctx).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
					DoNothing: true,
				}).
				Create(&rows)
			if res.Error != nil {
				return db.Translate("create deliveries", res.Error)
			}
			created += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.DeliveriesCreated(created)
	logctx.FromCtx(ctx, s.log).Infow("message broadcast", "message_id", messageID, "created", created)

	if created > 0 && !db.InTransaction(ctx) {
		if _, err := s.push(ctx, messageID, 0); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("push after broadcast failed", "message_id", messageID, "err", err)
		}
	}
	return created, nil
}

func (s *Service) resolve(ctx context.Context, msg *models.Message, recipients []string) ([]string, error) {
	if recipients == nil {
		return s.users.ListIDs(ctx, msg.VipOnly)
	}
	ids := lo.Uniq(lo.Compact(recipients))
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return lo.Filter(ids, func(id string, _ int) bool {
		_, ok := found[id]
		return ok
	}), nil
}

// ListUserMessages returns a user's deliveries with their message, newest
// first.
func (s *Service) ListUserMessages(ctx context.Context, userID string, includeRead bool, limit, offset int) ([]*models.MessageDelivery, error) {
	q := s.gw.Conn(ctx).Preload("Message").Where("user_id = ?", userID)
	if !includeRead {
		q = q.Where("is_read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*models.MessageDelivery
	if err := q.Order("created_at desc").Order("id desc").Find(&out).Error; err != nil {
		return nil, db.Translate("list user messages", err)
	}
	return out, nil
}

// MarkRead reports whether the delivery changed from unread to read.
func (s *Service) MarkRead(ctx context.Context, messageID, userID string) (bool, error) {
	res := s.gw.Conn(ctx).Model(&models.MessageDelivery{}).
		Where("message_id = ? AND user_id = ? AND is_read = ?", messageID, userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now()})
	if res.Error != nil {
		return false, db.Translate("mark message read", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	var n int64
	if err := s.gw.Conn(ctx).Model(&models.MessageDelivery{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&n).Error; err != nil {
		return false, db.Translate("mark message read", err)
	}
	if n == 0 {
		return false, apperr.NotFound("message delivery")
	}
	return false, nil
}
