package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/internal/platform/transport"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
)

const (
	defaultPushLimit = 200
	pushTimeout      = 10 * time.Second
)

// PushResult counts one push pass.
type PushResult struct {
	Pushed int `json:"pushed"`
	Failed int `json:"failed"`
}

// PushPending pushes deliveries that have not reached the chat transport
// yet. Never attempted deliveries go first, then earlier failures before
// later ones, so recipients that keep failing cannot fill every batch.
func (s *Service) PushPending(ctx context.Context, limit int) (PushResult, error) {
	return s.push(ctx, "", limit)
}

// push claims each delivery by stamping pushed_at before sending. A failed
// send clears the stamp and records push_failed_at instead.
func (s *Service) push(ctx context.Context, messageID string, limit int) (PushResult, error) {
	var res PushResult
	if !transport.Enabled(s.chat) {
		return res, nil
	}
	if limit <= 0 {
		limit = defaultPushLimit
	}

	q := s.gw.Conn(ctx).Preload("Message").Where("pushed_at IS NULL")
	if messageID != "" {
		q = q.Where("message_id = ?", messageID)
	}
	var pending []*models.MessageDelivery
	if err := q.Order("push_failed_at IS NOT NULL").Order("push_failed_at").
		Order("created_at").Order("id").
		Limit(limit).Find(&pending).Error; err != nil {
		return res, db.Translate("select unpushed deliveries", err)
	}
	if len(pending) == 0 {
		return res, nil
	}

	users, err := s.users.FindByIDs(ctx, lo.Map(pending, func(d *models.MessageDelivery, _ int) string { return d.UserID }))
	if err != nil {
		return res, err
	}

	log := logctx.FromCtx(ctx, s.log)
	for _, d := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		u, ok := users[d.UserID]
		if !ok || d.Message == nil {
			if err := s.markPushFailed(ctx, d.ID, nil); err != nil {
				return res, err
			}
			continue
		}
		stamp := s.now().Truncate(time.Microsecond)
		claim := s.gw.Conn(ctx).Model(&models.MessageDelivery{}).
			Where("id = ? AND pushed_at IS NULL", d.ID).
			Update("pushed_at", stamp)
		if claim.Error != nil {
			return res, db.Translate("claim delivery push", claim.Error)
		}
		if claim.RowsAffected == 0 {
			continue
		}

		sctx, cancel := context.WithTimeout(ctx, pushTimeout)
		err := s.chat.SendMessage(sctx, u.ExternalIdentity, messageText(d.Message))
		cancel()
		if err == nil {
			res.Pushed++
			continue
		}

		res.Failed++
		log.Warnw("message push failed", "delivery_id", d.ID, "user_id", d.UserID,
			"err", &apperr.TransportError{Channel: "telegram", Recipient: fmt.Sprint(u.ExternalIdentity), Err: err})
		if err := s.markPushFailed(ctx, d.ID, &stamp); err != nil {
			return res, err
		}
	}
	s.metrics.Dispatched("telegram_broadcast", "delivered", res.Pushed)
	s.metrics.Dispatched("telegram_broadcast", "failed", res.Failed)
	return res, nil
}

// markPushFailed releases a claimed delivery (stamp set) or an unclaimed
// one (stamp nil) and moves it behind the other pending deliveries.
func (s *Service) markPushFailed(ctx context.Context, id string, stamp *time.Time) error {
	q := s.gw.Conn(ctx).Model(&models.MessageDelivery{})
	if stamp != nil {
		q = q.Where("id = ? AND pushed_at = ?", id, *stamp)
	} else {
		q = q.Where("id = ? AND pushed_at IS NULL", id)
	}
	if err := q.Updates(map[string]any{"pushed_at": nil, "push_failed_at": s.now()}).Error; err != nil {
		return db.Translate("release delivery push", err)
	}
	return nil
}

func messageText(m *models.Message) string {
	if m.Title == "" {
		return m.Content
	}
	return m.Title + "\n\n" + m.Content
}
