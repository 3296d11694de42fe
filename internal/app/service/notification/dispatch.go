package notification

import (
	"context"
	"fmt"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/internal/platform/transport"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// DispatchResult counts one pass over one channel.
type DispatchResult struct {
	Channel types.Channel `json:"channel"`
	// Disabled is set when the channel has no configured transport.
	Disabled  bool `json:"disabled"`
	Selected  int  `json:"selected"`
	Delivered int  `json:"delivered"`
	Failed    int  `json:"failed"`
	// Skipped rows were claimed by a concurrent pass first.
	Skipped int `json:"skipped"`
}

// columns names the per-channel state of a notification row.
type columns struct {
	intent, sent, sentAt, token, until string
}

var channelColumns = map[types.Channel]columns{
	types.ChannelEmail:    {"is_email", "email_sent", "email_sent_at", "email_lease_token", "email_lease_until"},
	types.ChannelTelegram: {"is_telegram", "telegram_sent", "telegram_sent_at", "telegram_lease_token", "telegram_lease_until"},
}

// DispatchPending delivers the unsent notifications of one channel.
//
// Each (notification, channel) is claimed with a lease by a conditional
// update before the transport is called, and marked sent with an update
// keyed by the lease token, so overlapping passes never deliver the same
// row twice. A transport failure drops the lease token and stamps the
// lease column with the attempt time, so the row is retried on the next
// pass but sorts behind rows never attempted and behind older failures.
// Failures never abort the batch. Store failures do.
func (s *Service) DispatchPending(ctx context.Context, channel types.Channel) (DispatchResult, error) {
	res := DispatchResult{Channel: channel}
	cols, ok := channelColumns[channel]
	if !ok {
		return res, apperr.InvalidArgument("unknown channel %q", channel)
	}
	if !transport.Enabled(s.sender(channel)) {
		res.Disabled = true
		return res, nil
	}

	log := logctx.FromCtx(ctx, s.log)
	var pending []*models.Notification
	err := s.gw.Conn(ctx).
		Where(cols.intent+" = ? AND "+cols.sent+" = ?", true, false).
		Where("("+cols.until+" IS NULL OR "+cols.until+" < ?)", s.now()).
		Order(cols.until+" IS NOT NULL").Order(cols.until).
		Order("created_at").Order("id").
		Limit(s.batchSize).
		Find(&pending).Error
	if err != nil {
		return res, db.Translate("select pending notifications", err)
	}
	res.Selected = len(pending)

	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		token := tool.GenerateUUIDV7()
		claimed, err := s.claim(ctx, n.ID, cols, token)
		if err != nil {
			return res, err
		}
		if !claimed {
			res.Skipped++
			continue
		}

		if err := s.deliver(ctx, channel, n); err != nil {
			res.Failed++
			log.Warnw("notification delivery failed", "notification_id", n.ID, "channel", channel, "err", err)
			if rerr := s.releaseFailed(ctx, n.ID, cols, token); rerr != nil {
				return res, rerr
			}
			continue
		}
		res.Delivered++
		if err := s.markSent(ctx, n.ID, cols, token); err != nil {
			return res, err
		}
	}

	s.metrics.Dispatched(string(channel), "delivered", res.Delivered)
	s.metrics.Dispatched(string(channel), "failed", res.Failed)
	if res.Selected > 0 {
		log.Infow("dispatch pass done", "channel", channel, "selected", res.Selected,
			"delivered", res.Delivered, "failed", res.Failed, "skipped", res.Skipped)
	}
	return res, nil
}

// DispatchAll runs one pass per channel. A failing channel does not stop
// the others; the first error is returned.
func (s *Service) DispatchAll(ctx context.Context) ([]DispatchResult, error) {
	out := make([]DispatchResult, 0, len(types.Channels))
	var firstErr error
	for _, ch := range types.Channels {
		r, err := s.DispatchPending(ctx, ch)
		out = append(out, r)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("dispatch %s: %w", ch, err)
		}
	}
	return out, firstErr
}

func (s *Service) sender(channel types.Channel) any {
	switch channel {
	case types.ChannelEmail:
		return s.email
	case types.ChannelTelegram:
		return s.chat
	}
	return nil
}

func (s *Service) claim(ctx context.Context, id string, cols columns, token string) (bool, error) {
	now := s.now()
	r := s.gw.Conn(ctx).Model(&models.Notification{}).
		Where("id = ? AND "+cols.sent+" = ?", id, false).
		Where("("+cols.until+" IS NULL OR "+cols.until+" < ?)", now).
		Updates(map[string]any{cols.token: token, cols.until: now.Add(s.lease)})
	if r.Error != nil {
		return false, db.Translate("claim notification", r.Error)
	}
	return r.RowsAffected == 1, nil
}

// releaseFailed keeps the attempt time in the lease column. It is already
// in the past for the next pass, and it orders retries by last attempt.
func (s *Service) releaseFailed(ctx context.Context, id string, cols columns, token string) error {
	r := s.gw.Conn(ctx).Model(&models.Notification{}).
		Where("id = ? AND "+cols.token+" = ?", id, token).
		Updates(map[string]any{cols.token: nil, cols.until: s.now()})
	return db.Translate("release notification", r.Error)
}

// markSent records the delivery and flips is_sent once every intended
// channel has been delivered.
func (s *Service) markSent(ctx context.Context, id string, cols columns, token string) error {
	return s.gw.RunInTransaction(ctx, func(ctx context.Context) error {
		now := s.now()
		r := s.gw.Conn(ctx).Model(&models.Notification{}).
			Where("id = ? AND "+cols.token+" = ? AND "+cols.sent+" = ?", id, token, false).
			Updates(map[string]any{cols.sent: true, cols.sentAt: now, cols.token: nil, cols.until: nil})
		if r.Error != nil {
			return db.Translate("mark notification sent", r.Error)
		}
		if r.RowsAffected == 0 {
			logctx.FromCtx(ctx, s.log).Warnw("notification lease lost before marking sent", "notification_id", id)
			return nil
		}
		r = s.gw.Conn(ctx).Model(&models.Notification{}).
			Where("id = ? AND is_sent = ?", id, false).
			Where("(is_email = ? OR email_sent = ?) AND (is_telegram = ? OR telegram_sent = ?)", false, true, false, true).
			Updates(map[string]any{"is_sent": true, "sent_at": now})
		return db.Translate("finalize notification", r.Error)
	})
}

func (s *Service) deliver(ctx context.Context, channel types.Channel, n *models.Notification) error {
	u, err := s.users.GetByID(ctx, n.UserID)
	if err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	switch channel {
	case types.ChannelEmail:
		if !u.HasEmail() {
			return &apperr.TransportError{Channel: string(channel), Recipient: u.ID, Err: errNoEmail}
		}
		if err := s.email.SendEmail(sctx, *u.Email, n.Title, n.Content); err != nil {
			return &apperr.TransportError{Channel: string(channel), Recipient: *u.Email, Err: err}
		}
	case types.ChannelTelegram:
		if err := s.chat.SendMessage(sctx, u.ExternalIdentity, chatText(n)); err != nil {
			return &apperr.TransportError{Channel: string(channel), Recipient: fmt.Sprint(u.ExternalIdentity), Err: err}
		}
	}
	return nil
}

func chatText(n *models.Notification) string {
	if n.Title == "" {
		return n.Content
	}
	return n.Title + "\n\n" + n.Content
}
