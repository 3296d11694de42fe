// Package transport holds the outbound delivery channels: chat messages
// through a Telegram bot and email through SMTP.
package transport

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/pkg/config"
)

// ErrDisabled is returned by a channel that has no configuration.
var ErrDisabled = errors.New("transport disabled")

// ChatSender delivers a text message to a chat recipient.
type ChatSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// EmailSender delivers one email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Disabled stands in for an unconfigured channel.
type Disabled struct{}

func (Disabled) SendMessage(context.Context, int64, string) error        { return ErrDisabled }
func (Disabled) SendEmail(context.Context, string, string, string) error { return ErrDisabled }

// Enabled reports whether sender can actually deliver.
func Enabled(sender any) bool {
	if sender == nil {
		return false
	}
	switch sender.(type) {
	case Disabled, *Disabled:
		return false
	}
	return true
}

func newChatSender(cfg *config.Config, log *zap.SugaredLogger) (ChatSender, error) {
	if cfg.Telegram.Token == "" {
		log.Warnw("telegram token not configured, chat delivery disabled")
		return Disabled{}, nil
	}
	return NewTelegramSender(cfg.Telegram.Token)
}

func newEmailSender(cfg *config.Config, log *zap.SugaredLogger) EmailSender {
	if cfg.SMTP.Host == "" {
		log.Warnw("smtp host not configured, email delivery disabled")
		return Disabled{}
	}
	return NewSMTPSender(cfg.SMTP)
}

var Module = fx.Options(
	fx.Provide(newChatSender, newEmailSender),
)
