package transport

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

// TelegramSender pushes plain text messages through the Bot API. It is
// send-only; receiving commands is the bot front end's job.
type TelegramSender struct {
	b *bot.Bot
}

// NewTelegramSender creates a sender for token. Extra options are passed
// to bot.New; the getMe probe is skipped so startup does not need network.
func NewTelegramSender(token string, opts ...bot.Option) (*TelegramSender, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{b: b}, nil
}

func (t *TelegramSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := t.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}
