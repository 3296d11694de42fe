package transport

import (
	"context"
	"fmt"
	"html"
	"strings"

	"golang.org/x/sync/semaphore"
	"gopkg.in/gomail.v2"

	"github.com/alanwang5210/telegram-bot/pkg/config"
)

const defaultMaxInFlight = 4

type SMTPSender struct {
	config   config.SMTPConfig
	dialer   *gomail.Dialer
	inFlight *semaphore.Weighted
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	n := cfg.MaxInFlight
	if n <= 0 {
		n = defaultMaxInFlight
	}
	return &SMTPSender{
		config:   cfg,
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		inFlight: semaphore.NewWeighted(int64(n)),
	}
}

// SendEmail sends body as plain text with an HTML alternative. gomail
// has no context support, so a cancelled ctx abandons the send and
// reports ctx.Err() while the session finishes in the background. The
// slot is held until it does, so a server that stalls after accepting
// ties up at most MaxInFlight goroutines; later sends wait for a slot
// or their ctx.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := s.inFlight.Acquire(ctx, 1); err != nil {
		return err
	}
	m := s.buildMessage(to, subject, body)

	done := make(chan error, 1)
	go func() {
		defer s.inFlight.Release(1)
		done <- s.dialer.DialAndSend(m)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTPSender) buildMessage(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	from := s.config.From
	if s.config.FromName != "" {
		from = m.FormatAddress(s.config.From, s.config.FromName)
	}
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	m.AddAlternative("text/html", plainToHTML(body))
	return m
}

func plainToHTML(body string) string {
	escaped := strings.ReplaceAll(html.EscapeString(body), "\n", "<br>\n")
	return "<html><body><p>" + escaped + "</p></body></html>"
}
