package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanwang5210/telegram-bot/pkg/config"
)

func TestEnabled(t *testing.T) {
	assert.False(t, Enabled(nil))
	assert.False(t, Enabled(Disabled{}))
	assert.False(t, Enabled(&Disabled{}))
	assert.True(t, Enabled(NewSMTPSender(config.SMTPConfig{Host: "localhost", Port: 25})))

	assert.ErrorIs(t, Disabled{}.SendMessage(context.Background(), 1, "x"), ErrDisabled)
	assert.ErrorIs(t, Disabled{}.SendEmail(context.Background(), "a@b.c", "s", "b"), ErrDisabled)
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{Host: "localhost", Port: 25, From: "bot@example.com", FromName: "VIP Bot"})
	m := s.buildMessage("user@example.com", "Welcome", "line 1\n<b>line 2</b>")

	assert.Equal(t, []string{"user@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Welcome"}, m.GetHeader("Subject"))
	assert.Contains(t, m.GetHeader("From")[0], "bot@example.com")
	assert.Equal(t, "<html><body><p>line 1<br>\n&lt;b&gt;line 2&lt;/b&gt;</p></body></html>", plainToHTML("line 1\n<b>line 2</b>"))
}

func TestSMTPSender_ContextDeadline(t *testing.T) {
	// the listener accepts but never sends the SMTP greeting
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			defer conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	s := NewSMTPSender(config.SMTPConfig{Host: "127.0.0.1", Port: addr.Port, MaxInFlight: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.SendEmail(ctx, "user@example.com", "s", "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Eventually(t, func() bool { return accepted.Load() == 1 }, time.Second, 10*time.Millisecond)

	// the stalled session still holds the only slot
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	err = s.SendEmail(ctx2, "user@example.com", "s", "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, accepted.Load())
}

func TestTelegramSender_SendMessage(t *testing.T) {
	var calls atomic.Int32
	var gotChatID, gotText atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotChatID.Store(r.FormValue("chat_id"))
		gotText.Store(r.FormValue("text"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer srv.Close()

	s, err := NewTelegramSender("123:abc", bot.WithServerURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, s.SendMessage(context.Background(), 42, "hello"))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "42", gotChatID.Load())
	assert.Equal(t, "hello", gotText.Load())
}

func TestTelegramSender_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	s, err := NewTelegramSender("123:abc", bot.WithServerURL(srv.URL))
	require.NoError(t, err)
	assert.Error(t, s.SendMessage(context.Background(), 42, "hello"))
}
