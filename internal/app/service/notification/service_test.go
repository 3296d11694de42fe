package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/app/service/user"
	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/internal/platform/db/dbtest"
	"github.com/alanwang5210/telegram-bot/internal/platform/transport"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

type fakeSender struct {
	mu    sync.Mutex
	fail  map[string]bool
	sent  []string
	chats []int64
}

func (f *fakeSender) SendEmail(_ context.Context, to, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, chatID)
	f.sent = append(f.sent, text)
	return nil
}

// stallingSender never answers before the caller gives up.
type stallingSender struct{}

func (stallingSender) SendEmail(ctx context.Context, _, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stallingSender) SendMessage(ctx context.Context, _ int64, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixture struct {
	svc   *Service
	gw    *db.Gateway
	users *user.Service
	email *fakeSender
	chat  *fakeSender
}

func newFixture(t *testing.T) *fixture {
	gw, _ := dbtest.NewGateway(t)
	log := zap.NewNop().Sugar()
	f := &fixture{
		gw:    gw,
		users: user.NewService(gw, log),
		email: &fakeSender{fail: map[string]bool{}},
		chat:  &fakeSender{},
	}
	f.svc = NewService(gw, f.users, f.email, f.chat, nil, log, nil)
	return f
}

func (f *fixture) user(t *testing.T, ext int64, email *string) *models.User {
	u, err := f.users.UpsertByExternalID(context.Background(), ext, user.Profile{FirstName: "u", Email: email})
	require.NoError(t, err)
	return u
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, nil)

	_, err := f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: "bogus", Telegram: true})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: types.NotificationTypeSystem})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	n, err := f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: types.NotificationTypeSystem, Title: "hi", Telegram: true})
	require.NoError(t, err)
	assert.False(t, n.IsSent)

	pending, err := f.svc.ListByUser(ctx, u.ID, true, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDispatchPending_EmailOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, lo.ToPtr("a@example.com"))

	n, err := f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: types.NotificationTypePaymentSuccess, Title: "paid", Content: "thanks", Email: true})
	require.NoError(t, err)

	res, err := f.svc.DispatchPending(ctx, types.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{Channel: types.ChannelEmail, Selected: 1, Delivered: 1}, res)
	assert.Equal(t, []string{"a@example.com|paid"}, f.email.sent)

	got, err := f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailSent)
	assert.True(t, got.IsSent)
	assert.NotNil(t, got.SentAt)
	assert.Nil(t, got.EmailLeaseToken)

	res, err = f.svc.DispatchPending(ctx, types.ChannelEmail)
	require.NoError(t, err)
	assert.Zero(t, res.Selected)
	assert.Len(t, f.email.sent, 1)
}

func TestDispatchPending_BothChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 77, lo.ToPtr("b@example.com"))

	n, err := f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: types.NotificationTypeSubscriptionExpiry, Title: "soon", Content: "renew", Email: true, Telegram: true})
	require.NoError(t, err)

	res, err := f.svc.DispatchPending(ctx, types.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)

	got, err := f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, got.IsSent, "telegram still pending")

	// the telegram pass still sees the row after the email pass
	res, err = f.svc.DispatchPending(ctx, types.ChannelTelegram)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, []int64{77}, f.chat.chats)
	assert.Equal(t, []string{"soon\n\nrenew"}, f.chat.sent)

	got, err = f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSent)
	assert.True(t, got.TelegramSent)
}

func TestDispatchPending_FailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := f.user(t, 1, lo.ToPtr("bad@example.com"))
	good := f.user(t, 2, lo.ToPtr("good@example.com"))
	noMail := f.user(t, 3, nil)
	f.email.fail["bad@example.com"] = true

	for _, u := range []*models.User{bad, good, noMail} {
		_, err := f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: types.NotificationTypeSystem, Title: "t", Email: true})
		require.NoError(t, err)
	}

	res, err := f.svc.DispatchPending(ctx, types.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Selected)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 2, res.Failed)

	// failed rows are released and retried on the next pass
	delete(f.email.fail, "bad@example.com")
	res, err = f.svc.DispatchPending(ctx, types.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Selected)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 1, res.Failed)
}

func TestDispatchPending_FailingRowsDoNotStarveQueue(t *testing.T) {
	f := newFixture(t)
	f.svc.batchSize = 3
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		addr := fmt.Sprintf("bounce%d@example.com", i)
		f.email.fail[addr] = true
		u := f.user(t, i, lo.ToPtr(addr))
		_, err := f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: types.NotificationTypeSystem, Title: "t", Email: true})
		require.NoError(t, err)
	}
	good := f.user(t, 99, lo.ToPtr("good@example.com"))
	n, err := f.svc.Create(ctx, CreateRequest{UserID: good.ID, Type: types.NotificationTypeSystem, Title: "t", Email: true})
	require.NoError(t, err)

	base := time.Now().UTC()
	delivered := 0
	for pass := 1; pass <= 3 && delivered == 0; pass++ {
		f.svc.now = func() time.Time { return base.Add(time.Duration(pass) * time.Second) }
		res, err := f.svc.DispatchPending(ctx, types.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Selected)
		delivered += res.Delivered
	}
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"good@example.com|t"}, f.email.sent)

	got, err := f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSent)

	// every bounced row keeps coming back, oldest attempt first
	attempted := map[string]bool{}
	for pass := 4; pass <= 6; pass++ {
		f.svc.now = func() time.Time { return base.Add(time.Duration(pass) * time.Second) }
		res, err := f.svc.DispatchPending(ctx, types.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Failed)
		var rows []*models.Notification
		require.NoError(t, f.gw.Conn(ctx).Where("email_sent = ?", false).Find(&rows).Error)
		for _, row := range rows {
			if row.EmailLeaseUntil != nil && !row.EmailLeaseUntil.Before(f.svc.now().Add(-500*time.Millisecond)) {
				attempted[row.ID] = true
			}
		}
	}
	assert.Len(t, attempted, 4)
}

func TestDispatchPending_SendTimeoutIsRetried(t *testing.T) {
	f := newFixture(t)
	f.svc.email = stallingSender{}
	f.svc.sendTimeout = 20 * time.Millisecond
	ctx := context.Background()
	u := f.user(t, 1, lo.ToPtr("slow@example.com"))
	n, err := f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: types.NotificationTypeSystem, Title: "t", Email: true})
	require.NoError(t, err)

	start := time.Now()
	res, err := f.svc.DispatchPending(ctx, types.ChannelEmail)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, DispatchResult{Channel: types.ChannelEmail, Selected: 1, Failed: 1}, res)

	got, err := f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, got.EmailSent)
	assert.False(t, got.IsSent)
	assert.Nil(t, got.EmailLeaseToken)

	f.svc.email = f.email
	f.svc.now = func() time.Time { return time.Now().UTC().Add(time.Second) }
	res, err = f.svc.DispatchPending(ctx, types.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, []string{"slow@example.com|t"}, f.email.sent)
}

func TestDispatchPending_LeaseBlocksAndExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 5, nil)
	n, err := f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: types.NotificationTypeSystem, Title: "t", Telegram: true})
	require.NoError(t, err)

	// a pass that crashed after claiming
	claimed, err := f.svc.claim(ctx, n.ID, channelColumns[types.ChannelTelegram], "crashed")
	require.NoError(t, err)
	require.True(t, claimed)

	res, err := f.svc.DispatchPending(ctx, types.ChannelTelegram)
	require.NoError(t, err)
	assert.Zero(t, res.Selected)
	assert.Zero(t, f.chat.count())

	f.svc.now = func() time.Time { return time.Now().UTC().Add(defaultLease + time.Minute) }
	res, err = f.svc.DispatchPending(ctx, types.ChannelTelegram)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 1, f.chat.count())
}

func TestDispatchPending_ConcurrentPassesDeliverOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := int64(1); i <= 10; i++ {
		u := f.user(t, i, nil)
		_, err := f.svc.Create(ctx, CreateRequest{UserID: u.ID, Type: types.NotificationTypeSystem, Title: "t", Telegram: true})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make([]DispatchResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.svc.DispatchPending(ctx, types.ChannelTelegram)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	delivered := lo.SumBy(results, func(r DispatchResult) int { return r.Delivered })
	assert.Equal(t, 10, delivered)
	assert.Equal(t, 10, f.chat.count())
	assert.Len(t, lo.Uniq(f.chat.chats), 10)
}

func TestDispatchPending_DisabledAndUnknown(t *testing.T) {
	f := newFixture(t)
	f.svc.email = transport.Disabled{}
	ctx := context.Background()

	res, err := f.svc.DispatchPending(ctx, types.ChannelEmail)
	require.NoError(t, err)
	assert.True(t, res.Disabled)

	_, err = f.svc.DispatchPending(ctx, "pigeon")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	all, err := f.svc.DispatchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
