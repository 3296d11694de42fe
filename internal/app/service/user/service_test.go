package user

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/platform/db/dbtest"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
)

func newTestService(t *testing.T) *Service {
	gw, _ := dbtest.NewGateway(t)
	return NewService(gw, zap.NewNop().Sugar())
}

func TestUpsertByExternalID(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	created, err := s.UpsertByExternalID(ctx, 1001, Profile{
		Username:  lo.ToPtr("alice"),
		FirstName: "Alice",
		Email:     lo.ToPtr("alice@example.com"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsVip)

	updated, err := s.UpsertByExternalID(ctx, 1001, Profile{Username: lo.ToPtr("alice2"), FirstName: "Al"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID, "same identity keeps the same row")
	assert.Equal(t, "alice2", *updated.Username)
	assert.Equal(t, "Al", updated.FirstName)
	require.NotNil(t, updated.Email, "nil email leaves the stored address")
	assert.Equal(t, "alice@example.com", *updated.Email)

	ids, err := s.ListIDs(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, ids)
}

func TestUpsertDoesNotTouchVip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u, err := s.UpsertByExternalID(ctx, 1, Profile{FirstName: "A"})
	require.NoError(t, err)
	expiry := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	require.NoError(t, s.SetVipStatus(ctx, u.ID, true, &expiry))

	u, err = s.UpsertByExternalID(ctx, 1, Profile{FirstName: "B"})
	require.NoError(t, err)
	assert.True(t, u.IsVip)
	require.NotNil(t, u.VipExpiry)
	assert.WithinDuration(t, expiry, *u.VipExpiry, time.Second)
}

func TestGetByExternalID_NotFound(t *testing.T) {
	s := newTestService(t)
	_, err := s.GetByExternalID(context.Background(), 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetVipStatus(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	vip, err := s.UpsertByExternalID(ctx, 1, Profile{})
	require.NoError(t, err)
	regular, err := s.UpsertByExternalID(ctx, 2, Profile{})
	require.NoError(t, err)

	expiry := time.Now().UTC().Add(time.Hour)
	require.NoError(t, s.SetVipStatus(ctx, vip.ID, true, &expiry))

	ids, err := s.ListIDs(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{vip.ID}, ids)

	// clearing VIP always clears the expiry
	require.NoError(t, s.SetVipStatus(ctx, vip.ID, false, &expiry))
	got, err := s.GetByID(ctx, vip.ID)
	require.NoError(t, err)
	assert.False(t, got.IsVip)
	assert.Nil(t, got.VipExpiry)

	found, err := s.FindByIDs(ctx, []string{vip.ID, regular.ID, "ghost"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	assert.ErrorIs(t, s.SetVipStatus(ctx, "ghost", true, &expiry), apperr.ErrNotFound)
}
