package payment

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db/dbtest"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

func newTestService(t *testing.T) *Service {
	gw, _ := dbtest.NewGateway(t)
	return NewService(gw, zap.NewNop().Sugar(), nil)
}

func open(t *testing.T, s *Service, userID string) *models.Payment {
	t.Helper()
	p, err := s.Open(context.Background(), OpenRequest{
		UserID:   userID,
		Type:     types.PaymentTypeCard,
		Amount:   1000,
		Currency: "CNY",
		Metadata: map[string]any{"plan_id": "monthly", "source": "bot"},
	})
	require.NoError(t, err)
	return p
}

func TestOpen(t *testing.T) {
	s := newTestService(t)
	p := open(t, s, "u1")
	assert.Equal(t, types.PaymentStatusPending, p.Status)

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "monthly", got.MetadataString("plan_id"))

	_, err = s.Open(context.Background(), OpenRequest{UserID: "u1", Type: "cash", Amount: 1, Currency: "CNY"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdvance_MergesMetadata(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := open(t, s, "u1")

	got, err := s.Advance(ctx, p.ID, AdvanceRequest{
		Status:         types.PaymentStatusCompleted,
		TransactionRef: lo.ToPtr("gw-123"),
		Metadata:       map[string]any{"source": "webhook", "gateway": "stripe"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusCompleted, got.Status)
	require.NotNil(t, got.TransactionRef)
	assert.Equal(t, "gw-123", *got.TransactionRef)
	assert.Equal(t, "monthly", got.MetadataString("plan_id"), "unspecified keys are retained")
	assert.Equal(t, "webhook", got.MetadataString("source"), "existing keys are overwritten")
	assert.Equal(t, "stripe", got.MetadataString("gateway"), "new keys are added")

	var logs []models.PaymentLog
	require.NoError(t, s.gw.Conn(ctx).Where("payment_id = ?", p.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, types.PaymentStatusPending, logs[0].FromStatus)
	assert.Equal(t, types.PaymentStatusCompleted, logs[0].ToStatus)
}

func TestAdvance_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		path   []types.PaymentStatus
		next   types.PaymentStatus
		wantOK bool
	}{
		{"pending to completed", nil, types.PaymentStatusCompleted, true},
		{"pending to failed", nil, types.PaymentStatusFailed, true},
		{"pending to refunded", nil, types.PaymentStatusRefunded, false},
		{"completed to pending", []types.PaymentStatus{types.PaymentStatusCompleted}, types.PaymentStatusPending, false},
		{"completed to failed", []types.PaymentStatus{types.PaymentStatusCompleted}, types.PaymentStatusFailed, false},
		{"completed repeated", []types.PaymentStatus{types.PaymentStatusCompleted}, types.PaymentStatusCompleted, true},
		{"completed to refunded", []types.PaymentStatus{types.PaymentStatusCompleted}, types.PaymentStatusRefunded, true},
		{"failed to refunded", []types.PaymentStatus{types.PaymentStatusFailed}, types.PaymentStatusRefunded, true},
		{"refunded to completed", []types.PaymentStatus{types.PaymentStatusCompleted, types.PaymentStatusRefunded}, types.PaymentStatusCompleted, false},
		{"unknown status", nil, "chargeback", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t)
			ctx := context.Background()
			p := open(t, s, "u1")
			for _, st := range tt.path {
				_, err := s.Advance(ctx, p.ID, AdvanceRequest{Status: st})
				require.NoError(t, err)
			}
			before, err := s.Get(ctx, p.ID)
			require.NoError(t, err)

			_, err = s.Advance(ctx, p.ID, AdvanceRequest{Status: tt.next, Metadata: map[string]any{"x": "y"}})
			if tt.wantOK {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, apperr.ErrInvalidTransition)
			after, err := s.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status, "rejected moves leave the record untouched")
			assert.Equal(t, before.Metadata, after.Metadata)
		})
	}
}

func TestAdvance_Missing(t *testing.T) {
	s := newTestService(t)
	_, err := s.Advance(context.Background(), "missing", AdvanceRequest{Status: types.PaymentStatusCompleted})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListByUserAndScan(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	linked := open(t, s, "u1")
	_, err := s.Advance(ctx, linked.ID, AdvanceRequest{Status: types.PaymentStatusCompleted, SubscriptionID: lo.ToPtr("sub-1")})
	require.NoError(t, err)
	open(t, s, "u1")
	open(t, s, "u2")

	all, err := s.ListByUser(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	withSub, err := s.ListByUser(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, withSub, 1)
	assert.Equal(t, linked.ID, withSub[0].ID)

	rows, total, err := s.Scan(ctx, ScanRequest{Filters: types.FiltersAnd{
		{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"pending"}},
		{Field: "user_id", Operator: types.CommonFilterOperatorIn, Values: []any{"u1", "u2"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 2)

	_, _, err = s.Scan(ctx, ScanRequest{Filters: types.FiltersAnd{
		{Field: "metadata; DROP TABLE payments", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}},
	}})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	sums, count, err := s.SumCompleted(ctx, time.Now().UTC().Add(-time.Hour), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, map[string]int64{"CNY": 1000}, sums)
}
