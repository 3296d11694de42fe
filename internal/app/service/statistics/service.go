package statistics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/clause"

	"github.com/alanwang5210/telegram-bot/internal/models"
	"github.com/alanwang5210/telegram-bot/internal/platform/db"
	"github.com/alanwang5210/telegram-bot/pkg/apperr"
	"github.com/alanwang5210/telegram-bot/pkg/logctx"
	"github.com/alanwang5210/telegram-bot/pkg/tool"
	"github.com/alanwang5210/telegram-bot/pkg/types"
)

var Module = fx.Options(
	fx.Provide(New),
)

type StatisticType string

const (
	// Completed payments
	StatisticTypeDailyPaymentCount StatisticType = "daily_payment_count"
	StatisticTypeDailyGmv          StatisticType = "daily_gmv"
	StatisticTypeTotalGmv          StatisticType = "total_gmv"

	// Membership
	StatisticTypeDailyMembershipCount    StatisticType = "daily_membership_count"
	StatisticTypeDailyNewMembershipCount StatisticType = "daily_new_membership_count"
	StatisticTypeTotalMembershipCount    StatisticType = "total_membership_count"
	StatisticTypeDailyRedemptionCount    StatisticType = "daily_redemption_count"
)

// paymentFilterFields may be used in Request.Filters. They only narrow
// the payment statistics.
var paymentFilterFields = []string{"type", "currency", "user_id"}

var paymentStatistics = []StatisticType{StatisticTypeDailyPaymentCount, StatisticTypeDailyGmv, StatisticTypeTotalGmv}

const defaultWindow = 30 * 24 * time.Hour

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	// From and To bound the daily series; the last 30 days by default.
	From      time.Time             `json:"from"`
	To        time.Time             `json:"to"`
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*DataItem           `json:"data_items"`
}

type ResponseDataItem struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type Response struct {
	DataItems map[StatisticType][]ResponseDataItem `json:"data_items"`
}

// Service computes admin statistics.
type Service struct {
	gw  *db.Gateway
	log *zap.SugaredLogger
	now func() time.Time
}

func New(gw *db.Gateway, log *zap.SugaredLogger) *Service {
	return &Service{gw: gw, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Get computes the requested statistics concurrently.
func (s *Service) Get(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || len(req.DataItems) == 0 {
		return nil, apperr.InvalidArgument("no data items requested")
	}
	for _, f := range req.Filters {
		if err := f.Validate(paymentFilterFields); err != nil {
			return nil, apperr.InvalidArgument("%v", err)
		}
	}
	if req.To.IsZero() {
		req.To = s.now()
	}
	if req.From.IsZero() {
		req.From = req.To.Add(-defaultWindow)
	}
	if !req.From.Before(req.To) {
		return nil, apperr.InvalidArgument("from must be before to")
	}

	results := make([][]ResponseDataItem, len(req.DataItems))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range req.DataItems {
		g.Go(func() error {
			res, err := s.get(gctx, req, item.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", item.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("statistics failed", "err", err)
		return nil, err
	}

	out := &Response{DataItems: make(map[StatisticType][]ResponseDataItem, len(req.DataItems))}
	for i, item := range req.DataItems {
		out.DataItems[item.ID] = results[i]
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, req *Request, id StatisticType) ([]ResponseDataItem, error) {
	if len(req.Filters) > 0 && !lo.Contains(paymentStatistics, id) {
		// filters only apply to payment statistics
		return nil, nil
	}
	switch id {
	case StatisticTypeDailyPaymentCount:
		return s.dailyPayments(ctx, req, false)
	case StatisticTypeDailyGmv:
		return s.dailyPayments(ctx, req, true)
	case StatisticTypeTotalGmv:
		return s.totalGmv(ctx, req)
	case StatisticTypeDailyMembershipCount:
		return s.dailyMembershipCount(ctx, req)
	case StatisticTypeDailyNewMembershipCount:
		return s.dailyNewMembershipCount(ctx, req)
	case StatisticTypeTotalMembershipCount:
		return s.totalMembershipCount(ctx)
	case StatisticTypeDailyRedemptionCount:
		return s.dailyRedemptionCount(ctx, req)
	default:
		return nil, apperr.InvalidArgument("invalid data item id: %s", id)
	}
}

type paymentRow struct {
	UpdatedAt time.Time
	Currency  string
	Amount    int64
}

func (s *Service) completedPayments(ctx context.Context, req *Request, from time.Time) ([]paymentRow, error) {
	var rows []paymentRow
	err := s.gw.Conn(ctx).Model(&models.Payment{}).
		Select("updated_at, currency, amount").
		Where("status = ? AND updated_at >= ? AND updated_at < ?", types.PaymentStatusCompleted, from, req.To).
		Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}}).
		Scan(&rows).Error
	if err != nil {
		return nil, db.Translate("load completed payments", err)
	}
	return rows, nil
}

// dailyPayments counts completed payments per day, or sums their amount
// per day and currency when gmv is set.
func (s *Service) dailyPayments(ctx context.Context, req *Request, gmv bool) ([]ResponseDataItem, error) {
	rows, err := s.completedPayments(ctx, req, req.From)
	if err != nil {
		return nil, err
	}
	buckets := map[[2]string]int64{}
	for _, r := range rows {
		key := [2]string{day(r.UpdatedAt), ""}
		if gmv {
			key[1] = r.Currency
			buckets[key] += r.Amount
		} else {
			buckets[key]++
		}
	}
	return series(buckets), nil
}

// totalGmv is the running GMV per currency at the end of each day.
func (s *Service) totalGmv(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	rows, err := s.completedPayments(ctx, req, time.Time{})
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UpdatedAt.Before(rows[j].UpdatedAt) })
	running := map[string]int64{}
	buckets := map[[2]string]int64{}
	for _, r := range rows {
		running[r.Currency] += r.Amount
		if !r.UpdatedAt.Before(req.From) {
			buckets[[2]string{day(r.UpdatedAt), r.Currency}] = running[r.Currency]
		}
	}
	return series(buckets), nil
}

func (s *Service) dailyMembershipCount(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var out []ResponseDataItem
	err := s.gw.Conn(ctx).Model(&models.SubscriptionDailySnapshot{}).
		Select("snapshot_date AS date, COUNT(*) AS value").
		Where("snapshot_date >= ? AND snapshot_date <= ?", day(req.From), day(req.To)).
		Group("snapshot_date").
		Order("snapshot_date").
		Scan(&out).Error
	if err != nil {
		return nil, db.Translate("daily membership count", err)
	}
	return out, nil
}

// dailyNewMembershipCount counts distinct users that started a
// subscription on each day.
func (s *Service) dailyNewMembershipCount(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var rows []struct {
		UserID    string
		CreatedAt time.Time
	}
	err := s.gw.Conn(ctx).Model(&models.Subscription{}).
		Select("user_id, created_at").
		Where("created_at >= ? AND created_at < ?", req.From, req.To).
		Scan(&rows).Error
	if err != nil {
		return nil, db.Translate("daily new memberships", err)
	}
	seen := map[[2]string]bool{}
	buckets := map[[2]string]int64{}
	for _, r := range rows {
		d := day(r.CreatedAt)
		if seen[[2]string{d, r.UserID}] {
			continue
		}
		seen[[2]string{d, r.UserID}] = true
		buckets[[2]string{d, ""}]++
	}
	return series(buckets), nil
}

// totalMembershipCount is the number of users that are VIP right now.
func (s *Service) totalMembershipCount(ctx context.Context) ([]ResponseDataItem, error) {
	var n int64
	err := s.gw.Conn(ctx).Model(&models.User{}).
		Where("is_vip = ? AND vip_expiry > ?", true, s.now()).
		Count(&n).Error
	if err != nil {
		return nil, db.Translate("total membership count", err)
	}
	return []ResponseDataItem{{Date: day(s.now()), Value: n}}, nil
}

func (s *Service) dailyRedemptionCount(ctx context.Context, req *Request) ([]ResponseDataItem, error) {
	var used []time.Time
	err := s.gw.Conn(ctx).Model(&models.ActivationCode{}).
		Where("is_used = ? AND used_at >= ? AND used_at < ?", true, req.From, req.To).
		Pluck("used_at", &used).Error
	if err != nil {
		return nil, db.Translate("daily redemptions", err)
	}
	buckets := map[[2]string]int64{}
	for _, t := range used {
		buckets[[2]string{day(t), ""}]++
	}
	return series(buckets), nil
}

// SaveDailySnapshots records every current member's active subscription
// under today's date. Running it again on the same day refreshes the
// rows.
func (s *Service) SaveDailySnapshots(ctx context.Context) (int64, error) {
	now := s.now()
	var subs []*models.Subscription
	err := s.gw.Conn(ctx).
		Where("is_active = ? AND end_date > ?", true, now).
		Order("end_date desc").
		Find(&subs).Error
	if err != nil {
		return 0, db.Translate("load active subscriptions", err)
	}
	// one row per user, for the subscription that lasts longest
	subs = lo.UniqBy(subs, func(sub *models.Subscription) string { return sub.UserID })
	if len(subs) == 0 {
		return 0, nil
	}
	snaps := lo.Map(subs, func(sub *models.Subscription, _ int) *models.SubscriptionDailySnapshot {
		return &models.SubscriptionDailySnapshot{
			ID:                tool.GenerateUUIDV7(),
			UserID:            sub.UserID,
			SnapshotDate:      day(now),
			SubscriptionID:    sub.ID,
			PlanID:            sub.PlanID,
			EndDate:           sub.EndDate,
			SnapshotCreatedAt: now,
		}
	})
	res := s.gw.Conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"subscription_id", "plan_id", "end_date", "snapshot_created_at"}),
	}).Create(&snaps)
	if res.Error != nil {
		return 0, db.Translate("save daily snapshots", res.Error)
	}
	logctx.FromCtx(ctx, s.log).Infow("daily snapshots saved", "date", day(now), "members", len(snaps))
	return int64(len(snaps)), nil
}

func day(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// series flattens (date, label) buckets sorted by date then label.
func series(buckets map[[2]string]int64) []ResponseDataItem {
	out := make([]ResponseDataItem, 0, len(buckets))
	for k, v := range buckets {
		out = append(out, ResponseDataItem{Date: k[0], Label: k[1], Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Label < out[j].Label
	})
	return out
}
