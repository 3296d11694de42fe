package models

import "time"

// SubscriptionDailySnapshot records, once per day, a member's active
// subscription. The daily membership statistics read it.
type SubscriptionDailySnapshot struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UserID         string    `gorm:"column:user_id;type:varchar(36);not null;uniqueIndex:idx_user_id_snapshot_date,priority:1" json:"user_id"`
	SnapshotDate   string    `gorm:"column:snapshot_date;type:varchar(10);not null;uniqueIndex:idx_user_id_snapshot_date,priority:2;index" json:"snapshot_date"`
	SubscriptionID string    `gorm:"column:subscription_id;type:varchar(36);not null" json:"subscription_id"`
	PlanID         string    `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	EndDate        time.Time `gorm:"column:end_date;not null" json:"end_date"`
	// SnapshotCreatedAt is refreshed when the day's snapshot is retaken.
	SnapshotCreatedAt time.Time `gorm:"column:snapshot_created_at" json:"snapshot_created_at"`
	CreatedAt         time.Time `json:"created_at"`
}

func (SubscriptionDailySnapshot) TableName() string {
	return "subscription_daily_snapshots"
}
