package models

import (
	"time"
)

// Subscription is one time-bounded VIP grant. Rows are deactivated,
// never deleted.
type Subscription struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;type:varchar(36);not null;index:idx_subscriptions_user_active,priority:1" json:"user_id"`
	PlanID    string    `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	StartDate time.Time `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time `gorm:"column:end_date;not null;index" json:"end_date"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true;index:idx_subscriptions_user_active,priority:2" json:"is_active"`
	AutoRenew bool      `gorm:"column:auto_renew;not null;default:false" json:"auto_renew"`
	// ExpiryRemindedAt is set once the expiry reminder has been enqueued.
	ExpiryRemindedAt *time.Time `gorm:"column:expiry_reminded_at" json:"expiry_reminded_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Valid reports whether the subscription grants VIP at now.
func (s *Subscription) Valid(now time.Time) bool {
	return s != nil && s.IsActive && s.EndDate.After(now)
}
