package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// SubscriptionLog records changes to user subscriptions.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID             string `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UserID         string `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	SubscriptionID string `gorm:"column:subscription_id;type:varchar(36);index;not null" json:"subscription_id"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	// Before stores subscription data before the change, null on creation.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before" json:"before"`
	After  datatypes.JSONType[*Subscription] `gorm:"column:after" json:"after"`
	// Extra stores additional context such as the activation code or payment id.
	Extra     datatypes.JSONMap `gorm:"column:extra" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_logs"
}
