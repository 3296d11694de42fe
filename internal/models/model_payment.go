package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// Payment is one payment attempt. Status only moves forward
// (see types.PaymentStatus.CanAdvanceTo); Metadata is merged, never replaced.
type Payment struct {
	ID             string              `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UserID         string              `gorm:"column:user_id;type:varchar(36);not null;index" json:"user_id"`
	SubscriptionID *string             `gorm:"column:subscription_id;type:varchar(36);index" json:"subscription_id"`
	Type           types.PaymentType   `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Amount         int64               `gorm:"column:amount;not null" json:"amount"`
	Currency       string              `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	Status         types.PaymentStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	TransactionRef *string             `gorm:"column:transaction_ref;type:varchar(128)" json:"transaction_ref"`
	Metadata       datatypes.JSONMap   `gorm:"column:metadata" json:"metadata"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// MetadataString returns a string value from metadata, or "".
func (p *Payment) MetadataString(key string) string {
	if p == nil || p.Metadata == nil {
		return ""
	}
	s, _ := p.Metadata[key].(string)
	return s
}
