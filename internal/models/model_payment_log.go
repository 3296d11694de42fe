package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// PaymentLog records every status change of a payment.
type PaymentLog struct {
	ID         string                       `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	PaymentID  string                       `gorm:"column:payment_id;type:varchar(36);not null;index" json:"payment_id"`
	UserID     string                       `gorm:"column:user_id;type:varchar(36);not null;index" json:"user_id"`
	FromStatus types.PaymentStatus          `gorm:"column:from_status;type:varchar(32);not null" json:"from_status"`
	ToStatus   types.PaymentStatus          `gorm:"column:to_status;type:varchar(32);not null" json:"to_status"`
	Before     datatypes.JSONType[*Payment] `gorm:"column:before" json:"before"`
	After      datatypes.JSONType[*Payment] `gorm:"column:after" json:"after"`
	CreatedAt  time.Time                    `json:"created_at"`
}

func (PaymentLog) TableName() string {
	return "payment_logs"
}
