package models

import (
	"time"

	"gorm.io/datatypes"
)

type GatewayCallbackLogStatus string

const (
	GatewayCallbackLogStatusReceived     GatewayCallbackLogStatus = "received"
	GatewayCallbackLogStatusHandled      GatewayCallbackLogStatus = "handled"
	GatewayCallbackLogStatusHandleFailed GatewayCallbackLogStatus = "handle_failed"
)

// GatewayCallbackLog keeps the raw payload of every payment gateway callback.
type GatewayCallbackLog struct {
	ID        string                   `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Gateway   string                   `gorm:"column:gateway;type:varchar(64);not null" json:"gateway"`
	PaymentID *string                  `gorm:"column:payment_id;type:varchar(36);index" json:"payment_id"`
	UserID    *string                  `gorm:"column:user_id;type:varchar(36)" json:"user_id"`
	TraceID   string                   `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Data      datatypes.JSON           `gorm:"column:data" json:"data"`
	Result    datatypes.JSONMap        `gorm:"column:result" json:"result"`
	Status    GatewayCallbackLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

func (GatewayCallbackLog) TableName() string { return "gateway_callback_logs" }
