package types

import "time"

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonActivationCode SubscriptionChangeReason = "activation_code"
	SubscriptionChangeReasonPurchase       SubscriptionChangeReason = "purchase"
	SubscriptionChangeReasonRefund         SubscriptionChangeReason = "refund"
	SubscriptionChangeReasonCancel         SubscriptionChangeReason = "cancel"
	SubscriptionChangeReasonExpire         SubscriptionChangeReason = "expire"
	SubscriptionChangeReasonGift           SubscriptionChangeReason = "gift"
)

type UserSubscriptionInfo struct {
	SubscriptionID string    `json:"subscription_id"`
	PlanID         string    `json:"plan_id"`
	PlanName       string    `json:"plan_name"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	IsActive       bool      `json:"is_active"`
	AutoRenew      bool      `json:"auto_renew"`
}

type VipStatus struct {
	IsVip     bool       `json:"is_vip"`
	VipExpiry *time.Time `json:"vip_expiry"`
}
