package types

type NotificationType string

const (
	NotificationTypeSubscriptionExpiry NotificationType = "subscription_expiry"
	NotificationTypePaymentSuccess     NotificationType = "payment_success"
	NotificationTypePaymentFailed      NotificationType = "payment_failed"
	NotificationTypeSystem             NotificationType = "system"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeSubscriptionExpiry, NotificationTypePaymentSuccess, NotificationTypePaymentFailed, NotificationTypeSystem:
		return true
	}
	return false
}

// Channel is a notification delivery transport.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

var Channels = []Channel{ChannelEmail, ChannelTelegram}

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelTelegram
}
