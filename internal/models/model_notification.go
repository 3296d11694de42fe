package models

import (
	"time"

	"github.com/alanwang5210/telegram-bot/pkg/types"
)

// Notification is a pending or delivered notice to one user.
//
// Is{Email,Telegram} are the channel intents. Each channel has its own
// sent flag and lease; IsSent turns true exactly once, after every
// intended channel is delivered.
type Notification struct {
	ID      string                 `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	UserID  string                 `gorm:"column:user_id;type:varchar(36);not null;index" json:"user_id"`
	Type    types.NotificationType `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Title   string                 `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Content string                 `gorm:"column:content;type:text;not null" json:"content"`

	IsEmail    bool `gorm:"column:is_email;not null;default:false" json:"is_email"`
	IsTelegram bool `gorm:"column:is_telegram;not null;default:false" json:"is_telegram"`

	EmailSent          bool       `gorm:"column:email_sent;not null;default:false" json:"email_sent"`
	EmailSentAt        *time.Time `gorm:"column:email_sent_at" json:"email_sent_at"`
	EmailLeaseToken    *string    `gorm:"column:email_lease_token;type:varchar(36)" json:"-"`
	EmailLeaseUntil    *time.Time `gorm:"column:email_lease_until" json:"-"`
	TelegramSent       bool       `gorm:"column:telegram_sent;not null;default:false" json:"telegram_sent"`
	TelegramSentAt     *time.Time `gorm:"column:telegram_sent_at" json:"telegram_sent_at"`
	TelegramLeaseToken *string    `gorm:"column:telegram_lease_token;type:varchar(36)" json:"-"`
	TelegramLeaseUntil *time.Time `gorm:"column:telegram_lease_until" json:"-"`

	IsSent    bool       `gorm:"column:is_sent;not null;default:false;index" json:"is_sent"`
	SentAt    *time.Time `gorm:"column:sent_at" json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
