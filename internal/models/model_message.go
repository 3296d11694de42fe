package models

import "time"

// Message is broadcast content, either public or VIP-only.
type Message struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Title     string    `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	VipOnly   bool      `gorm:"column:vip_only;not null;default:false" json:"vip_only"`
	AuthorID  *string   `gorm:"column:author_id;type:varchar(36)" json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageDelivery links a message to one recipient. The unique index
// makes a repeated fan-out a no-op.
type MessageDelivery struct {
	ID           string     `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	MessageID    string     `gorm:"column:message_id;type:varchar(36);not null;uniqueIndex:uniq_message_deliveries_message_user,priority:1" json:"message_id"`
	UserID       string     `gorm:"column:user_id;type:varchar(36);not null;uniqueIndex:uniq_message_deliveries_message_user,priority:2;index" json:"user_id"`
	IsRead       bool       `gorm:"column:is_read;not null;default:false" json:"is_read"`
	ReadAt       *time.Time `gorm:"column:read_at" json:"read_at"`
	PushedAt     *time.Time `gorm:"column:pushed_at" json:"pushed_at"`
	// PushFailedAt is the last failed push; retries go oldest failure first.
	PushFailedAt *time.Time `gorm:"column:push_failed_at" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`

	Message *Message `gorm:"foreignKey:MessageID" json:"message,omitempty"`
}

func (MessageDelivery) TableName() string {
	return "message_deliveries"
}
