package models

import "time"

// User is a bot member keyed by the chat platform identity.
// IsVip and VipExpiry are derived from active subscriptions and only
// written by the subscription lifecycle.
type User struct {
	ID               string     `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	ExternalIdentity int64      `gorm:"column:external_identity;not null;uniqueIndex" json:"external_identity"`
	Username         *string    `gorm:"column:username;type:varchar(128)" json:"username"`
	FirstName        string     `gorm:"column:first_name;type:varchar(128);not null;default:''" json:"first_name"`
	LastName         string     `gorm:"column:last_name;type:varchar(128);not null;default:''" json:"last_name"`
	Email            *string    `gorm:"column:email;type:varchar(255)" json:"email"`
	IsVip            bool       `gorm:"column:is_vip;not null;default:false;index" json:"is_vip"`
	VipExpiry        *time.Time `gorm:"column:vip_expiry" json:"vip_expiry"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) HasEmail() bool {
	return u != nil && u.Email != nil && *u.Email != ""
}
