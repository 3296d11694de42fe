package models

import "time"

// ActivationCode is a single-use code worth one period of PlanID.
// IsUsed flips false -> true once, by a conditional update.
type ActivationCode struct {
	ID        string     `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Code      string     `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	PlanID    string     `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	IsUsed    bool       `gorm:"column:is_used;not null;default:false" json:"is_used"`
	UsedBy    *string    `gorm:"column:used_by;type:varchar(36)" json:"used_by"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (ActivationCode) TableName() string {
	return "activation_codes"
}
