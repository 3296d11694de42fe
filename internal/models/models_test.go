package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "users", User{}.TableName())
	assert.Equal(t, "subscriptions", Subscription{}.TableName())
	assert.Equal(t, "activation_codes", ActivationCode{}.TableName())
	assert.Equal(t, "payments", Payment{}.TableName())
	assert.Equal(t, "messages", Message{}.TableName())
	assert.Equal(t, "message_deliveries", MessageDelivery{}.TableName())
	assert.Equal(t, "notifications", Notification{}.TableName())
}

func TestSubscriptionValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		sub  *Subscription
		want bool
	}{
		{"nil", nil, false},
		{"active future", &Subscription{IsActive: true, EndDate: now.Add(time.Hour)}, true},
		{"active past", &Subscription{IsActive: true, EndDate: now.Add(-time.Hour)}, false},
		{"inactive", &Subscription{IsActive: false, EndDate: now.Add(time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.Valid(now))
		})
	}
}

func TestHelpers(t *testing.T) {
	empty := ""
	mail := "a@example.com"
	assert.False(t, (*User)(nil).HasEmail())
	assert.False(t, (&User{Email: &empty}).HasEmail())
	assert.True(t, (&User{Email: &mail}).HasEmail())

	p := &Payment{Metadata: datatypes.JSONMap{"plan_id": "monthly", "n": 1}}
	assert.Equal(t, "monthly", p.MetadataString("plan_id"))
	assert.Equal(t, "", p.MetadataString("n"))
	assert.Equal(t, "", (*Payment)(nil).MetadataString("plan_id"))
}
