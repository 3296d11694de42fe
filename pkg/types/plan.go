package types

import "time"

// Plan is a purchasable membership plan, loaded from config.
type Plan struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
	// DurationDays is the length of the subscription period granted by the plan.
	DurationDays int `json:"duration_days" mapstructure:"duration_days"`
	// Price in minor currency units (10.00 -> 1000).
	Price    int64  `json:"price" mapstructure:"price"`
	Currency string `json:"currency" mapstructure:"currency"`
}

func (p *Plan) Duration() time.Duration {
	if p == nil {
		return 0
	}
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

func (p *Plan) Valid() bool {
	return p != nil && p.ID != "" && p.DurationDays > 0
}
