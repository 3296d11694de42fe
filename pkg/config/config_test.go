package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("APP_CONFIG_FILE", path)
}

func TestNew_DefaultPlans(t *testing.T) {
	writeConfig(t, "env: dev\n")

	cfg, err := New()
	require.NoError(t, err)
	assert.Len(t, cfg.Plans, 3)

	monthly := cfg.GetPlan("monthly")
	require.NotNil(t, monthly)
	assert.Equal(t, 30, monthly.DurationDays)
	assert.Equal(t, int64(1000), monthly.Price)
	assert.Nil(t, cfg.GetPlan("weekly"))
	assert.Equal(t, 16, cfg.Activation.CodeLength)
	assert.Equal(t, 10*time.Second, cfg.Notification.SendTimeout)
}

func TestNew_FileOverrides(t *testing.T) {
	writeConfig(t, `
env: prod
notification:
  send_timeout: 3s
  batch_size: 10
plans:
  - id: weekly
    name: Weekly VIP
    duration_days: 7
    price: 300
    currency: USD
`)
	t.Setenv("APP_TELEGRAM_TOKEN", "123:abc")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, EnvProd, cfg.Env)
	assert.Equal(t, 3*time.Second, cfg.Notification.SendTimeout)
	assert.Equal(t, 10, cfg.Notification.BatchSize)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	require.Len(t, cfg.Plans, 1)
	assert.Equal(t, 7*24*time.Hour, cfg.GetPlan("weekly").Duration())
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "zero duration",
			body: "plans:\n  - id: broken\n    duration_days: 0\n    currency: USD\n",
			want: "duration_days",
		},
		{
			name: "missing currency",
			body: "plans:\n  - id: nocur\n    duration_days: 30\n    price: 100\n",
			want: "currency is required",
		},
		{
			name: "duplicate plan",
			body: "plans:\n  - id: a\n    duration_days: 1\n    currency: USD\n  - id: a\n    duration_days: 2\n    currency: USD\n",
			want: "duplicate plan",
		},
		{
			name: "lease not longer than send timeout",
			body: "notification:\n  send_timeout: 30s\n  lease: 30s\n",
			want: "notification.lease",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.body)
			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_DefaultsPass(t *testing.T) {
	cfg := &Config{
		Plans:        DefaultPlans(),
		Notification: NotificationConfig{SendTimeout: 10 * time.Second, Lease: 2 * time.Minute},
	}
	assert.NoError(t, cfg.Validate())
}
