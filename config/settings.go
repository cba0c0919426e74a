package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the process configuration read from the environment (and .env
// through godotenv, loaded by main before LoadSettings).
type Settings struct {
	ServerPort  string
	GinMode     string
	Environment string
	StoreDriver string

	Timezone         *time.Location
	CancelWindowDays int

	TransferInterval    time.Duration
	AbandonmentInterval time.Duration
	HeartbeatTimeout    time.Duration
	MonitorWindow       time.Duration
	SweepLeaseTTL       time.Duration

	NotifyWebhookURL  string
	NotifyStaffEmails []string

	AnthropicAPIKey  string
	AnthropicModel   string
	NarrativeTimeout time.Duration

	AdminBaseURL string
	JWTSecret    string
	LogsToken    string
}

// Current holds the settings of the running process.
var Current *Settings

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("STORE_DRIVER", "mysql")
	v.SetDefault("TIMEZONE", "Asia/Tokyo")
	v.SetDefault("CANCEL_WINDOW_DAYS", 7)
	v.SetDefault("TRANSFER_INTERVAL", "1h")
	v.SetDefault("ABANDONMENT_INTERVAL", "1m")
	v.SetDefault("HEARTBEAT_TIMEOUT", "3m")
	v.SetDefault("MONITOR_WINDOW", "10m")
	v.SetDefault("SWEEP_LEASE_TTL", "5m")
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_STAFF_EMAILS", "")
	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("ANTHROPIC_MODEL", "")
	v.SetDefault("NARRATIVE_TIMEOUT", "8s")
	v.SetDefault("ADMIN_BASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("LOGS_TOKEN", "")
	return v
}

func LoadSettings() (*Settings, error) {
	v := newViper()

	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", v.GetString("TIMEZONE"), err)
	}

	s := &Settings{
		ServerPort:          v.GetString("SERVER_PORT"),
		GinMode:             v.GetString("GIN_MODE"),
		Environment:         strings.ToLower(v.GetString("ENVIRONMENT")),
		StoreDriver:         strings.ToLower(v.GetString("STORE_DRIVER")),
		Timezone:            loc,
		CancelWindowDays:    v.GetInt("CANCEL_WINDOW_DAYS"),
		TransferInterval:    v.GetDuration("TRANSFER_INTERVAL"),
		AbandonmentInterval: v.GetDuration("ABANDONMENT_INTERVAL"),
		HeartbeatTimeout:    v.GetDuration("HEARTBEAT_TIMEOUT"),
		MonitorWindow:       v.GetDuration("MONITOR_WINDOW"),
		SweepLeaseTTL:       v.GetDuration("SWEEP_LEASE_TTL"),
		NotifyWebhookURL:    strings.TrimSpace(v.GetString("NOTIFY_WEBHOOK_URL")),
		NotifyStaffEmails:   splitList(v.GetString("NOTIFY_STAFF_EMAILS")),
		AnthropicAPIKey:     v.GetString("ANTHROPIC_API_KEY"),
		AnthropicModel:      v.GetString("ANTHROPIC_MODEL"),
		NarrativeTimeout:    v.GetDuration("NARRATIVE_TIMEOUT"),
		AdminBaseURL:        strings.TrimSpace(v.GetString("ADMIN_BASE_URL")),
		JWTSecret:           v.GetString("JWT_SECRET"),
		LogsToken:           v.GetString("LOGS_TOKEN"),
	}

	switch s.StoreDriver {
	case "mysql", "memory":
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q (want mysql or memory)", s.StoreDriver)
	}
	if s.CancelWindowDays <= 0 {
		return nil, fmt.Errorf("CANCEL_WINDOW_DAYS must be positive, got %d", s.CancelWindowDays)
	}

	Current = s
	return s, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
