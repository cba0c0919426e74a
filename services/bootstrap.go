package services

import (
	"log"

	"franchise-dispatch-api/config"
)

// OpenStore builds the store selected by STORE_DRIVER. The mysql store
// connects through config.InitDB and migrates its tables.
func OpenStore(settings *config.Settings) (Store, error) {
	if settings.StoreDriver == "memory" {
		log.Println("Using in-memory store; data is lost on restart")
		return NewMemoryStore(), nil
	}
	if err := config.InitDB(); err != nil {
		return nil, err
	}
	store := NewGormStore(config.DB)
	if err := store.AutoMigrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// AppConfigFromSettings picks notification channels and the narrative
// generator from what is configured.
func AppConfigFromSettings(settings *config.Settings) AppConfig {
	var channels MultiNotifier
	if settings.NotifyWebhookURL != "" {
		channels = append(channels, NewWebhookNotifier(settings.NotifyWebhookURL))
	}
	if len(settings.NotifyStaffEmails) > 0 {
		channels = append(channels, NewMailNotifier(settings.NotifyStaffEmails))
	}
	var notifier Notifier = LogNotifier{}
	if len(channels) > 0 {
		notifier = channels
	}

	var narrator NarrativeGenerator
	if n, err := NewAnthropicNarrator(settings.AnthropicAPIKey, settings.AnthropicModel, settings.NarrativeTimeout); err == nil {
		narrator = n
	} else {
		log.Printf("Narratives use the built-in template: %v", err)
	}

	return AppConfig{
		Policy: WindowPolicy{
			Location:         settings.Timezone,
			CancelWindowDays: settings.CancelWindowDays,
		},
		Abandonment: AbandonmentPolicy{
			HeartbeatTimeout: settings.HeartbeatTimeout,
			MonitorWindow:    settings.MonitorWindow,
		},
		Notifier:      notifier,
		Narrator:      narrator,
		AdminBaseURL:  settings.AdminBaseURL,
		SweepLeaseTTL: settings.SweepLeaseTTL,
	}
}
