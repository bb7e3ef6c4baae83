package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		MessageBird: MessageBirdConfig{
			SandboxEnabled:    false,
			Timeout:           15,
			ConnectionTimeout: 10,
		},
		Webhook: WebhookConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Path: "/webhook/whatsapp",
		},
		Responder: ResponderConfig{
			RulesDir: "~/.birdbot/rules",
			Echo:     false,
		},
		Journal: JournalConfig{
			Enabled:       true,
			DBPath:        "~/.birdbot/journal.db",
			RetentionDays: 90,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
