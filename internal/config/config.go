package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Business identity: the tradie the assistant answers for.
	TradieName  string
	TradiePhone string

	// Call-back window offered to callers, 24-hour local clock.
	WindowStartHour int
	WindowEndHour   int

	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioFromNumber    string
	TwilioWebhookSecret string

	DeepgramAPIKey string

	GeminiAPIKey  string
	GeminiModelID string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	OwnerEmail        string

	ConversationTTL time.Duration

	OnboardingRatePerMinute int
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		TradieName:  getEnv("TRADIE_NAME", "the team"),
		TradiePhone: getEnv("TRADIE_PHONE", ""),

		WindowStartHour: getEnvAsInt("CALLBACK_WINDOW_START_HOUR", 13),
		WindowEndHour:   getEnvAsInt("CALLBACK_WINDOW_END_HOUR", 15),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),

		DeepgramAPIKey: getEnv("DEEPGRAM_API_KEY", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Missed Call Assistant"),
		OwnerEmail:        getEnv("OWNER_EMAIL", ""),

		ConversationTTL: getEnvAsDuration("CONVERSATION_TTL", 24*time.Hour),

		OnboardingRatePerMinute: getEnvAsInt("ONBOARDING_RATE_PER_MINUTE", 5),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
