package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/utils"
)

// WhatsAppConfig holds credentials for the official Cloud API (paid channel)
type WhatsAppConfig struct {
	Token         string
	PhoneNumberID string
	VerifyToken   string
	APIBase       string
	RatePerSec    float64
}

// TwilioConfig holds credentials for the Twilio WhatsApp sender
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string // Format: "whatsapp:+14155238886"
}

// LLMConfig configures the OpenAI-compatible endpoint used for validation and fallback replies
type LLMConfig struct {
	APIKey          string
	BaseURL         string
	ValidationModel string
	ChatModel       string
}

// RazorpayConfig configures payment links and the payment webhook
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// DatabaseConfig describes the postgres connection
type DatabaseConfig struct {
	User                   string
	Password               string
	Name                   string
	Host                   string
	InstanceConnectionName string
}

// Config is the complete runtime configuration
type Config struct {
	BusinessName  string
	OwnerPhone    string // normalized
	UPIID         string
	RentDueDay    int
	EBDueDay      int
	EBUnitRate    float64
	FormURL       string
	Port          string
	Environment   string
	UseMemory     bool
	PaidProvider  string // "cloudapi" or "twilio"
	PublicBaseURL string
	AdminAPIKey   string

	WWebEnabled   bool
	WWebStorePath string

	SessionTTL time.Duration

	UploadsDir     string
	AssetsDir      string
	ActivityDBPath string

	BillCron          string
	ReminderCron      string
	FinalReminderCron string

	DisableWebhookValidation bool
	LogLevel                 string

	WhatsApp WhatsAppConfig
	Twilio   TwilioConfig
	LLM      LLMConfig
	Razorpay RazorpayConfig
	Database DatabaseConfig
}

// LoadEnvFiles loads .env files for local development
func LoadEnvFiles() {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return
	}
	// Try multiple locations for .env file
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("environments/.env.development"); err != nil {
			logger.Warn("⚠️  No .env file found - checking environment variables")
		}
	}
}

// Load builds the configuration from the process environment
func Load() *Config {
	cfg := &Config{
		BusinessName:  getEnv("BUSINESS_NAME", "StayFlow"),
		OwnerPhone:    utils.NormalizePhone(os.Getenv("OWNER_PHONE")),
		UPIID:         getEnv("OWNER_UPI_ID", "ownername@upi"),
		RentDueDay:    getInt("MONTHLY_RENT_DUE_DATE", 5),
		EBDueDay:      getInt("EB_DUE_DATE", 10),
		EBUnitRate:    getFloat("EB_UNIT_RATE", 15),
		FormURL:       os.Getenv("GOOGLE_FORM_URL"),
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "production"),
		UseMemory:     os.Getenv("USE_MEMORY_STORE") == "true",
		PaidProvider:  strings.ToLower(getEnv("PAID_PROVIDER", "cloudapi")),
		PublicBaseURL: strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		AdminAPIKey:   os.Getenv("ADMIN_API_KEY"),

		WWebEnabled:   os.Getenv("WWEB_ENABLED") != "false",
		WWebStorePath: getEnv("WWEB_STORE_PATH", "whatsmeow.db"),

		SessionTTL: getDuration("SESSION_TTL", 24*time.Hour),

		UploadsDir:     getEnv("UPLOADS_DIR", "uploads"),
		AssetsDir:      getEnv("ASSETS_DIR", "assets"),
		ActivityDBPath: getEnv("ACTIVITY_DB_PATH", "activity.db"),

		BillCron:          getEnv("BILL_CRON", "0 9 1 * *"),
		ReminderCron:      getEnv("REMINDER_CRON", "0 9 3 * *"),
		FinalReminderCron: getEnv("FINAL_REMINDER_CRON", "0 9 5 * *"),

		DisableWebhookValidation: os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true",
		LogLevel:                 os.Getenv("LOG_LEVEL"),

		WhatsApp: WhatsAppConfig{
			Token:         os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
			APIBase:       getEnv("WHATSAPP_API_BASE", "https://graph.facebook.com/v17.0"),
			RatePerSec:    getFloat("WHATSAPP_RATE_PER_SEC", 20),
		},
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			From:       os.Getenv("TWILIO_WHATSAPP_FROM"),
		},
		LLM: LLMConfig{
			APIKey:          os.Getenv("GROQ_API_KEY"),
			BaseURL:         getEnv("LLM_BASE_URL", "https://api.groq.com/openai"),
			ValidationModel: getEnv("LLM_VALIDATION_MODEL", "llama3-8b-8192"),
			ChatModel:       getEnv("LLM_CHAT_MODEL", "llama-3.3-70b-versatile"),
		},
		Razorpay: RazorpayConfig{
			KeyID:         os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
			WebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		},
		Database: DatabaseConfig{
			User:                   getEnv("DB_USER", "postgres"),
			Password:               os.Getenv("DB_PASS"),
			Name:                   getEnv("DB_NAME", "stayflow"),
			Host:                   getEnv("DB_HOST", "localhost"),
			InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
		},
	}
	return cfg
}

// IsDevelopment reports whether the service runs in local development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsOwner reports whether phone is the configured owner identity.
// Authorization is exact equality of normalized identifiers.
func (c *Config) IsOwner(phone string) bool {
	if c.OwnerPhone == "" {
		return false
	}
	return utils.NormalizePhone(phone) == c.OwnerPhone
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if raw == "0" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("invalid duration, using default", "key", key, "value", raw)
		return fallback
	}
	return d
}
