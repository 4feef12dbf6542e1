package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Env holds every runtime setting. Values come from config.yaml (optional)
// and are overridden by environment variables.
type Env struct {
	AppAddr     string `mapstructure:"APP_ADDR"`
	AppEnv      string `mapstructure:"APP_ENV"`
	GinMode     string `mapstructure:"GIN_MODE"`
	CORSOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RateLimit   int    `mapstructure:"RATE_LIMIT_PER_MIN"`

	Storage  string `mapstructure:"STORAGE"`
	DBDSN    string `mapstructure:"DB_DSN"`
	DBSchema bool   `mapstructure:"DB_AUTO_MIGRATE"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	SnapshotTTL   time.Duration `mapstructure:"SNAPSHOT_TTL"`

	MaxSeatsPerBooking int           `mapstructure:"MAX_SEATS_PER_BOOKING"`
	PendingTimeout     time.Duration `mapstructure:"PENDING_TIMEOUT"`
	SweepSchedule      string        `mapstructure:"SWEEP_SCHEDULE"`
	ReminderSchedule   string        `mapstructure:"REMINDER_SCHEDULE"`
	ReminderLead       time.Duration `mapstructure:"REMINDER_LEAD"`

	LoyaltyEarnRate   string `mapstructure:"LOYALTY_EARN_RATE"`
	LoyaltyPointValue string `mapstructure:"LOYALTY_POINT_VALUE"`

	TicketSecret   string        `mapstructure:"TICKET_SECRET"`
	BoardingWindow time.Duration `mapstructure:"BOARDING_WINDOW"`
	BoardingGrace  time.Duration `mapstructure:"BOARDING_GRACE"`

	Currency          string        `mapstructure:"CURRENCY"`
	MinorUnitFactor   int64         `mapstructure:"MINOR_UNIT_FACTOR"`
	PaymentTimeout    time.Duration `mapstructure:"PAYMENT_TIMEOUT"`
	StripeSecretKey   string        `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookKey  string        `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripeAPIURL      string        `mapstructure:"STRIPE_API_URL"`
	PaystackSecretKey string        `mapstructure:"PAYSTACK_SECRET_KEY"`
	PaystackBaseURL   string        `mapstructure:"PAYSTACK_BASE_URL"`
	PaystackCallback  string        `mapstructure:"PAYSTACK_CALLBACK_URL"`
	BankName          string        `mapstructure:"BANK_NAME"`
	BankAccountName   string        `mapstructure:"BANK_ACCOUNT_NAME"`
	BankAccountNumber string        `mapstructure:"BANK_ACCOUNT_NUMBER"`
	ReceiptMaxBytes   int64         `mapstructure:"RECEIPT_MAX_BYTES"`

	JWTSecret  string `mapstructure:"JWT_SECRET"`
	StaffUsers string `mapstructure:"STAFF_USERS"`
}

// IsProduction switches logging to the JSON production encoder.
func (e Env) IsProduction() bool {
	return strings.EqualFold(e.AppEnv, "production")
}

// UsesMemoryStore reports whether the in-process store replaces MySQL.
func (e Env) UsesMemoryStore() bool {
	return strings.EqualFold(strings.TrimSpace(e.Storage), "memory")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("GIN_MODE", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173")
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)

	v.SetDefault("STORAGE", "mysql")
	v.SetDefault("DB_DSN", "root:@tcp(127.0.0.1:3306)/busbook?parseTime=true&loc=UTC&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SNAPSHOT_TTL", "30s")

	v.SetDefault("MAX_SEATS_PER_BOOKING", 6)
	v.SetDefault("PENDING_TIMEOUT", "30m")
	v.SetDefault("SWEEP_SCHEDULE", "@every 1m")
	v.SetDefault("REMINDER_SCHEDULE", "@every 5m")
	v.SetDefault("REMINDER_LEAD", "3h")

	v.SetDefault("LOYALTY_EARN_RATE", "0.01")
	v.SetDefault("LOYALTY_POINT_VALUE", "1")

	v.SetDefault("TICKET_SECRET", "change-me-ticket-secret")
	v.SetDefault("BOARDING_WINDOW", "2h")
	v.SetDefault("BOARDING_GRACE", "5m")

	v.SetDefault("CURRENCY", "ngn")
	v.SetDefault("MINOR_UNIT_FACTOR", 100)
	v.SetDefault("PAYMENT_TIMEOUT", "10s")
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("STRIPE_API_URL", "")
	v.SetDefault("PAYSTACK_SECRET_KEY", "")
	v.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	v.SetDefault("PAYSTACK_CALLBACK_URL", "")
	v.SetDefault("BANK_NAME", "")
	v.SetDefault("BANK_ACCOUNT_NAME", "")
	v.SetDefault("BANK_ACCOUNT_NUMBER", "")
	v.SetDefault("RECEIPT_MAX_BYTES", 5<<20)

	v.SetDefault("JWT_SECRET", "super-secret-key-change-me")
	v.SetDefault("STAFF_USERS", "")
}

// LoadEnv reads config.yaml from . or ./config when present, then applies
// environment overrides.
func LoadEnv() Env {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("no config file found, using environment variables only")
	}

	var env Env
	if err := v.Unmarshal(&env); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return env
}

// DefaultEnv returns the defaults without reading files or the environment.
func DefaultEnv() Env {
	v := viper.New()
	setDefaults(v)
	var env Env
	_ = v.Unmarshal(&env)
	return env
}

// StaffAccount is a login allowed to use scanner and admin routes.
type StaffAccount struct {
	Username     string
	Role         string
	PasswordHash string
}

// StaffAccounts parses STAFF_USERS in the form
// "username:role:bcrypt-hash,username:role:bcrypt-hash".
func (e Env) StaffAccounts() map[string]StaffAccount {
	out := map[string]StaffAccount{}
	for _, entry := range strings.Split(e.StaffUsers, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			continue
		}
		out[strings.ToLower(parts[0])] = StaffAccount{
			Username:     parts[0],
			Role:         strings.ToLower(parts[1]),
			PasswordHash: parts[2],
		}
	}
	return out
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS.
func (e Env) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(e.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
