package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the service reads from the environment.
// It is built once in main and handed to the components that need it.
type Config struct {
	Environment    string
	Debug          bool
	Port           string
	AllowedHosts   []string
	UseMemoryStore bool
	SeedSampleData bool

	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	OTP      OTPConfig
	Lockout  LockoutConfig
	Email    EmailConfig
	Twilio   TwilioConfig
	Kafka    KafkaConfig
	Log      LogConfig

	GoogleMapsAPIKey string
	CleanupInterval  time.Duration
}

type DatabaseConfig struct {
	URL                    string
	Host                   string
	Port                   string
	User                   string
	Password               string
	Name                   string
	SSLMode                string
	InstanceConnectionName string
}

type RedisConfig struct {
	URL string
}

type SessionConfig struct {
	TTL          time.Duration
	CookieSecure bool
}

type OTPConfig struct {
	Length  int
	Expiry  time.Duration
	Channel string // "email" or "sms"
}

type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	PhoneNumber       string
	StatusCallbackURL string
}

type KafkaConfig struct {
	Broker        string
	ActivityTopic string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the .env file (if any) and the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		Debug:          getEnvAsBool("DEBUG", false),
		Port:           getEnv("PORT", "8080"),
		AllowedHosts:   getEnvAsList("ALLOWED_HOSTS", []string{"*"}),
		UseMemoryStore: getEnvAsBool("USE_MEMORY_STORE", false),
		SeedSampleData: getEnvAsBool("SEED_SAMPLE_DATA", false),
		Database: DatabaseConfig{
			URL:                    os.Getenv("DATABASE_URL"),
			Host:                   getEnv("DB_HOST", "localhost"),
			Port:                   getEnv("DB_PORT", "5432"),
			User:                   getEnv("DB_USER", "postgres"),
			Password:               os.Getenv("DB_PASS"),
			Name:                   getEnv("DB_NAME", "mechlocator"),
			SSLMode:                getEnv("DB_SSLMODE", "disable"),
			InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Session: SessionConfig{
			TTL:          getEnvAsDuration("SESSION_TTL", time.Hour),
			CookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", false),
		},
		OTP: OTPConfig{
			Length:  getEnvAsInt("OTP_LENGTH", 6),
			Expiry:  time.Duration(getEnvAsInt("OTP_EXPIRY_MINUTES", 10)) * time.Minute,
			Channel: strings.ToLower(getEnv("OTP_CHANNEL", "email")),
		},
		Lockout: LockoutConfig{
			MaxAttempts: getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", 5),
			Window:      getEnvAsDuration("LOCKOUT_WINDOW", time.Hour),
		},
		Email: EmailConfig{
			Host:     getEnv("EMAIL_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("EMAIL_PORT", 587),
			User:     os.Getenv("EMAIL_HOST_USER"),
			Password: os.Getenv("EMAIL_HOST_PASSWORD"),
			From:     getEnv("DEFAULT_FROM_EMAIL", "noreply@mechlocator.com"),
		},
		Twilio: TwilioConfig{
			AccountSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:         os.Getenv("TWILIO_AUTH_TOKEN"),
			PhoneNumber:       os.Getenv("TWILIO_PHONE_NUMBER"),
			StatusCallbackURL: os.Getenv("TWILIO_STATUS_CALLBACK_URL"),
		},
		Kafka: KafkaConfig{
			Broker:        os.Getenv("KAFKA_BROKER"),
			ActivityTopic: getEnv("KAFKA_ACTIVITY_TOPIC", "mechlocator.activity"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		CleanupInterval:  getEnvAsDuration("CLEANUP_INTERVAL", 15*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", c.OTP.Length)
	}
	if c.OTP.Expiry <= 0 {
		return fmt.Errorf("OTP_EXPIRY_MINUTES must be positive")
	}
	if c.OTP.Channel != "email" && c.OTP.Channel != "sms" {
		return fmt.Errorf("OTP_CHANNEL must be email or sms, got %q", c.OTP.Channel)
	}
	if c.Lockout.MaxAttempts <= 0 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.CleanupInterval)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DSN builds the postgres connection string. DATABASE_URL wins when set;
// INSTANCE_CONNECTION_NAME switches to the Cloud SQL unix socket.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.InstanceConnectionName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			d.InstanceConnectionName, d.User, d.Password, d.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

func (e EmailConfig) Configured() bool {
	return e.User != "" && e.Password != ""
}

func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.PhoneNumber != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
