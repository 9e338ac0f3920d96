package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Mpesa      MpesaConfig      `yaml:"mpesa"`
	Payment    PaymentConfig    `yaml:"payment"`
	Booking    BookingConfig    `yaml:"booking"`
	Reschedule RescheduleConfig `yaml:"reschedule"`
	Worker     WorkerConfig     `yaml:"worker"`
	Email      EmailConfig      `yaml:"email"`
}

type HTTPConfig struct {
	Address           string  `yaml:"address"`
	RateLimitPerSec   float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst    int     `yaml:"rate_limit_burst"`
	ShutdownTimeoutMS int     `yaml:"shutdown_timeout_ms"`
	// AllowedOrigins empty means any origin, without credentials.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	// Environment is "production" or "development".
	Environment string `yaml:"environment"`
	Level       string `yaml:"level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type MpesaConfig struct {
	Environment     string `yaml:"environment"`
	BaseURL         string `yaml:"base_url"`
	ConsumerKey     string `yaml:"consumer_key"`
	ConsumerSecret  string `yaml:"consumer_secret"`
	ShortCode       string `yaml:"short_code"`
	Passkey         string `yaml:"passkey"`
	CallbackURL     string `yaml:"callback_url"`
	TransactionType string `yaml:"transaction_type"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

type PaymentConfig struct {
	PollIntervalMS     int `yaml:"poll_interval_ms"`
	PollTimeoutSeconds int `yaml:"poll_timeout_seconds"`
	StatusCacheSeconds int `yaml:"status_cache_seconds"`
	InitiationLockSecs int `yaml:"initiation_lock_seconds"`
}

type BookingConfig struct {
	ItemsCacheTTL        int `yaml:"items_cache_ttl_seconds"`
	LowCapacityThreshold int `yaml:"low_capacity_threshold"`
}

type RescheduleConfig struct {
	MinNoticeHours int `yaml:"min_notice_hours"`
	CalendarDays   int `yaml:"calendar_days"`
}

type WorkerConfig struct {
	ReconcileIntervalSeconds int `yaml:"reconcile_interval_seconds"`
	StaleAfterMinutes        int `yaml:"stale_after_minutes"`
}

type EmailConfig struct {
	From       string `yaml:"from"`
	AdminEmail string `yaml:"admin_email"`
}

// LoadConfig reads the yaml file, then lets the environment (and a local
// .env file, if any) override secrets.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Database.Password, "DATABASE_PASSWORD")
	overrideString(&c.Redis.Password, "REDIS_PASSWORD")
	overrideString(&c.Mpesa.ConsumerKey, "MPESA_CONSUMER_KEY")
	overrideString(&c.Mpesa.ConsumerSecret, "MPESA_CONSUMER_SECRET")
	overrideString(&c.Mpesa.Passkey, "MPESA_PASSKEY")
	overrideString(&c.Mpesa.ShortCode, "MPESA_SHORT_CODE")
	overrideString(&c.Mpesa.CallbackURL, "MPESA_CALLBACK_URL")
	overrideString(&c.Mpesa.Environment, "MPESA_ENVIRONMENT")
	overrideString(&c.Log.Environment, "ENVIRONMENT")
	overrideInt(&c.Database.Port, "DATABASE_PORT")
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.RateLimitPerSec == 0 {
		c.HTTP.RateLimitPerSec = 20
	}
	if c.HTTP.RateLimitBurst == 0 {
		c.HTTP.RateLimitBurst = 40
	}
	if c.HTTP.ShutdownTimeoutMS == 0 {
		c.HTTP.ShutdownTimeoutMS = 5000
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Log.Environment == "" {
		c.Log.Environment = "development"
	}
	if c.Mpesa.Environment == "" {
		c.Mpesa.Environment = "sandbox"
	}
	if c.Payment.PollIntervalMS == 0 {
		c.Payment.PollIntervalMS = 2000
	}
	if c.Payment.PollTimeoutSeconds == 0 {
		c.Payment.PollTimeoutSeconds = 40
	}
	if c.Payment.StatusCacheSeconds == 0 {
		c.Payment.StatusCacheSeconds = 300
	}
	if c.Payment.InitiationLockSecs == 0 {
		c.Payment.InitiationLockSecs = 60
	}
	if c.Booking.ItemsCacheTTL == 0 {
		c.Booking.ItemsCacheTTL = 60
	}
	if c.Booking.LowCapacityThreshold == 0 {
		c.Booking.LowCapacityThreshold = 10
	}
	if c.Reschedule.MinNoticeHours == 0 {
		c.Reschedule.MinNoticeHours = 48
	}
	if c.Reschedule.CalendarDays == 0 {
		c.Reschedule.CalendarDays = 60
	}
	if c.Worker.ReconcileIntervalSeconds == 0 {
		c.Worker.ReconcileIntervalSeconds = 60
	}
	if c.Worker.StaleAfterMinutes == 0 {
		c.Worker.StaleAfterMinutes = 10
	}
	if c.Kafka.BookingEventsTopic == "" {
		c.Kafka.BookingEventsTopic = "booking-events"
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "notifications"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "notification-worker"
	}
}

func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Mpesa.ShortCode == "" {
		return fmt.Errorf("mpesa.short_code is required")
	}
	if c.Mpesa.CallbackURL == "" {
		return fmt.Errorf("mpesa.callback_url is required")
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
