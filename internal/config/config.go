package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"musicstore-backend/internal/utils"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"

	LockMemory = "memory"
	LockRedis  = "redis"

	EnvProduction = "production"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Rental    RentalConfig    `yaml:"rental"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	Environment         string `yaml:"environment"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// DatabaseConfig selects the store and holds the settings of both backends
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // "postgres" or "mongodb"
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	Migrate      bool   `yaml:"migrate"`

	MongoURI            string `yaml:"mongo_uri"`
	MongoDatabase       string `yaml:"mongo_database"`
	MongoTimeoutSeconds int    `yaml:"mongo_timeout_seconds"`
	MongoMaxPoolSize    uint64 `yaml:"mongo_max_pool_size"`
}

// RedisConfig backs the distributed reservation lock and the rental number sequence
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig contains rental event publishing settings
type KafkaConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	Retries  int      `yaml:"retries"`
	ClientID string   `yaml:"client_id"`
}

// SendGridConfig contains email service settings
type SendGridConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// RentalConfig contains pricing, numbering and locking settings
type RentalConfig struct {
	NumberPrefix          string  `yaml:"number_prefix"`
	DeliveryFee           float64 `yaml:"delivery_fee"`
	FreeDeliveryThreshold float64 `yaml:"free_delivery_threshold"`
	SetupFee              float64 `yaml:"setup_fee"`
	SetupLineThreshold    int     `yaml:"setup_line_threshold"`
	DepositRate           float64 `yaml:"deposit_rate"`
	QuoteValidityHours    int     `yaml:"quote_validity_hours"`
	LockDriver            string  `yaml:"lock_driver"` // "memory" or "redis"
	LockWaitMillis        int     `yaml:"lock_wait_ms"`
	LockTTLSeconds        int     `yaml:"lock_ttl_seconds"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	MarkOverdueRentals   string `yaml:"mark_overdue_rentals"`
	SendOverdueReminders string `yaml:"send_overdue_reminders"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("APP_ENV"); val != "" {
		c.Server.Environment = val
	}

	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}
	if val := os.Getenv("MONGO_URI"); val != "" {
		c.Database.MongoURI = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
		c.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// Kafka
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = strings.Split(val, ",")
		c.Kafka.Enabled = true
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
		c.SendGrid.Enabled = true
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 15
	}

	// Database validation
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
		if c.Database.MaxOpenConns == 0 {
			c.Database.MaxOpenConns = 25
		}
		if c.Database.MaxIdleConns == 0 {
			c.Database.MaxIdleConns = 5
		}
	case DriverMongoDB:
		if c.Database.MongoURI == "" {
			return fmt.Errorf("mongo uri is required")
		}
		if c.Database.MongoDatabase == "" {
			return fmt.Errorf("mongo database is required")
		}
		if c.Database.MongoTimeoutSeconds == 0 {
			c.Database.MongoTimeoutSeconds = 10
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	// Redis validation
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}

	// Kafka validation
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			c.Kafka.Topic = "rental-events"
		}
		if c.Kafka.Retries == 0 {
			c.Kafka.Retries = 3
		}
		if c.Kafka.ClientID == "" {
			c.Kafka.ClientID = "musicstore-backend"
		}
	}

	// SendGrid validation
	if c.SendGrid.Enabled {
		if c.SendGrid.APIKey == "" {
			return fmt.Errorf("sendgrid api key is required when sendgrid is enabled")
		}
		if c.SendGrid.FromEmail == "" {
			return fmt.Errorf("sendgrid from email is required when sendgrid is enabled")
		}
		if c.SendGrid.FromName == "" {
			c.SendGrid.FromName = "Music Store"
		}
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	// Rental defaults
	defaults := utils.DefaultPricingPolicy()
	if c.Rental.NumberPrefix == "" {
		c.Rental.NumberPrefix = "ALQ"
	}
	if c.Rental.DeliveryFee == 0 {
		c.Rental.DeliveryFee = defaults.DeliveryFee.InexactFloat64()
	}
	if c.Rental.FreeDeliveryThreshold == 0 {
		c.Rental.FreeDeliveryThreshold = defaults.FreeDeliveryThreshold.InexactFloat64()
	}
	if c.Rental.SetupFee == 0 {
		c.Rental.SetupFee = defaults.SetupFee.InexactFloat64()
	}
	if c.Rental.SetupLineThreshold == 0 {
		c.Rental.SetupLineThreshold = defaults.SetupLineThreshold
	}
	if c.Rental.DepositRate == 0 {
		c.Rental.DepositRate = defaults.DepositRate.InexactFloat64()
	}
	if c.Rental.DepositRate < 0 || c.Rental.DepositRate > 1 {
		return fmt.Errorf("deposit rate must be between 0 and 1: %v", c.Rental.DepositRate)
	}
	if c.Rental.QuoteValidityHours == 0 {
		c.Rental.QuoteValidityHours = int(defaults.QuoteValidity / time.Hour)
	}
	if c.Rental.LockDriver == "" {
		c.Rental.LockDriver = LockMemory
	}
	if c.Rental.LockDriver != LockMemory && c.Rental.LockDriver != LockRedis {
		return fmt.Errorf("unsupported lock driver: %s", c.Rental.LockDriver)
	}
	if c.Rental.LockDriver == LockRedis && !c.Redis.Enabled {
		return fmt.Errorf("lock driver redis requires redis to be enabled")
	}
	if c.Rental.LockWaitMillis == 0 {
		c.Rental.LockWaitMillis = 2000
	}
	if c.Rental.LockTTLSeconds == 0 {
		c.Rental.LockTTLSeconds = 10
	}

	// Scheduler defaults
	if c.Scheduler.MarkOverdueRentals == "" {
		c.Scheduler.MarkOverdueRentals = "0 0 2 * * *" // 2 AM UTC
	}
	if c.Scheduler.SendOverdueReminders == "" {
		c.Scheduler.SendOverdueReminders = "0 0 9 * * *" // 9 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsProduction reports whether internal error details must be hidden from clients
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

// PricingPolicy converts the rental section into the fee rules used by quotes and rentals
func (r RentalConfig) PricingPolicy() utils.PricingPolicy {
	return utils.PricingPolicy{
		DeliveryFee:           decimal.NewFromFloat(r.DeliveryFee),
		FreeDeliveryThreshold: decimal.NewFromFloat(r.FreeDeliveryThreshold),
		SetupFee:              decimal.NewFromFloat(r.SetupFee),
		SetupLineThreshold:    r.SetupLineThreshold,
		DepositRate:           decimal.NewFromFloat(r.DepositRate),
		QuoteValidity:         time.Duration(r.QuoteValidityHours) * time.Hour,
	}
}

func (r RentalConfig) LockWait() time.Duration {
	return time.Duration(r.LockWaitMillis) * time.Millisecond
}

func (r RentalConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}
