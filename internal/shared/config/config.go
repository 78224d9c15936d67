package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	TwoCheckout TwoCheckoutConfig `mapstructure:"twocheckout"`
	Mailer      MailerConfig      `mapstructure:"mailer"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TwoCheckoutConfig holds the 2Checkout merchant credentials and gate policy.
// Secrets are injected here once at startup; nothing reads the environment
// at request time.
type TwoCheckoutConfig struct {
	MerchantCode string `mapstructure:"merchant_code"`
	SecretWord   string `mapstructure:"secret_word"`
	SecretKey    string `mapstructure:"secret_key"`
	Demo         bool   `mapstructure:"demo"`
	ReturnURL    string `mapstructure:"return_url"`

	// AmountTolerance is the absolute deviation accepted between the
	// provider-reported total and the expected total before a paid
	// transition is allowed. Absorbs provider rounding.
	AmountTolerance string `mapstructure:"amount_tolerance"`
}

// Tolerance returns AmountTolerance as a decimal, defaulting to 0.10.
func (c *TwoCheckoutConfig) Tolerance() decimal.Decimal {
	d, err := decimal.NewFromString(c.AmountTolerance)
	if err != nil || d.IsNegative() {
		return decimal.RequireFromString("0.10")
	}
	return d
}

// MailerConfig holds Mailgun configuration.
type MailerConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Domain   string `mapstructure:"domain"`
	From     string `mapstructure:"from"`
	SiteURL  string `mapstructure:"site_url"`
	Disabled bool   `mapstructure:"disabled"`
}

// WorkerConfig holds post-payment worker configuration.
type WorkerConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// StorageConfig holds static file storage configuration.
type StorageConfig struct {
	StaticDir string `mapstructure:"static_dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/printforge")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("PRINTFORGE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if password := os.Getenv("PRINTFORGE_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("PRINTFORGE_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if word := os.Getenv("PRINTFORGE_TCO_SECRET_WORD"); word != "" {
		cfg.TwoCheckout.SecretWord = word
	}
	if key := os.Getenv("PRINTFORGE_TCO_SECRET_KEY"); key != "" {
		cfg.TwoCheckout.SecretKey = key
	}
	if key := os.Getenv("PRINTFORGE_MAILGUN_API_KEY"); key != "" {
		cfg.Mailer.APIKey = key
	}

	if cfg.TwoCheckout.MerchantCode == "" || cfg.TwoCheckout.SecretWord == "" || cfg.TwoCheckout.SecretKey == "" {
		return nil, fmt.Errorf("twocheckout merchant credentials not configured")
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "printforge")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// 2Checkout defaults
	v.SetDefault("twocheckout.demo", true)
	v.SetDefault("twocheckout.amount_tolerance", "0.10")

	// Mailer defaults
	v.SetDefault("mailer.domain", "mg.printforge.example")
	v.SetDefault("mailer.from", "Printforge <noreply@mg.printforge.example>")
	v.SetDefault("mailer.site_url", "https://printforge.example")

	// Worker defaults
	v.SetDefault("worker.batch_size", 25)

	// Storage defaults
	v.SetDefault("storage.static_dir", "./static")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
