package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Sales    SalesConfig    `yaml:"sales"`
	Refunds  RefundsConfig  `yaml:"refunds"`
	Redis    RedisConfig    `yaml:"redis"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// RateLimit uses the limiter format, e.g. "600-M". Empty disables limiting.
	RateLimit string `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type SalesConfig struct {
	InvoicePrefix    string `yaml:"invoice_prefix"`
	TaxPolicy        string `yaml:"tax_policy"`
	RoundGrandTotal  bool   `yaml:"round_grand_total"`
	MaxRetryAttempts int    `yaml:"max_retry_attempts"`
	PhoneRegion      string `yaml:"phone_region"`
}

type RefundsConfig struct {
	Prefix string `yaml:"prefix"`
}

type RedisConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	Channel        string        `yaml:"channel"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

type AlertsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// ApplyDefaults fills every zero value that has a sensible default. Both loaders call it.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 30 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if c.Database.TxTimeout == 0 {
		c.Database.TxTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Sales.InvoicePrefix == "" {
		c.Sales.InvoicePrefix = "INV"
	}
	if c.Sales.TaxPolicy == "" {
		c.Sales.TaxPolicy = "INTRA_STATE"
	}
	if c.Sales.MaxRetryAttempts <= 0 {
		c.Sales.MaxRetryAttempts = 3
	}
	if c.Sales.PhoneRegion == "" {
		c.Sales.PhoneRegion = "IN"
	}
	if c.Refunds.Prefix == "" {
		c.Refunds.Prefix = "REF"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "cashdesk.events"
	}
	if c.Redis.PublishTimeout == 0 {
		c.Redis.PublishTimeout = 500 * time.Millisecond
	}
	if c.Alerts.Interval == 0 {
		c.Alerts.Interval = 5 * time.Minute
	}
	if c.Alerts.LockTTL == 0 {
		c.Alerts.LockTTL = c.Alerts.Interval
	}
}

func (c *Config) Validate() error {
	switch c.Sales.TaxPolicy {
	case "INTRA_STATE", "INTER_STATE":
	default:
		return fmt.Errorf("sales.tax_policy must be INTRA_STATE or INTER_STATE, got %q", c.Sales.TaxPolicy)
	}
	if c.Alerts.Enabled && c.Alerts.Interval < time.Second {
		return fmt.Errorf("alerts.interval must be at least 1s, got %s", c.Alerts.Interval)
	}
	return nil
}

func Load() (*Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "10s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "30s")
	viper.SetDefault("SERVER_RATE_LIMIT", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 3306)
	viper.SetDefault("DB_USER", "cashdesk")
	viper.SetDefault("DB_PASSWORD", "secret")
	viper.SetDefault("DB_NAME", "cashdesk")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("DB_TX_TIMEOUT", "5s")
	viper.SetDefault("DB_AUTO_MIGRATE", false)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_DEVELOPMENT", false)
	viper.SetDefault("SALES_INVOICE_PREFIX", "INV")
	viper.SetDefault("SALES_TAX_POLICY", "INTRA_STATE")
	viper.SetDefault("SALES_ROUND_GRAND_TOTAL", false)
	viper.SetDefault("SALES_MAX_RETRY_ATTEMPTS", 3)
	viper.SetDefault("SALES_PHONE_REGION", "IN")
	viper.SetDefault("REFUNDS_PREFIX", "REF")
	viper.SetDefault("REDIS_ENABLED", false)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_CHANNEL", "cashdesk.events")
	viper.SetDefault("REDIS_PUBLISH_TIMEOUT", "500ms")
	viper.SetDefault("ALERTS_ENABLED", false)
	viper.SetDefault("ALERTS_INTERVAL", "5m")
	viper.SetDefault("ALERTS_LOCK_TTL", "5m")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetInt("SERVER_PORT"),
			ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
			RateLimit:    viper.GetString("SERVER_RATE_LIMIT"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Name:            viper.GetString("DB_NAME"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			TxTimeout:       viper.GetDuration("DB_TX_TIMEOUT"),
			AutoMigrate:     viper.GetBool("DB_AUTO_MIGRATE"),
		},
		Log: LogConfig{
			Level:       viper.GetString("LOG_LEVEL"),
			Development: viper.GetBool("LOG_DEVELOPMENT"),
		},
		Sales: SalesConfig{
			InvoicePrefix:    viper.GetString("SALES_INVOICE_PREFIX"),
			TaxPolicy:        viper.GetString("SALES_TAX_POLICY"),
			RoundGrandTotal:  viper.GetBool("SALES_ROUND_GRAND_TOTAL"),
			MaxRetryAttempts: viper.GetInt("SALES_MAX_RETRY_ATTEMPTS"),
			PhoneRegion:      viper.GetString("SALES_PHONE_REGION"),
		},
		Refunds: RefundsConfig{
			Prefix: viper.GetString("REFUNDS_PREFIX"),
		},
		Redis: RedisConfig{
			Enabled:        viper.GetBool("REDIS_ENABLED"),
			Addr:           viper.GetString("REDIS_ADDR"),
			Password:       viper.GetString("REDIS_PASSWORD"),
			DB:             viper.GetInt("REDIS_DB"),
			Channel:        viper.GetString("REDIS_CHANNEL"),
			PublishTimeout: viper.GetDuration("REDIS_PUBLISH_TIMEOUT"),
		},
		Alerts: AlertsConfig{
			Enabled:  viper.GetBool("ALERTS_ENABLED"),
			Interval: viper.GetDuration("ALERTS_INTERVAL"),
			LockTTL:  viper.GetDuration("ALERTS_LOCK_TTL"),
		},
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
