package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"mmn-tracker/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig selects and parameterises the persistent store backend.
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ProxyConfig captures connectivity to the MMN proxy endpoint.
type ProxyConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// TrackerConfig holds the host-provided defaults used to seed local settings.
type TrackerConfig struct {
	DefaultCommodities []string      `mapstructure:"default_commodities"`
	DefaultUnit        string        `mapstructure:"default_unit"`
	DefaultZip         string        `mapstructure:"default_zip"`
	PollInterval       int           `mapstructure:"poll_interval"`
	MaxRetentionDays   int           `mapstructure:"max_retention_days"`
	ReportWindowDays   int           `mapstructure:"report_window_days"`
	StartupDelay       time.Duration `mapstructure:"startup_delay"`
	AttributionText    string        `mapstructure:"attribution_text"`
}

// AlertingConfig defines notification enablement and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MMN_TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mmn-tracker")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "mmn-tracker.db")
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.max_idle_conns", 5)
	v.SetDefault("storage.conn_max_lifetime", "30m")

	v.SetDefault("proxy.base_url", "https://example.com/wp-json/mmn-proxy/v1")
	v.SetDefault("proxy.request_timeout", "15s")
	v.SetDefault("proxy.user_agent", "mmn-tracker/1.0")

	v.SetDefault("tracker.default_commodities", []string{"corn", "soybeans", "wheat"})
	v.SetDefault("tracker.default_unit", "bushel")
	v.SetDefault("tracker.default_zip", "")
	v.SetDefault("tracker.poll_interval", 60)
	v.SetDefault("tracker.max_retention_days", 365)
	v.SetDefault("tracker.report_window_days", 7)
	v.SetDefault("tracker.startup_delay", "0s")
	v.SetDefault("tracker.attribution_text", "Data provided by USDA MyMarketNews (MMN).")

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_rows", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}
	if c.Proxy.BaseURL == "" {
		return fmt.Errorf("proxy.base_url is required")
	}
	if c.Tracker.PollInterval < 1 {
		return fmt.Errorf("tracker.poll_interval must be at least 1 minute")
	}
	if c.Tracker.MaxRetentionDays < 1 {
		return fmt.Errorf("tracker.max_retention_days must be at least 1 day")
	}
	if c.Tracker.ReportWindowDays < 1 {
		return fmt.Errorf("tracker.report_window_days must be at least 1 day")
	}
	if len(c.Tracker.DefaultCommodities) == 0 {
		return fmt.Errorf("tracker.default_commodities cannot be empty")
	}
	if c.Export.MaxRows <= 0 {
		return fmt.Errorf("export.max_rows must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxRows returns either the CLI override or config default.
func (c *Config) ResolveMaxRows(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRows
}
