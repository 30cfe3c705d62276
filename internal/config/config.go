package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iamgilwell/proctopo/internal/ordering"
)

// Config is the top-level application configuration.
type Config struct {
	Query         QueryConfig        `mapstructure:"query"`
	Refresh       RefreshConfig      `mapstructure:"refresh"`
	Table         TableConfig        `mapstructure:"table"`
	Server        ServerConfig       `mapstructure:"server"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

type QueryConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Sockets   bool          `mapstructure:"sockets"`
	Protocols []string      `mapstructure:"protocols"`
}

type RefreshConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	TriggerFile string        `mapstructure:"trigger_file"`
	OnStart     bool          `mapstructure:"on_start"`
}

type TableConfig struct {
	Sort []string `mapstructure:"sort"`
}

type ServerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Name     string `mapstructure:"name"`
	Address  string `mapstructure:"address"`
	Port     int    `mapstructure:"port"`
	InfoFile string `mapstructure:"info_file"`
	Metrics  bool   `mapstructure:"metrics"`
}

type NotificationConfig struct {
	LogFile      string `mapstructure:"log_file"`
	AuditFile    string `mapstructure:"audit_file"`
	Verbose      bool   `mapstructure:"verbose"`
	ColorEnabled bool   `mapstructure:"color_enabled"`
}

// DefaultInfoFile is where a running server advertises its address.
func DefaultInfoFile() string {
	return filepath.Join(os.TempDir(), "proctopo.json")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("query.timeout", "10s")
	v.SetDefault("query.sockets", true)
	v.SetDefault("query.protocols", []string{"tcp", "udp"})

	v.SetDefault("refresh.interval", "0s")
	v.SetDefault("refresh.trigger_file", "")
	v.SetDefault("refresh.on_start", true)

	v.SetDefault("table.sort", []string{"name:asc"})

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.name", "tr-process")
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 0)
	v.SetDefault("server.info_file", DefaultInfoFile())
	v.SetDefault("server.metrics", true)

	v.SetDefault("notifications.log_file", "proctopo.log")
	v.SetDefault("notifications.audit_file", "proctopo-audit.log")
	v.SetDefault("notifications.verbose", false)
	v.SetDefault("notifications.color_enabled", true)
}

// Load reads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("PROCTOPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search in current dir, home dir, /etc
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".proctopo"))
		}
		v.AddConfigPath("/etc/proctopo")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := cfg.SortKeys(); err != nil {
		return nil, fmt.Errorf("table.sort: %w", err)
	}
	if cfg.Refresh.Interval < 0 {
		return nil, fmt.Errorf("refresh.interval must not be negative, got %s", cfg.Refresh.Interval)
	}

	return &cfg, nil
}

// SortKeys parses the configured table order.
func (c *Config) SortKeys() ([]ordering.Key, error) {
	return ordering.ParseKeys(c.Table.Sort)
}

// ServerAddr returns the host:port the HTTP server listens on.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Global holds the current loaded configuration.
var Global *Config
