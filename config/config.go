package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradebook/pkg/id"
	"github.com/rustyeddy/tradebook/pkg/logger"
)

// EnvPrefix prefixes environment overrides, e.g. TRADEBOOK_STORE_PATH.
const EnvPrefix = "TRADEBOOK"

// Config is the complete tradebook configuration.
type Config struct {
	Store  StoreConfig   `json:"store" yaml:"store" mapstructure:"store"`
	Log    logger.Config `json:"log" yaml:"log" mapstructure:"log"`
	IDs    IDConfig      `json:"ids" yaml:"ids" mapstructure:"ids"`
	Orders OrderConfig   `json:"orders" yaml:"orders" mapstructure:"orders"`
	Server ServerConfig  `json:"server" yaml:"server" mapstructure:"server"`
}

// StoreConfig locates the SQLite journal.
type StoreConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// IDConfig picks the identifier scheme and how often a collision is retried.
type IDConfig struct {
	Scheme      string `json:"scheme" yaml:"scheme" mapstructure:"scheme"` // ulid or uuid
	MaxAttempts int    `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
}

type OrderConfig struct {
	MaxStaleRetries       int  `json:"max_stale_retries" yaml:"max_stale_retries" mapstructure:"max_stale_retries"`
	CreatePositionDefault bool `json:"create_position_default" yaml:"create_position_default" mapstructure:"create_position_default"`
}

// ServerConfig configures `tradebook serve`.
type ServerConfig struct {
	Addr       string `json:"addr" yaml:"addr" mapstructure:"addr"`
	UserHeader string `json:"user_header" yaml:"user_header" mapstructure:"user_header"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "./tradebook.sqlite"},
		Log: logger.Config{
			Level:  "info",
			Format: "text",
		},
		IDs: IDConfig{
			Scheme:      string(id.SchemeULID),
			MaxAttempts: 3,
		},
		Orders: OrderConfig{
			MaxStaleRetries:       5,
			CreatePositionDefault: true,
		},
		Server: ServerConfig{
			Addr:       ":8080",
			UserHeader: "X-User-ID",
		},
	}
}

// Load reads path (YAML or JSON, by extension) over the defaults and then
// applies TRADEBOOK_* environment overrides. An empty path loads defaults
// and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "yml" || ext == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile is Load for a file that must exist.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	return Load(path)
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_file", d.Log.OutputFile)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("ids.scheme", d.IDs.Scheme)
	v.SetDefault("ids.max_attempts", d.IDs.MaxAttempts)

	v.SetDefault("orders.max_stale_retries", d.Orders.MaxStaleRetries)
	v.SetDefault("orders.create_position_default", d.Orders.CreatePositionDefault)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.user_header", d.Server.UserHeader)
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = sonic.ConfigStd.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("log.level %q is not a level", c.Log.Level)
	}
	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	if _, err := id.ForScheme(id.Scheme(c.IDs.Scheme)); err != nil {
		return fmt.Errorf("ids.scheme: %w", err)
	}
	if c.IDs.MaxAttempts < 1 {
		return fmt.Errorf("ids.max_attempts must be at least 1")
	}
	if c.Orders.MaxStaleRetries < 1 {
		return fmt.Errorf("orders.max_stale_retries must be at least 1")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.UserHeader == "" {
		return fmt.Errorf("server.user_header is required")
	}
	return nil
}

// IDGenerator returns the generator for the configured scheme.
func (c *Config) IDGenerator() id.Generator {
	g, err := id.ForScheme(id.Scheme(c.IDs.Scheme))
	if err != nil {
		return id.GeneratorFunc(id.New)
	}
	return g
}
