package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Helper    HelperConfig    `mapstructure:"helper"`
	Store     StoreConfig     `mapstructure:"store"`
	Spoof     SpoofConfig     `mapstructure:"spoof"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// Addr returns the host:port the API binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HelperConfig locates the privileged location helper.
type HelperConfig struct {
	Socket        string `mapstructure:"socket"`
	CallTimeoutMS int    `mapstructure:"call_timeout_ms"`
}

// StoreConfig locates the local state database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// SpoofConfig carries the accuracy figures reported with every override.
type SpoofConfig struct {
	HorizontalAccuracyM float64 `mapstructure:"horizontal_accuracy_m"`
	VerticalAccuracyM   float64 `mapstructure:"vertical_accuracy_m"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// GeocoderConfig points at the place search endpoint. An empty endpoint
// selects the public Nominatim instance.
type GeocoderConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults. The API binds loopback: this is a per-user tool, not a
	// network service.
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8417)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("helper.socket", "/tmp/geopin-helper.sock")
	v.SetDefault("helper.call_timeout_ms", 3000)
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("spoof.horizontal_accuracy_m", 5.0)
	v.SetDefault("spoof.vertical_accuracy_m", 10.0)
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("geocoder.endpoint", "")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOPIN_HELPER_SOCKET → helper.socket
	v.SetEnvPrefix("GEOPIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// defaultStorePath puts the state database under the user's config
// directory, falling back to the working directory when none exists.
func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "geopin.db"
	}
	return filepath.Join(dir, "geopin", "state.db")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Host == "" {
		errs = append(errs, "server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Helper.Socket == "" {
		errs = append(errs, "helper.socket is required")
	}
	if c.Helper.CallTimeoutMS <= 0 {
		errs = append(errs, "helper.call_timeout_ms must be positive")
	}
	if c.Store.Path == "" {
		errs = append(errs, "store.path is required")
	}
	if c.Spoof.HorizontalAccuracyM <= 0 {
		errs = append(errs, "spoof.horizontal_accuracy_m must be positive")
	}
	if c.Spoof.VerticalAccuracyM <= 0 {
		errs = append(errs, "spoof.vertical_accuracy_m must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
