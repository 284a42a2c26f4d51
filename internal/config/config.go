// Package config loads the control plane's configuration from a YAML file,
// environment variables, and built-in defaults, using viper exactly as the
// teacher's config package does.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig carries basic process identity.
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

func (a AppConfig) IsProduction() bool { return strings.EqualFold(a.Env, "production") }

// HTTPConfig configures a gin HTTP server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
	SlowRequestWarn time.Duration `mapstructure:"slowRequestWarn"`
	Pprof           PprofConfig   `mapstructure:"pprof"`
}

// PprofConfig toggles the debug profiling endpoints.
type PprofConfig struct {
	Enable bool   `mapstructure:"enable"`
	Prefix string `mapstructure:"prefix"`
}

// LumberjackConfig configures zap's rolling file sink.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// DatabaseConfig configures the embedded SQLite store.
type DatabaseConfig struct {
	Path        string `mapstructure:"path"`
	AutoMigrate bool   `mapstructure:"autoMigrate"`
	BusyTimeout int    `mapstructure:"busyTimeoutMs"`
}

// SerialConfig configures the device serial transport (C3).
type SerialConfig struct {
	BaudRate       int           `mapstructure:"baudRate"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	HistoryEntries int           `mapstructure:"historyEntries"`
}

// SessionConfig configures device-session supervision thresholds.
type SessionConfig struct {
	MaxIdleTime          time.Duration `mapstructure:"maxIdleTime"`
	MaxReconnectAttempts int           `mapstructure:"maxReconnectAttempts"`
	HeartbeatTimeout     time.Duration `mapstructure:"heartbeatTimeout"`
	HeartbeatProbe       time.Duration `mapstructure:"heartbeatProbe"`
	CommandTimeout       time.Duration `mapstructure:"commandTimeout"`
}

// GPIOConfig configures the GPIO driver (C1).
type GPIOConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Chip        string        `mapstructure:"chip"`
	PulseLow    time.Duration `mapstructure:"pulseLow"`
	SettleDelay time.Duration `mapstructure:"settleDelay"`
}

// FirmwareConfig configures the PlatformIO build/upload driver (C7).
type FirmwareConfig struct {
	PIOPath        string        `mapstructure:"pioPath"`
	BuildTimeout   time.Duration `mapstructure:"buildTimeout"`
	UploadTimeout  time.Duration `mapstructure:"uploadTimeout"`
	RediscoverWait time.Duration `mapstructure:"rediscoverWait"`
}

// AuthConfig configures the Google identity gate (C11).
type AuthConfig struct {
	GoogleClientID           string `mapstructure:"googleClientId"`
	AllowInsecureDevFallback bool   `mapstructure:"allowInsecureDevFallback"`
}

// SysMetricsConfig configures the ambient system-metrics sampler.
type SysMetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Config is the top-level configuration for both the hardware and data
// services; each binary reads only the sections it needs.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Serial     SerialConfig     `mapstructure:"serial"`
	Session    SessionConfig    `mapstructure:"session"`
	GPIO       GPIOConfig       `mapstructure:"gpio"`
	Firmware   FirmwareConfig   `mapstructure:"firmware"`
	Auth       AuthConfig       `mapstructure:"auth"`
	SysMetrics SysMetricsConfig `mapstructure:"sysmetrics"`
}

// Load reads configuration from an optional YAML file at path, the
// DACROQ_-prefixed environment, and built-in defaults, in that priority
// order (env overrides file, file overrides defaults).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("dacroq")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("DACROQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if fmt.Sprintf("%T", err) != fmt.Sprintf("%T", notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dacroq-control-plane")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "10s")
	v.SetDefault("http.writeTimeout", "30s")
	v.SetDefault("http.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("http.slowRequestWarn", "1s")
	v.SetDefault("http.pprof.enable", false)
	v.SetDefault("http.pprof.prefix", "/debug/pprof")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/dacroq.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("database.path", "data/dacroq.sqlite3")
	v.SetDefault("database.autoMigrate", true)
	v.SetDefault("database.busyTimeoutMs", 5000)

	v.SetDefault("serial.baudRate", 2_000_000)
	v.SetDefault("serial.readTimeout", "5s")
	v.SetDefault("serial.writeTimeout", "2s")
	v.SetDefault("serial.historyEntries", 100)

	v.SetDefault("session.maxIdleTime", "30s")
	v.SetDefault("session.maxReconnectAttempts", 3)
	v.SetDefault("session.heartbeatTimeout", "30s")
	v.SetDefault("session.heartbeatProbe", "3s")
	v.SetDefault("session.commandTimeout", "5s")

	v.SetDefault("gpio.enabled", true)
	v.SetDefault("gpio.chip", "gpiochip0")
	v.SetDefault("gpio.pulseLow", "1.5s")
	v.SetDefault("gpio.settleDelay", "3s")

	v.SetDefault("firmware.pioPath", "pio")
	v.SetDefault("firmware.buildTimeout", "300s")
	v.SetDefault("firmware.uploadTimeout", "120s")
	v.SetDefault("firmware.rediscoverWait", "3s")

	v.SetDefault("auth.googleClientId", "")
	v.SetDefault("auth.allowInsecureDevFallback", false)

	v.SetDefault("sysmetrics.enabled", true)
	v.SetDefault("sysmetrics.interval", "30s")
}
