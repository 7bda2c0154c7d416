package config

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Storage       StorageConfig      `yaml:"storage"`
	Subscriptions SubscriptionConfig `yaml:"subscriptions"`
	Logging       LoggingConfig      `yaml:"logging"`
	Audit         AuditConfig        `yaml:"audit"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Tracing       TracingConfig      `yaml:"tracing"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// StorageConfig holds row store connection settings.
type StorageConfig struct {
	Driver         string        `yaml:"driver"` // postgres or memory
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	SSLMode        string        `yaml:"sslMode"`
	MaxConns       int           `yaml:"maxConns"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// SubscriptionConfig holds live subscriber delivery settings.
type SubscriptionConfig struct {
	QueueSize      int           `yaml:"queueSize"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	OriginPatterns []string      `yaml:"originPatterns"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// AuditConfig holds ingestion audit trail settings.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"serviceName"`
	Exporter    string  `yaml:"exporter"` // stdout or otlp
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    8 << 20,
		},
		Storage: StorageConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Database:       "postgres",
			SSLMode:        "disable",
			MaxConns:       10,
			ConnectTimeout: 30 * time.Second,
		},
		Subscriptions: SubscriptionConfig{
			QueueSize:    256,
			WriteTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Audit: AuditConfig{
			Enabled:    true,
			Dir:        "logs",
			MaxSizeMB:  50,
			MaxBackups: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "roadwatch",
			Exporter:    "stdout",
			SampleRatio: 1.0,
		},
	}
}

// DSN returns the PostgreSQL connection URL for the configured database.
func (s StorageConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		Path:   "/" + s.Database,
	}
	if s.Password != "" {
		u.User = url.UserPassword(s.User, s.Password)
	} else if s.User != "" {
		u.User = url.User(s.User)
	}
	if s.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {s.SSLMode}}.Encode()
	}
	return u.String()
}
