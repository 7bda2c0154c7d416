//
//
package config

import (
	"fmt"
	"strings"
)

// Validate enforces configuration rules.
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(config.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := validateStorage(config.Storage); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}

	if err := validateSubscriptions(config.Subscriptions); err != nil {
		return fmt.Errorf("subscription validation failed: %w", err)
	}

	if err := validateLogging(config.Logging); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	if config.Audit.Enabled && config.Audit.Dir == "" {
		return fmt.Errorf("audit validation failed: dir is required when audit is enabled")
	}

	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		return fmt.Errorf("metrics validation failed: path %q must start with /", config.Metrics.Path)
	}

	if err := validateTracing(config.Tracing); err != nil {
		return fmt.Errorf("tracing validation failed: %w", err)
	}

	return nil
}

// validateServer validates HTTP listener parameters.
func validateServer(s ServerConfig) error {
	if s.Addr == "" {
		return fmt.Errorf("addr must be set")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", s.ShutdownTimeout)
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", s.MaxBodyBytes)
	}
	return nil
}

// validateStorage validates row store parameters.
func validateStorage(s StorageConfig) error {
	switch s.Driver {
	case "memory":
		return nil
	case "postgres":
	default:
		return fmt.Errorf("invalid driver %q, must be one of: postgres, memory", s.Driver)
	}

	if s.Host == "" {
		return fmt.Errorf("host must be set")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port %d is outside range [1, 65535]", s.Port)
	}
	if s.Database == "" {
		return fmt.Errorf("database must be set")
	}
	if s.MaxConns <= 0 {
		return fmt.Errorf("max conns must be positive, got %d", s.MaxConns)
	}
	if s.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %v", s.ConnectTimeout)
	}
	return nil
}

// validateSubscriptions validates live delivery parameters.
func validateSubscriptions(s SubscriptionConfig) error {
	if s.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", s.QueueSize)
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", s.WriteTimeout)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q, must be text or json", l.Format)
	}
	return nil
}

func validateTracing(t TracingConfig) error {
	if !t.Enabled {
		return nil
	}
	switch strings.ToLower(t.Exporter) {
	case "stdout", "otlp", "otlpgrpc":
	default:
		return fmt.Errorf("unsupported exporter %q", t.Exporter)
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return fmt.Errorf("sample ratio %v is outside range [0, 1]", t.SampleRatio)
	}
	return nil
}
