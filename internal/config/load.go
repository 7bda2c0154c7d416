//
//
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultFile is read when no explicit path is given and it exists.
const DefaultFile = "config.yaml"

// Load merges Defaults() + optional YAML file + environment overrides.
// An empty path falls back to ROADWATCH_CONFIG, then to DefaultFile if present.
func Load(path string) (*Config, error) {
	config := Defaults()

	explicit := path != ""
	if path == "" {
		if envPath := os.Getenv("ROADWATCH_CONFIG"); envPath != "" {
			path = envPath
			explicit = true
		} else {
			path = DefaultFile
		}
	}

	if err := loadFromFile(config, path); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile overlays the YAML file at filename onto config.
func loadFromFile(config *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

// applyEnvOverrides applies POSTGRES_* and ROADWATCH_* environment variables.
func applyEnvOverrides(config *Config) error {
	// Row store connection, same names as the agent deployment scripts
	config.Storage.Host = GetEnvVar("POSTGRES_HOST", config.Storage.Host)
	if val := os.Getenv("POSTGRES_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid POSTGRES_PORT %q: %w", val, err)
		}
		config.Storage.Port = port
	}
	config.Storage.User = GetEnvVar("POSTGRES_USER", config.Storage.User)
	config.Storage.Password = GetEnvVar("POSTGRES_PASSWORD", config.Storage.Password)
	config.Storage.Database = GetEnvVar("POSTGRES_DB", config.Storage.Database)
	config.Storage.Driver = GetEnvVar("ROADWATCH_STORAGE_DRIVER", config.Storage.Driver)

	config.Server.Addr = GetEnvVar("ROADWATCH_ADDR", config.Server.Addr)

	config.Logging.Level = GetEnvVar("ROADWATCH_LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = GetEnvVar("ROADWATCH_LOG_FORMAT", config.Logging.Format)
	config.Logging.File = GetEnvVar("ROADWATCH_LOG_FILE", config.Logging.File)

	config.Subscriptions.QueueSize = GetEnvInt("ROADWATCH_SUBSCRIBER_QUEUE", config.Subscriptions.QueueSize)
	config.Subscriptions.WriteTimeout = GetEnvDuration("ROADWATCH_SUBSCRIBER_WRITE_TIMEOUT", config.Subscriptions.WriteTimeout)
	if val := os.Getenv("ROADWATCH_ORIGIN_PATTERNS"); val != "" {
		config.Subscriptions.OriginPatterns = splitList(val)
	}

	config.Audit.Dir = GetEnvVar("ROADWATCH_AUDIT_DIR", config.Audit.Dir)
	config.Audit.Enabled = GetEnvBool("ROADWATCH_AUDIT_ENABLED", config.Audit.Enabled)

	config.Metrics.Enabled = GetEnvBool("ROADWATCH_METRICS_ENABLED", config.Metrics.Enabled)

	config.Tracing.Enabled = GetEnvBool("ROADWATCH_TRACING_ENABLED", config.Tracing.Enabled)
	config.Tracing.Exporter = GetEnvVar("ROADWATCH_TRACING_EXPORTER", config.Tracing.Exporter)
	config.Tracing.Endpoint = GetEnvVar("ROADWATCH_OTLP_ENDPOINT", config.Tracing.Endpoint)
	config.Tracing.SampleRatio = GetEnvFloat("ROADWATCH_TRACING_SAMPLE_RATIO", config.Tracing.SampleRatio)

	return nil
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration returns the value of an environment variable as a duration with a default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvFloat returns the value of an environment variable as a float64 with a default.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an int with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GetEnvBool returns the value of an environment variable as a bool with a default.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
