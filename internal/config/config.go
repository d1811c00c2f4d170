// Package config provides application configuration management.
package config

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// APIConfig contains API authentication and server settings.
type APIConfig struct {
	AuthEnabled           *bool    `json:"auth_enabled"`
	Keys                  []string `json:"keys"`
	KeyHeader             string   `json:"key_header"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds" validate:"gte=0"`
}

// ImageConfig contains source acquisition and transformation limits.
type ImageConfig struct {
	MaxSourceBytes      int64 `json:"max_source_bytes" validate:"gte=0"`
	FetchTimeoutSeconds int   `json:"fetch_timeout_seconds" validate:"gte=0"`
}

// S3Config contains settings for the S3-compatible cache backend.
type S3Config struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	PathPrefix      string `json:"path_prefix"`
	ForcePathStyle  bool   `json:"force_path_style"`
}

// SchedulerConfig contains settings for a scheduled job.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule" validate:"required_if=Enabled true"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	Enabled    *bool           `json:"enabled"`
	Backend    string          `json:"backend" validate:"omitempty,oneof=memory s3"`
	TTLSeconds int             `json:"ttl_seconds" validate:"gte=0"`
	MaxEntries int             `json:"max_entries" validate:"gte=0"`
	S3         S3Config        `json:"s3"`
	Cleanup    SchedulerConfig `json:"cleanup"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `json:"format" validate:"omitempty,oneof=text json"`
}

// Config represents the complete application configuration.
type Config struct {
	API   APIConfig   `json:"api"`
	Image ImageConfig `json:"image"`
	Cache CacheConfig `json:"cache"`
	Log   LogConfig   `json:"log"`
}

const (
	DefaultKeyHeader             = "X-API-KEY"
	DefaultRequestTimeoutSeconds = 30
	DefaultMaxSourceBytes        = 10 * 1024 * 1024
	DefaultFetchTimeoutSeconds   = 10
	DefaultCacheTTLSeconds       = 3600
	DefaultCacheMaxEntries       = 1024
	DefaultCacheBackend          = "memory"
)

// GetAuthEnabled reports whether API key authorization is active.
// Authorization defaults to enabled; it must be switched off explicitly.
func (c *APIConfig) GetAuthEnabled() bool {
	if c.AuthEnabled == nil {
		return true
	}
	return *c.AuthEnabled
}

// GetKeyHeader returns the request header carrying the API key.
func (c *APIConfig) GetKeyHeader() string {
	return cmp.Or(c.KeyHeader, DefaultKeyHeader)
}

// GetRequestTimeout returns the HTTP request timeout as a Duration.
func (c *APIConfig) GetRequestTimeout() time.Duration {
	return time.Duration(cmp.Or(c.RequestTimeoutSeconds, DefaultRequestTimeoutSeconds)) * time.Second
}

// GetMaxSourceBytes returns the source image size ceiling in bytes.
func (c *ImageConfig) GetMaxSourceBytes() int64 {
	return cmp.Or(c.MaxSourceBytes, DefaultMaxSourceBytes)
}

// GetFetchTimeout returns the outbound image fetch timeout as a Duration.
func (c *ImageConfig) GetFetchTimeout() time.Duration {
	return time.Duration(cmp.Or(c.FetchTimeoutSeconds, DefaultFetchTimeoutSeconds)) * time.Second
}

// GetEnabled reports whether the response cache is active (default on).
func (c *CacheConfig) GetEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// GetBackend returns the configured cache backend name.
func (c *CacheConfig) GetBackend() string {
	return cmp.Or(c.Backend, DefaultCacheBackend)
}

// GetTTL returns how long cached responses stay valid.
func (c *CacheConfig) GetTTL() time.Duration {
	return time.Duration(cmp.Or(c.TTLSeconds, DefaultCacheTTLSeconds)) * time.Second
}

// GetMaxEntries returns the memory backend's entry bound.
func (c *CacheConfig) GetMaxEntries() int {
	return cmp.Or(c.MaxEntries, DefaultCacheMaxEntries)
}

// GetPathPrefix returns the S3 path prefix for constructing object keys.
func (c *S3Config) GetPathPrefix() string {
	prefix := c.PathPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// GetLevel returns the configured log level as an slog.Level.
func (c *LogConfig) GetLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetFormat returns the configured log format ("text" or "json").
func (c *LogConfig) GetFormat() string {
	if strings.EqualFold(c.Format, "json") {
		return "json"
	}
	return "text"
}

// Load loads and validates application configuration. The config file is
// optional: the service runs on defaults plus environment overrides, which
// carry the deployment surface (API_KEY, API_KEY_HEADER, AUTH_ENABLED,
// LOG_LEVEL).
func Load(configPath string) (*Config, error) {
	config := &Config{}

	if configPath == "" {
		if _, err := os.Stat("config.json"); err == nil {
			configPath = "config.json"
		}
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath) //nolint:gosec // config path is validated via CLI flag or default
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}

	return config, nil
}

// applyEnvOverrides layers the environment-supplied settings over the file.
func applyEnvOverrides(config *Config) {
	if keys := os.Getenv("API_KEY"); keys != "" {
		config.API.Keys = splitKeys(keys)
	}

	if header := os.Getenv("API_KEY_HEADER"); header != "" {
		config.API.KeyHeader = header
	}

	if enabled := os.Getenv("AUTH_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			config.API.AuthEnabled = &v
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}

// splitKeys parses a comma-separated key list. Multiple equally valid keys
// support credential rotation without downtime.
func splitKeys(s string) []string {
	var keys []string
	for part := range strings.SplitSeq(s, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// configValidator is the singleton validator instance with custom validations.
var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterStructValidation(validateCacheConfig, CacheConfig{})

	return v
}

// validateCacheConfig checks the S3 backend's required settings, which only
// apply when that backend is selected.
func validateCacheConfig(sl validator.StructLevel) {
	c := sl.Current().Interface().(CacheConfig)
	if c.GetBackend() != "s3" || !c.GetEnabled() {
		return
	}

	if c.S3.Bucket == "" {
		sl.ReportError(c.S3.Bucket, "s3.bucket", "Bucket", "required_for_s3_backend", "")
	}
	if c.S3.Region == "" && c.S3.Endpoint == "" {
		sl.ReportError(c.S3.Region, "s3.region", "Region", "required_without_endpoint", "")
	}
}

// validate validates the configuration using struct tags and struct-level validators.
func validate(config *Config) error {
	if err := configValidator.Struct(config); err != nil {
		return formatErrors(err)
	}
	return nil
}

// formatErrors converts validator errors to user-friendly messages.
func formatErrors(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	var msgs []string
	for _, e := range ve {
		field := strings.ToLower(e.Namespace()[7:]) // Strip "Config." prefix
		msgs = append(msgs, fmt.Sprintf("%s %s", field, tagMessage(e.Tag(), e.Param())))
	}

	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// tagMessage returns an English message for a validation tag.
func tagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "required_if":
		return "is required when enabled"
	case "required_for_s3_backend":
		return "is required when the s3 cache backend is selected"
	case "required_without_endpoint":
		return "is required when no endpoint is specified"
	case "gte":
		return fmt.Sprintf("must be %s or greater", param)
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", param)
	default:
		return fmt.Sprintf("is invalid (%s)", tag)
	}
}
