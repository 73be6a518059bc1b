package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. PHISHGUARD_STORE_TYPE
const EnvPrefix = "PHISHGUARD"

// Config represents the application configuration
type Config struct {
	v *viper.Viper

	// LoadErr is set when the .env or config file existed but could not be
	// read and defaults were used instead
	LoadErr error
}

// New creates a new configuration instance. A missing config file is not an
// error; an unreadable one leaves defaults in place and is reported in LoadErr
// so read-only endpoints can still come up.
func New() (*Config, error) {
	// Values from .env never override the real environment. A malformed
	// .env is reported like a malformed config file.
	var envErr error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		envErr = fmt.Errorf("failed to load .env file: %w", err)
	}

	v := NewEmptyViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phishguard/")
	v.AddConfigPath("$HOME/.phishguard")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	cfg := &Config{v: v}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			cfg.v = NewEmptyViper()
			cfg.LoadErr = fmt.Errorf("failed to read config file: %w", err)
		}
	}
	cfg.LoadErr = errors.Join(envErr, cfg.LoadErr)

	return cfg, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults and environment bindings
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	return v
}

// bindLegacyEnv accepts the unprefixed variable names used by earlier
// deployments alongside the prefixed ones
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"gemini.api_key":            "GEMINI_API_KEY",
		"openai.api_key":            "OPENAI_API_KEY",
		"store.mysql.host":          "DB_HOST",
		"store.mysql.port":          "DB_PORT",
		"store.mysql.user":          "DB_USER",
		"store.mysql.password":      "DB_PASSWORD",
		"store.mysql.database":      "DB_NAME",
		"server.listen_address":     "LISTEN_ADDRESS",
		"detection.trusted_domains": "TRUSTED_DOMAINS",
	}
	for key, env := range legacy {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// LLM provider defaults
	v.SetDefault("llm.provider", "gemini")

	// Server defaults
	v.SetDefault("server.listen_address", "0.0.0.0:5000")
	v.SetDefault("server.service_name", "PhishGuard AI Backend")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-2.5-flash")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 8192)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 8192)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 8192)

	// Detection defaults
	v.SetDefault("detection.provider_timeout", "30s")
	v.SetDefault("detection.store_timeout", "10s")
	v.SetDefault("detection.trusted_domains", []string{})
	v.SetDefault("detection.cache.enabled", false)
	v.SetDefault("detection.cache.ttl", "1h")

	// Store defaults
	v.SetDefault("store.type", "mysql")
	v.SetDefault("store.mysql.host", "localhost")
	v.SetDefault("store.mysql.port", 3306)
	v.SetDefault("store.mysql.user", "root")
	v.SetDefault("store.mysql.password", "")
	v.SetDefault("store.mysql.database", "phishguard_ai")
	v.SetDefault("store.sqlite_path", "./data/phishguard.db")

	// SMTP intake defaults
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.listen_address", "0.0.0.0:10026")
	v.SetDefault("smtp.block_phishing", false)
	v.SetDefault("smtp.modify_subject", false)
	v.SetDefault("smtp.subject_prefix", "[PHISHING] ")
	v.SetDefault("smtp.timeout", "45s")
	v.SetDefault("smtp.headers.status", "X-Phish-Status")
	v.SetDefault("smtp.headers.confidence", "X-Phish-Confidence")
	v.SetDefault("smtp.headers.label", "X-Phish-Label")
	v.SetDefault("smtp.relay.enabled", false)
	v.SetDefault("smtp.relay.address", "localhost")
	v.SetDefault("smtp.relay.port", 10027)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration. A single
// comma-separated string, as set through the environment, is split.
func (c *Config) GetStringSlice(key string) []string {
	var values []string
	if raw, ok := c.v.Get(key).(string); ok {
		values = strings.Split(raw, ",")
	} else {
		values = c.v.GetStringSlice(key)
	}

	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// durationOr returns the configured duration, or fallback when it is invalid
func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
