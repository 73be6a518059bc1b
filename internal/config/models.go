package config

import (
	"strings"
	"time"
)

// LLMConfig represents the configuration for the judgment provider
type LLMConfig struct {
	Provider string
}

// ProviderConfig holds the generation parameters shared by every provider
type ProviderConfig struct {
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	ProviderConfig
	Region string
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	ProviderConfig
	APIKey string
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	ProviderConfig
	APIKey  string
	BaseURL string
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	ListenAddress   string
	ServiceName     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DetectionConfig represents the detection pipeline configuration
type DetectionConfig struct {
	ProviderTimeout time.Duration
	StoreTimeout    time.Duration
	TrustedDomains  []string
	CacheEnabled    bool
	CacheTTL        time.Duration
}

// MySQLConfig holds MySQL connection settings
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// StoreConfig represents the detection store configuration
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQL      MySQLConfig
}

// SMTPConfig represents the SMTP intake configuration
type SMTPConfig struct {
	Enabled          bool
	ListenAddress    string
	BlockPhishing    bool
	ModifySubject    bool
	SubjectPrefix    string
	Timeout          time.Duration
	StatusHeader     string
	ConfidenceHeader string
	LabelHeader      string
	RelayEnabled     bool
	RelayAddress     string
	RelayPort        int
}

// LoggingConfig represents the logger configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: strings.ToLower(c.GetString("llm.provider")),
	}
}

func (c *Config) providerConfig(prefix, modelKey string) ProviderConfig {
	return ProviderConfig{
		ModelName:   c.GetString(prefix + "." + modelKey),
		MaxTokens:   c.GetInt(prefix + ".max_tokens"),
		Temperature: float32(c.GetFloat64(prefix + ".temperature")),
		TopP:        float32(c.GetFloat64(prefix + ".top_p")),
		MaxBodySize: c.GetInt(prefix + ".max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		ProviderConfig: c.providerConfig("bedrock", "model_id"),
		Region:         c.GetString("bedrock.region"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		ProviderConfig: c.providerConfig("gemini", "model_name"),
		APIKey:         c.GetString("gemini.api_key"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		ProviderConfig: c.providerConfig("openai", "model_name"),
		APIKey:         c.GetString("openai.api_key"),
		BaseURL:        c.GetString("openai.base_url"),
	}
}

// GetMaxBodySize returns the body size limit of the selected provider
func (c *Config) GetMaxBodySize() int {
	switch c.GetLLM().Provider {
	case "openai":
		return c.GetOpenAI().MaxBodySize
	case "bedrock":
		return c.GetBedrock().MaxBodySize
	default:
		return c.GetGemini().MaxBodySize
	}
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:   c.GetString("server.listen_address"),
		ServiceName:     c.GetString("server.service_name"),
		ReadTimeout:     c.durationOr("server.read_timeout", 15*time.Second),
		WriteTimeout:    c.durationOr("server.write_timeout", 60*time.Second),
		ShutdownTimeout: c.durationOr("server.shutdown_timeout", 10*time.Second),
		AllowedOrigins:  c.GetStringSlice("server.cors.allowed_origins"),
	}
}

// GetDetection returns the detection pipeline configuration
func (c *Config) GetDetection() DetectionConfig {
	return DetectionConfig{
		ProviderTimeout: c.durationOr("detection.provider_timeout", 30*time.Second),
		StoreTimeout:    c.durationOr("detection.store_timeout", 10*time.Second),
		TrustedDomains:  c.GetStringSlice("detection.trusted_domains"),
		CacheEnabled:    c.GetBool("detection.cache.enabled"),
		CacheTTL:        c.durationOr("detection.cache.ttl", time.Hour),
	}
}

// GetStore returns the detection store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       strings.ToLower(c.GetString("store.type")),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQL: MySQLConfig{
			Host:     c.GetString("store.mysql.host"),
			Port:     c.GetInt("store.mysql.port"),
			User:     c.GetString("store.mysql.user"),
			Password: c.GetString("store.mysql.password"),
			Database: c.GetString("store.mysql.database"),
		},
	}
}

// GetSMTP returns the SMTP intake configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:          c.GetBool("smtp.enabled"),
		ListenAddress:    c.GetString("smtp.listen_address"),
		BlockPhishing:    c.GetBool("smtp.block_phishing"),
		ModifySubject:    c.GetBool("smtp.modify_subject"),
		SubjectPrefix:    c.GetString("smtp.subject_prefix"),
		Timeout:          c.durationOr("smtp.timeout", 45*time.Second),
		StatusHeader:     c.GetString("smtp.headers.status"),
		ConfidenceHeader: c.GetString("smtp.headers.confidence"),
		LabelHeader:      c.GetString("smtp.headers.label"),
		RelayEnabled:     c.GetBool("smtp.relay.enabled"),
		RelayAddress:     c.GetString("smtp.relay.address"),
		RelayPort:        c.GetInt("smtp.relay.port"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  strings.ToLower(c.GetString("logging.level")),
		Format: strings.ToLower(c.GetString("logging.format")),
	}
}
