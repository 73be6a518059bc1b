package di

import (
	"flag"
	"io"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishguard/internal/adapters/filter"
	"github.com/mikey/phishguard/internal/adapters/store"
	"github.com/mikey/phishguard/internal/config"
	"github.com/mikey/phishguard/internal/core"
	"github.com/mikey/phishguard/internal/logging"
	"github.com/mikey/phishguard/internal/utils"
	"github.com/mikey/phishguard/internal/whitelist"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string
	OpenAIBaseURL   string

	// Detection flags
	TrustedDomains string

	// Input flags
	InputFile  string
	URL        string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags(fs *flag.FlagSet, args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}

	// LLM provider flags
	fs.StringVar(&flags.Provider, "provider", "gemini", "Judgment provider (bedrock, gemini, openai)")
	fs.IntVar(&flags.MaxTokens, "max-tokens", 1000, "Maximum tokens for the model response")
	fs.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for generation")
	fs.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for generation")
	fs.IntVar(&flags.MaxBodySize, "max-body-size", 8192, "Maximum email body size sent to the model")

	// Bedrock flags
	fs.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	fs.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	fs.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-2.5-flash", "Gemini model name")

	// OpenAI flags
	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	fs.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4o-mini", "OpenAI model name")
	fs.StringVar(&flags.OpenAIBaseURL, "openai-base-url", "", "OpenAI-compatible endpoint")

	// Detection flags
	fs.StringVar(&flags.TrustedDomains, "trusted", "", "Comma-separated list of trusted sender domains")

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.StringVar(&flags.URL, "url", "", "Analyze a URL instead of an email")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// BuildCLIContainer creates a container for one-shot detections. Events are
// kept in memory only.
func BuildCLIContainer(flags *CLIFlags, out io.Writer) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			v := config.NewEmptyViper()
			v.SetConfigFile(flags.ConfigFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", v.ConfigFileUsed()))
			return config.NewFromViper(v), nil
		}
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register detection service with an in-memory store
	if err := container.Provide(func(
		provider core.JudgmentProvider,
		textProcessor *utils.TextProcessor,
		trusted *whitelist.Checker,
		cfg *config.Config,
		logger *zap.Logger,
	) *core.DetectionService {
		return core.NewDetectionService(provider, store.NewMemoryStore(logger), textProcessor, trusted, nil, logger, serviceConfig(cfg))
	}); err != nil {
		return nil, err
	}

	// Register CLI filter
	if err := container.Provide(func(service *core.DetectionService, logger *zap.Logger, flags *CLIFlags) *filter.CliFilter {
		return filter.NewCliFilter(service, out, logger, flags.Verbose)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
	case "gemini":
		if flags.GeminiAPIKey != "" {
			v.Set("gemini.api_key", flags.GeminiAPIKey)
		}
		v.Set("gemini.model_name", flags.GeminiModelName)
	case "openai":
		if flags.OpenAIAPIKey != "" {
			v.Set("openai.api_key", flags.OpenAIAPIKey)
		}
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.base_url", flags.OpenAIBaseURL)
	}

	for _, prefix := range []string{"bedrock", "gemini", "openai"} {
		v.Set(prefix+".max_tokens", flags.MaxTokens)
		v.Set(prefix+".temperature", flags.Temperature)
		v.Set(prefix+".top_p", flags.TopP)
		v.Set(prefix+".max_body_size", flags.MaxBodySize)
	}

	if flags.TrustedDomains != "" {
		v.Set("detection.trusted_domains", flags.TrustedDomains)
	}

	return config.NewFromViper(v)
}
