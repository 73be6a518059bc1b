package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/phishguard/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when the completion has no choices
var ErrEmptyResponse = errors.New("empty response from OpenAI")

const systemPrompt = "You are a cybersecurity expert specializing in phishing detection. Respond only with JSON."

// OpenAIClient is an implementation of the JudgmentProvider interface using OpenAI
type OpenAIClient struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

var _ core.JudgmentProvider = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI client. baseURL may point at any
// OpenAI-compatible endpoint; empty keeps the default.
func NewOpenAIClient(
	apiKey string,
	baseURL string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is not set: %w", core.ErrProviderUnavailable)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return newOpenAIClient(clientConfig, modelName, maxTokens, temperature, topP, logger), nil
}

func newOpenAIClient(clientConfig openai.ClientConfig, modelName string, maxTokens int, temperature, topP float32, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// Name identifies the provider and model
func (c *OpenAIClient) Name() string {
	return "openai/" + c.modelName
}

// Judge sends the prompt as a chat completion and returns the reply text
func (c *OpenAIClient) Judge(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("Received OpenAI response",
		zap.String("model", c.modelName),
		zap.String("completion_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}
