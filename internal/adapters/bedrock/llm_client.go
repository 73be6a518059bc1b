package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/phishguard/internal/core"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when the model answers without any text
var ErrEmptyResponse = errors.New("empty response from Bedrock model")

const anthropicVersion = "bedrock-2023-05-31"

// modelInvoker is the subset of the Bedrock runtime client used here
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// modelFamily selects the request and response body shapes
type modelFamily int

const (
	familyGeneric modelFamily = iota
	familyClaudeLegacy
	familyClaudeMessages
	familyTitan
)

// BedrockClient is an implementation of the JudgmentProvider interface using Amazon Bedrock
type BedrockClient struct {
	client      modelInvoker
	modelID     string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

var _ core.JudgmentProvider = (*BedrockClient)(nil)

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *BedrockClient {
	return &BedrockClient{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// Name identifies the provider and model
func (c *BedrockClient) Name() string {
	return "bedrock/" + c.modelID
}

// Judge invokes the model with the prompt and returns the generated text
func (c *BedrockClient) Judge(ctx context.Context, prompt string) (string, error) {
	family := familyOf(c.modelID)

	payload, err := c.buildRequest(family, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	text, err := parseResponse(family, resp.Body)
	if err != nil {
		return "", err
	}

	c.logger.Debug("Received Bedrock response",
		zap.String("model", c.modelID),
		zap.Int("response_size", len(text)))
	return text, nil
}

// familyOf classifies a model id, including cross-region inference profile ids
func familyOf(modelID string) modelFamily {
	switch {
	case strings.Contains(modelID, "anthropic.claude-v"), strings.Contains(modelID, "anthropic.claude-instant"):
		return familyClaudeLegacy
	case strings.Contains(modelID, "anthropic.claude"):
		return familyClaudeMessages
	case strings.Contains(modelID, "amazon.titan"):
		return familyTitan
	default:
		return familyGeneric
	}
}

func (c *BedrockClient) buildRequest(family modelFamily, prompt string) ([]byte, error) {
	switch family {
	case familyClaudeLegacy:
		return json.Marshal(map[string]any{
			"prompt":               "\n\nHuman: " + prompt + "\n\nAssistant:",
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	case familyClaudeMessages:
		return json.Marshal(map[string]any{
			"anthropic_version": anthropicVersion,
			"max_tokens":        c.maxTokens,
			"temperature":       c.temperature,
			"top_p":             c.topP,
			"messages": []map[string]any{{
				"role": "user",
				"content": []map[string]string{{
					"type": "text",
					"text": prompt,
				}},
			}},
		})
	case familyTitan:
		return json.Marshal(map[string]any{
			"inputText": prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	default:
		return json.Marshal(map[string]any{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
}

func parseResponse(family modelFamily, body []byte) (string, error) {
	var text string

	switch family {
	case familyClaudeLegacy:
		var resp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		text = resp.Completion

	case familyClaudeMessages:
		var resp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		text = sb.String()

	case familyTitan:
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(resp.Results) > 0 {
			text = resp.Results[0].OutputText
		}

	default:
		var resp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			// not JSON at all, hand the raw body to the extractor
			text = string(body)
			break
		}
		switch {
		case resp.Output != "":
			text = resp.Output
		case resp.Text != "":
			text = resp.Text
		case resp.Response != "":
			text = resp.Response
		default:
			text = string(body)
		}
	}

	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
