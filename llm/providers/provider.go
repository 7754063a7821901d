// Package providers constructs the chat and embedding models the
// pipeline runs on. Provider outages at construction time are fatal:
// there is no degraded mode without an embedder or generator.
package providers

import (
	"context"
	"fmt"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// ChatModelConfig defines the configuration for creating a chat model.
type ChatModelConfig struct {
	Provider string // "openai" (any OpenAI-compatible endpoint) or "gemini"
	APIKey   string
	BaseURL  string
	Model    string
}

// NewChatModel creates a chat model from the configuration.
func NewChatModel(ctx context.Context, config *ChatModelConfig) (model.ToolCallingChatModel, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required in config")
	}

	switch config.Provider {
	case "", "openai":
		modelName := config.Model
		if modelName == "" {
			modelName = "gpt-4o-mini"
		}
		return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:  config.APIKey,
			BaseURL: config.BaseURL,
			Model:   modelName,
		})
	case "gemini":
		return newGeminiChatModel(ctx, config)
	default:
		return nil, fmt.Errorf("unknown chat provider: %q", config.Provider)
	}
}

// newGeminiChatModel creates a Google Gemini chat model.
func newGeminiChatModel(ctx context.Context, config *ChatModelConfig) (model.ToolCallingChatModel, error) {
	modelName := config.Model
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return geminiModel.NewChatModel(ctx, &geminiModel.Config{
		Client: client,
		Model:  modelName,
	})
}

// EmbeddingConfig defines the configuration for creating an embedding model.
type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ModelID returns the identity tag recorded with every index built from
// this embedder. Two configs with the same ModelID produce comparable
// vectors; everything else must be rejected by the index.
func (c *EmbeddingConfig) ModelID() string {
	modelName := c.Model
	if modelName == "" {
		modelName = "text-embedding-3-small"
	}
	return "openai/" + modelName
}

// NewEmbeddingModel creates an OpenAI-compatible embedding model.
func NewEmbeddingModel(ctx context.Context, config *EmbeddingConfig) (einoEmbedding.Embedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required in config")
	}

	modelName := config.Model
	if modelName == "" {
		modelName = "text-embedding-3-small"
	}

	return openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  config.APIKey,
		BaseURL: config.BaseURL,
		Model:   modelName,
	})
}
