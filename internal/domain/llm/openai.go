package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"chat-server-go/internal/platform/errors"
	"chat-server-go/internal/platform/logging"
)

const (
	defaultModel       = "gpt-3.5-turbo"
	defaultTemperature = 0.7
	defaultTimeout     = 30 * time.Second

	// PromptTemplate wraps the user's question before it is sent upstream.
	PromptTemplate = "Answer the question: %s"
)

// Config configures the OpenAI-compatible completer.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAICompleter calls a chat completion endpoint once per prompt.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *logging.Logger
}

// NewOpenAI builds a completer. An empty API key is a configuration error.
func NewOpenAI(cfg Config, logger *logging.Logger) (*OpenAICompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New(errors.KindConfig, "llm.new", "llm api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}, nil
}

// Complete sends the prompt wrapped in PromptTemplate and returns the first choice.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (Completion, error) {
	const op = "llm.complete"
	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(PromptTemplate, prompt)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.WarnTag("LLM", "completion failed after %s: %v", time.Since(start), err)
		return Completion{}, errors.Wrap(errors.KindUpstream, op, "text generation failed", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New(errors.KindUpstream, op, "text generation returned no choices")
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	c.logger.DebugTag("LLM", "completion ok model=%s tokens=%d in %s", model, resp.Usage.TotalTokens, time.Since(start))

	return Completion{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
