package llm

import "context"

// Completer turns a user prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Completion is the result of one generation call.
type Completion struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Usage reports token accounting as returned by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (Completion, error) {
	return f(ctx, prompt)
}
