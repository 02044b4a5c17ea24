package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/lektor-ai/lektor-go/internal/rag"
)

// ChatCompleter adapts an eino ChatModel to the rag.Completer contract.
// Generation tuning (max tokens, temperature) is fixed at model construction
// time; per-request overrides are not supported.
type ChatCompleter struct {
	model model.ToolCallingChatModel
}

// NewChatCompleter wraps an already-constructed ChatModel.
func NewChatCompleter(m model.ToolCallingChatModel) *ChatCompleter {
	return &ChatCompleter{model: m}
}

// NewCompleter constructs the chat model for cfg and returns it wrapped as a
// rag.Completer.
func NewCompleter(ctx context.Context, cfg *Config) (*ChatCompleter, error) {
	m, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewChatCompleter(m), nil
}

// Complete generates an answer for the given prompts. Token usage is taken
// from the provider's response metadata when reported.
func (c *ChatCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (rag.Completion, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	resp, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return rag.Completion{}, fmt.Errorf("provider: generate: %w", err)
	}

	completion := rag.Completion{Text: resp.Content}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		completion.TokensUsed = resp.ResponseMeta.Usage.TotalTokens
	}
	return completion, nil
}
