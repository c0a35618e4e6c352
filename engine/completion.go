package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ari-bc/gpt-semantic-memory/core"
)

// Completion is the stateless completion service: an ordered list of
// role-tagged messages in, a single text blob out. Throttling surfaces as
// core.ErrRateLimited; any other failure is a generic completion error.
type Completion interface {
	Complete(ctx context.Context, messages []core.Message) (string, error)
}

// AnthropicCompletion implements Completion on the Anthropic Messages API.
type AnthropicCompletion struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompletion wraps an Anthropic client for the given model.
func NewAnthropicCompletion(client *anthropic.Client, model string, maxTokens int64) *AnthropicCompletion {
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &AnthropicCompletion{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends the messages and returns the concatenated text blocks of
// the response. System-role messages are folded into the system prompt;
// the API takes them out of band.
func (c *AnthropicCompletion) Complete(ctx context.Context, messages []core.Message) (string, error) {
	var system string
	var params []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += msg.Content
		case core.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  params,
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, req)
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("anthropic: %w", core.ErrRateLimited)
		}
		return "", fmt.Errorf("anthropic: completion: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
