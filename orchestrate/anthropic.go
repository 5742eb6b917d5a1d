package orchestrate

import (
	"context"
	"encoding/json"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// AnthropicClient adapts the Anthropic Messages API
// (github.com/anthropics/anthropic-sdk-go) to the orchestrator's narrow
// llm.Client contract, mirroring the shape of goa-ai's
// features/model/anthropic adapter: translate the generic request into
// sdk.MessageNewParams, then map text and tool_use content blocks back into
// a Turn.
type AnthropicClient struct {
	client    *sdk.Client
	model     sdk.Model
	maxTokens int64
}

// NewAnthropicClient constructs a Client over the given SDK client, model,
// and completion token cap.
func NewAnthropicClient(client *sdk.Client, model sdk.Model, maxTokens int64) *AnthropicClient {
	return &AnthropicClient{client: client, model: model, maxTokens: maxTokens}
}

// Complete sends systemPrompt and history to Claude and maps the response
// back into a Turn, extracting any tool_use blocks as ToolCalls.
func (a *AnthropicClient) Complete(ctx context.Context, systemPrompt string, history []Message) (Turn, error) {
	messages := make([]sdk.MessageParam, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "user", "tool":
			messages = append(messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case "assistant":
			messages = append(messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	params := sdk.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  messages,
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Turn{}, err
	}

	var turn Turn
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			turn.Text += block.Text
		case "tool_use":
			var args map[string]any
			_ = json.Unmarshal(block.Input, &args)
			turn.ToolCalls = append(turn.ToolCalls, ToolCall{Name: block.Name, Args: args})
		}
	}
	return turn, nil
}

var _ Client = (*AnthropicClient)(nil)
