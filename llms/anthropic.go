package llms

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/conclave-ai/conclave/meeting"
)

// AnthropicProvider implements Provider against the real Anthropic SDK.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
	params Params
}

// NewAnthropicProvider builds an AnthropicProvider from an agent's model config.
func NewAnthropicProvider(cfg meeting.ModelConfig) (*AnthropicProvider, error) {
	if cfg.Credential == "" {
		return nil, &AuthError{Detail: "missing Anthropic API key"}
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model_name is required for the anthropic provider")
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.Credential))

	return &AnthropicProvider{
		client: client,
		model:  cfg.ModelName,
		params: paramsFromConfig(cfg.Parameters),
	}, nil
}

func (p *AnthropicProvider) buildMessages(conversation []Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(conversation))
	for _, t := range conversation {
		block := anthropic.NewTextBlock(t.Content)
		switch t.Role {
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(block))
		default:
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func (p *AnthropicProvider) buildParams(systemPrompt string, conversation []Turn, params Params) anthropic.MessageNewParams {
	maxTokens := int64(4096)
	effective := p.params
	if params.Temperature != nil {
		effective.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		effective.MaxTokens = params.MaxTokens
	}
	if effective.MaxTokens != nil {
		maxTokens = int64(*effective.MaxTokens)
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  p.buildMessages(conversation),
		MaxTokens: maxTokens,
	}
	if systemPrompt != "" {
		req.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if effective.Temperature != nil {
		req.Temperature = anthropic.Float(*effective.Temperature)
	}
	return req
}

// Complete performs a blocking call via Messages.New.
func (p *AnthropicProvider) Complete(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (Completion, error) {
	var result Completion
	err := DefaultRetryPolicy.Do(ctx, func(ctx context.Context) error {
		req := p.buildParams(systemPrompt, conversation, params)
		msg, err := p.client.Messages.New(ctx, req)
		if err != nil {
			return classifyAnthropicErr(err)
		}
		if len(msg.Content) == 0 {
			return &ProviderError{Status: 502, Detail: "empty content blocks in response"}
		}
		var text string
		for _, block := range msg.Content {
			if tb := block.AsAny(); tb != nil {
				if t, ok := tb.(anthropic.TextBlock); ok {
					text += t.Text
				}
			}
		}
		result = Completion{Content: text}
		return nil
	})
	return result, err
}

// Stream performs a streaming call via Messages.NewStreaming.
func (p *AnthropicProvider) Stream(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (<-chan Delta, error) {
	out := make(chan Delta, 16)
	req := p.buildParams(systemPrompt, conversation, params)

	go func() {
		defer close(out)
		stream := p.client.Messages.NewStreaming(ctx, req)
		defer stream.Close()

		var acc anthropic.Message
		for stream.Next() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				out <- Delta{Kind: DeltaError, Err: &NetworkError{Err: err}}
				return
			}

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text != "" {
						out <- Delta{Kind: DeltaContent, Text: delta.Text}
					}
				case anthropic.ThinkingDelta:
					if delta.Thinking != "" {
						out <- Delta{Kind: DeltaReasoning, Text: delta.Thinking}
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			out <- Delta{Kind: DeltaError, Err: classifyAnthropicErr(err)}
			return
		}
		out <- Delta{Kind: DeltaComplete}
	}()

	return out, nil
}

// TestConnection issues a minimal completion to verify the credential.
func (p *AnthropicProvider) TestConnection(ctx context.Context) error {
	_, err := p.Complete(ctx, "", []Turn{{Role: RoleUser, Content: "ping"}}, Params{})
	return err
}

func classifyAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ClassifyHTTPStatus(apiErr.StatusCode, apiErr.Message)
	}
	return &NetworkError{Err: err}
}
