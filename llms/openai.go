package llms

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/conclave-ai/conclave/meeting"
)

// OpenAIProvider implements Provider against the real OpenAI SDK.
type OpenAIProvider struct {
	client sdk.Client
	model  string
	params Params
}

// NewOpenAIProvider builds an OpenAIProvider from an agent's model config.
func NewOpenAIProvider(cfg meeting.ModelConfig) (*OpenAIProvider, error) {
	if cfg.Credential == "" {
		return nil, &AuthError{Detail: "missing OpenAI API key"}
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model_name is required for the openai provider")
	}

	client := sdk.NewClient(option.WithAPIKey(cfg.Credential))

	return &OpenAIProvider{
		client: client,
		model:  cfg.ModelName,
		params: paramsFromConfig(cfg.Parameters),
	}, nil
}

func paramsFromConfig(p *meeting.ModelParameters) Params {
	if p == nil {
		return Params{}
	}
	return Params{Temperature: p.Temperature, MaxTokens: p.MaxTokens, TopP: p.TopP}
}

func (p *OpenAIProvider) buildMessages(systemPrompt string, conversation []Turn) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(conversation)+1)
	if systemPrompt != "" {
		out = append(out, sdk.SystemMessage(systemPrompt))
	}
	for _, t := range conversation {
		switch t.Role {
		case RoleSystem:
			out = append(out, sdk.SystemMessage(t.Content))
		case RoleAssistant:
			out = append(out, sdk.AssistantMessage(t.Content))
		default:
			out = append(out, sdk.UserMessage(t.Content))
		}
	}
	return out
}

func (p *OpenAIProvider) buildParams(systemPrompt string, conversation []Turn, params Params) sdk.ChatCompletionNewParams {
	req := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(p.model),
		Messages: p.buildMessages(systemPrompt, conversation),
	}
	effective := p.params
	if params.Temperature != nil {
		effective.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		effective.MaxTokens = params.MaxTokens
	}
	if effective.Temperature != nil {
		req.Temperature = sdk.Float(*effective.Temperature)
	}
	if effective.MaxTokens != nil {
		req.MaxTokens = sdk.Int(int64(*effective.MaxTokens))
	}
	return req
}

// Complete performs a blocking chat completion via Chat.Completions.New.
func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (Completion, error) {
	var result Completion
	err := DefaultRetryPolicy.Do(ctx, func(ctx context.Context) error {
		req := p.buildParams(systemPrompt, conversation, params)
		comp, err := p.client.Chat.Completions.New(ctx, req)
		if err != nil {
			return classifyOpenAIErr(err)
		}
		if len(comp.Choices) == 0 {
			return &ProviderError{Status: 502, Detail: "empty choices in response"}
		}
		result = Completion{Content: comp.Choices[0].Message.Content}
		return nil
	})
	return result, err
}

// Stream performs a streaming chat completion via Chat.Completions.NewStreaming.
func (p *OpenAIProvider) Stream(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (<-chan Delta, error) {
	out := make(chan Delta, 16)
	req := p.buildParams(systemPrompt, conversation, params)

	go func() {
		defer close(out)
		stream := p.client.Chat.Completions.NewStreaming(ctx, req)
		defer stream.Close()

		for stream.Next() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				out <- Delta{Kind: DeltaContent, Text: delta.Content}
			}
		}

		if err := stream.Err(); err != nil {
			out <- Delta{Kind: DeltaError, Err: classifyOpenAIErr(err)}
			return
		}
		out <- Delta{Kind: DeltaComplete}
	}()

	return out, nil
}

// TestConnection issues a minimal completion to verify the credential.
func (p *OpenAIProvider) TestConnection(ctx context.Context) error {
	_, err := p.Complete(ctx, "", []Turn{{Role: RoleUser, Content: "ping"}}, Params{})
	return err
}

func classifyOpenAIErr(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return ClassifyHTTPStatus(apiErr.StatusCode, apiErr.Message)
	}
	return &NetworkError{Err: err}
}
