package llms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/conclave-ai/conclave/meeting"
)

// GoogleProvider implements Provider against the real genai SDK.
type GoogleProvider struct {
	client *genai.Client
	model  string
	params Params
}

// NewGoogleProvider builds a GoogleProvider from an agent's model config.
func NewGoogleProvider(cfg meeting.ModelConfig) (*GoogleProvider, error) {
	if cfg.Credential == "" {
		return nil, &AuthError{Detail: "missing Google API key"}
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model_name is required for the google provider")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Credential,
	})
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	return &GoogleProvider{
		client: client,
		model:  cfg.ModelName,
		params: paramsFromConfig(cfg.Parameters),
	}, nil
}

func toGenaiContents(conversation []Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(conversation))
	for _, t := range conversation {
		role := genai.RoleUser
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(t.Content, role))
	}
	return out
}

func (p *GoogleProvider) buildConfig(systemPrompt string, params Params) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	effective := p.params
	if params.Temperature != nil {
		effective.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		effective.MaxTokens = params.MaxTokens
	}
	if effective.Temperature != nil {
		t := float32(*effective.Temperature)
		cfg.Temperature = &t
	}
	if effective.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*effective.MaxTokens)
	}
	return cfg
}

func textFromCandidate(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &ProviderError{Status: 502, Detail: "no candidates in google response"}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// Complete performs a blocking call via Models.GenerateContent.
func (p *GoogleProvider) Complete(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (Completion, error) {
	var result Completion
	err := DefaultRetryPolicy.Do(ctx, func(ctx context.Context) error {
		resp, err := p.client.Models.GenerateContent(ctx, p.model, toGenaiContents(conversation), p.buildConfig(systemPrompt, params))
		if err != nil {
			return classifyGoogleErr(err)
		}
		text, err := textFromCandidate(resp)
		if err != nil {
			return err
		}
		result = Completion{Content: text}
		return nil
	})
	return result, err
}

// Stream performs a streaming call via Models.GenerateContentStream, which
// the genai SDK exposes as a range-over-func iterator rather than a channel.
func (p *GoogleProvider) Stream(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (<-chan Delta, error) {
	out := make(chan Delta, 16)
	contents := toGenaiContents(conversation)
	cfg := p.buildConfig(systemPrompt, params)

	go func() {
		defer close(out)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, cfg) {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err != nil {
				out <- Delta{Kind: DeltaError, Err: classifyGoogleErr(err)}
				return
			}
			text, err := textFromCandidate(resp)
			if err != nil {
				out <- Delta{Kind: DeltaError, Err: err}
				return
			}
			if text != "" {
				out <- Delta{Kind: DeltaContent, Text: text}
			}
		}
		out <- Delta{Kind: DeltaComplete}
	}()

	return out, nil
}

// TestConnection issues a minimal completion to verify the credential.
func (p *GoogleProvider) TestConnection(ctx context.Context) error {
	_, err := p.Complete(ctx, "", []Turn{{Role: RoleUser, Content: "ping"}}, Params{})
	return err
}

func classifyGoogleErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyHTTPStatus(apiErr.Code, apiErr.Message)
	}
	return &NetworkError{Err: err}
}
