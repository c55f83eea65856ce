package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/meeting"
)

// glmDefaultBaseURL is Zhipu's OpenAI-compatible chat completions endpoint.
// No Go SDK for GLM exists anywhere in the reference corpus, so this adapter
// speaks its OpenAI-compatible HTTP surface directly, the way the corpus
// itself falls back to raw HTTP for providers without an official SDK.
const glmDefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4/chat/completions"

// GLMProvider implements Provider against GLM's OpenAI-compatible HTTP API.
type GLMProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	params     Params
}

// NewGLMProvider builds a GLMProvider from an agent's model config.
func NewGLMProvider(cfg meeting.ModelConfig) (*GLMProvider, error) {
	if cfg.Credential == "" {
		return nil, &AuthError{Detail: "missing GLM API key"}
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model_name is required for the glm provider")
	}

	return &GLMProvider{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    glmDefaultBaseURL,
		apiKey:     cfg.Credential,
		model:      cfg.ModelName,
		params:     paramsFromConfig(cfg.Parameters),
	}, nil
}

type glmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type glmRequest struct {
	Model       string       `json:"model"`
	Messages    []glmMessage `json:"messages"`
	Stream      bool         `json:"stream"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
}

type glmChoice struct {
	Delta   glmMessage `json:"delta"`
	Message glmMessage `json:"message"`
}

type glmResponse struct {
	Choices []glmChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *GLMProvider) buildRequest(systemPrompt string, conversation []Turn, params Params, stream bool) glmRequest {
	messages := make([]glmMessage, 0, len(conversation)+1)
	if systemPrompt != "" {
		messages = append(messages, glmMessage{Role: "system", Content: systemPrompt})
	}
	for _, t := range conversation {
		role := string(t.Role)
		if t.Role != RoleSystem && t.Role != RoleAssistant {
			role = "user"
		}
		messages = append(messages, glmMessage{Role: role, Content: t.Content})
	}

	effective := p.params
	if params.Temperature != nil {
		effective.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		effective.MaxTokens = params.MaxTokens
	}

	return glmRequest{
		Model:       p.model,
		Messages:    messages,
		Stream:      stream,
		Temperature: effective.Temperature,
		MaxTokens:   effective.MaxTokens,
	}
}

func (p *GLMProvider) doRequest(ctx context.Context, req glmRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode glm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

func classifyGLMStatus(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	var parsed glmResponse
	detail := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
		detail = parsed.Error.Message
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &RateLimitError{RetryAfter: retryAfter, Detail: detail}
	}
	return ClassifyHTTPStatus(resp.StatusCode, detail)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Complete performs a blocking chat completion against the GLM HTTP API.
func (p *GLMProvider) Complete(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (Completion, error) {
	var result Completion
	err := DefaultRetryPolicy.Do(ctx, func(ctx context.Context) error {
		req := p.buildRequest(systemPrompt, conversation, params, false)
		resp, err := p.doRequest(ctx, req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return classifyGLMStatus(resp)
		}
		defer resp.Body.Close()

		var parsed glmResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return &ProviderError{Status: 502, Detail: fmt.Sprintf("decode glm response: %v", err)}
		}
		if len(parsed.Choices) == 0 {
			return &ProviderError{Status: 502, Detail: "empty choices in glm response"}
		}
		result = Completion{Content: parsed.Choices[0].Message.Content}
		return nil
	})
	return result, err
}

// Stream performs a streaming chat completion against the GLM HTTP API,
// parsing its server-sent-events "data: " framing with the "[DONE]" sentinel.
func (p *GLMProvider) Stream(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (<-chan Delta, error) {
	out := make(chan Delta, 16)
	req := p.buildRequest(systemPrompt, conversation, params, true)

	go func() {
		defer close(out)

		resp, err := p.doRequest(ctx, req)
		if err != nil {
			out <- Delta{Kind: DeltaError, Err: err}
			return
		}
		if resp.StatusCode != http.StatusOK {
			out <- Delta{Kind: DeltaError, Err: classifyGLMStatus(resp)}
			return
		}
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					out <- Delta{Kind: DeltaError, Err: &NetworkError{Err: err}}
					return
				}
				out <- Delta{Kind: DeltaComplete}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				out <- Delta{Kind: DeltaComplete}
				return
			}

			var chunk glmResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if text := chunk.Choices[0].Delta.Content; text != "" {
				out <- Delta{Kind: DeltaContent, Text: text}
			}
		}
	}()

	return out, nil
}

// TestConnection issues a minimal completion to verify the credential.
func (p *GLMProvider) TestConnection(ctx context.Context) error {
	_, err := p.Complete(ctx, "", []Turn{{Role: RoleUser, Content: "ping"}}, Params{})
	return err
}
