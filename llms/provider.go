// Package llms defines the model-adapter contract (§4.2) and provides one
// implementation per supported provider: OpenAI and Anthropic against
// their official SDKs, Google against the genai SDK, and GLM against its
// OpenAI-compatible HTTP surface.
package llms

import "context"

// TurnRole tags one entry of a conversation passed to a provider.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
	RoleSystem    TurnRole = "system"
)

// Turn is one entry of the conversation given to a provider.
type Turn struct {
	Role    TurnRole
	Content string
}

// Params carries optional per-call generation tuning.
type Params struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// Completion is the result of a non-streaming call.
type Completion struct {
	Content          string
	ReasoningContent string
}

// DeltaKind tags one element of a streaming response.
type DeltaKind string

const (
	DeltaReasoning DeltaKind = "reasoning"
	DeltaContent   DeltaKind = "content"
	DeltaComplete  DeltaKind = "complete"
	DeltaError     DeltaKind = "error"
)

// Delta is one element of a streaming model response.
type Delta struct {
	Kind DeltaKind
	Text string
	Err  error
}

// Provider is the contract every model-provider adapter satisfies.
type Provider interface {
	// Complete performs a blocking, non-streaming chat completion.
	Complete(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (Completion, error)
	// Stream performs a streaming chat completion. The returned channel is
	// finite: it is closed after a Complete or Error delta is sent, or as
	// soon as the adapter observes that ctx is cancelled, in which case no
	// terminal delta may be sent.
	Stream(ctx context.Context, systemPrompt string, conversation []Turn, params Params) (<-chan Delta, error)
	// TestConnection verifies credentials and connectivity by issuing a
	// short Complete call with a one-word prompt.
	TestConnection(ctx context.Context) error
}
