package turn

import (
	"context"
	"errors"
	"testing"

	"github.com/conclave-ai/conclave/broadcast"
	"github.com/conclave-ai/conclave/llms"
	"github.com/conclave-ai/conclave/meeting"
)

type fakeProvider struct {
	completion llms.Completion
	completeErr error
	deltas     []llms.Delta
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt string, conversation []llms.Turn, params llms.Params) (llms.Completion, error) {
	if f.completeErr != nil {
		return llms.Completion{}, f.completeErr
	}
	return f.completion, nil
}

func (f *fakeProvider) Stream(ctx context.Context, systemPrompt string, conversation []llms.Turn, params llms.Params) (<-chan llms.Delta, error) {
	out := make(chan llms.Delta, len(f.deltas))
	for _, d := range f.deltas {
		out <- d
	}
	close(out)
	return out, nil
}

func (f *fakeProvider) TestConnection(ctx context.Context) error { return nil }

func fixtureMeeting() (*meeting.Meeting, meeting.Agent) {
	a := meeting.Agent{ID: "a1", Name: "Alice", Role: meeting.Role{Name: "Lead"}}
	b := meeting.Agent{ID: "b1", Name: "Bob", Role: meeting.Role{Name: "Reviewer"}}
	m, _ := meeting.NewMeeting("Topic", []meeting.Agent{a, b}, "user", nil, meeting.Config{SpeakingOrder: meeting.SpeakingOrderSequential})
	return m, a
}

func TestExecuteBlockingAppendsMessage(t *testing.T) {
	m, a := fixtureMeeting()
	provider := &fakeProvider{completion: llms.Completion{Content: "Hello team"}}

	result, err := Execute(context.Background(), provider, m, a, ModeBlocking, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Messages) != 1 || m.Messages[0].Content != "Hello team" {
		t.Fatalf("expected appended message, got %+v", m.Messages)
	}
	if result.Message.SpeakerID != "a1" {
		t.Errorf("expected speaker a1, got %s", result.Message.SpeakerID)
	}
}

func TestExecuteParsesMentions(t *testing.T) {
	m, a := fixtureMeeting()
	provider := &fakeProvider{completion: llms.Completion{Content: "@Bob what do you think?"}}

	result, err := Execute(context.Background(), provider, m, a, ModeBlocking, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.MentionedAgent) != 1 || result.MentionedAgent[0].ID != "b1" {
		t.Fatalf("expected mention resolved to Bob, got %+v", result.MentionedAgent)
	}
	if len(m.Messages[0].Mentions) != 1 {
		t.Fatalf("expected stored mention, got %+v", m.Messages[0].Mentions)
	}
}

func TestExecuteEmptyCompletionFailsWithoutAppend(t *testing.T) {
	m, a := fixtureMeeting()
	provider := &fakeProvider{completion: llms.Completion{Content: "   "}}

	_, err := Execute(context.Background(), provider, m, a, ModeBlocking, nil)
	if err == nil {
		t.Fatal("expected error for empty model output")
	}
	if len(m.Messages) != 0 {
		t.Errorf("expected no message appended, got %d", len(m.Messages))
	}
}

func TestExecuteRejectsWhenNotActive(t *testing.T) {
	m, a := fixtureMeeting()
	m.End()
	provider := &fakeProvider{completion: llms.Completion{Content: "hi"}}

	_, err := Execute(context.Background(), provider, m, a, ModeBlocking, nil)
	if err == nil {
		t.Fatal("expected StateConflict error on ended meeting")
	}
}

func TestExecutePublishesTurnFailedOnProviderError(t *testing.T) {
	m, a := fixtureMeeting()
	provider := &fakeProvider{completeErr: &llms.AuthError{Detail: "bad key"}}
	hub := broadcast.NewHub()
	sub := hub.Subscribe()

	_, err := Execute(context.Background(), provider, m, a, ModeBlocking, hub)
	if err == nil {
		t.Fatal("expected error")
	}
	hub.Close()

	var gotFailed bool
	for ev := range sub.Events() {
		if ev.Type == broadcast.EventTurnFailed {
			gotFailed = true
		}
	}
	if !gotFailed {
		t.Error("expected a turn_failed event")
	}
}

func TestExecuteStreamingAssemblesDeltasAndPublishes(t *testing.T) {
	m, a := fixtureMeeting()
	provider := &fakeProvider{deltas: []llms.Delta{
		{Kind: llms.DeltaReasoning, Text: "thinking..."},
		{Kind: llms.DeltaContent, Text: "Hello "},
		{Kind: llms.DeltaContent, Text: "team"},
		{Kind: llms.DeltaComplete},
	}}
	hub := broadcast.NewHub()
	sub := hub.Subscribe()

	_, err := Execute(context.Background(), provider, m, a, ModeStreaming, hub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Messages[0].Content != "Hello team" {
		t.Fatalf("expected assembled content, got %q", m.Messages[0].Content)
	}
	if m.Messages[0].ReasoningContent != "thinking..." {
		t.Fatalf("expected assembled reasoning, got %q", m.Messages[0].ReasoningContent)
	}
	hub.Close()

	var sawComplete, sawNewMessage bool
	for ev := range sub.Events() {
		if ev.Type == broadcast.EventStreamingDelta && ev.DeltaKind == broadcast.DeltaComplete {
			sawComplete = true
		}
		if ev.Type == broadcast.EventNewMessage {
			sawNewMessage = true
		}
	}
	if !sawComplete || !sawNewMessage {
		t.Errorf("expected both a complete delta and a new_message event, got complete=%v new_message=%v", sawComplete, sawNewMessage)
	}
}

func TestExecuteStreamingErrorDeltaAbortsTurn(t *testing.T) {
	m, a := fixtureMeeting()
	provider := &fakeProvider{deltas: []llms.Delta{
		{Kind: llms.DeltaContent, Text: "partial"},
		{Kind: llms.DeltaError, Err: errors.New("boom")},
	}}

	_, err := Execute(context.Background(), provider, m, a, ModeStreaming, nil)
	if err == nil {
		t.Fatal("expected error from error delta")
	}
	if len(m.Messages) != 0 {
		t.Error("expected no message appended on stream error")
	}
}
