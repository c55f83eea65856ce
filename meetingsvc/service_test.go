package meetingsvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/conclave-ai/conclave/broadcast"
	"github.com/conclave-ai/conclave/llms"
	"github.com/conclave-ai/conclave/meeting"
	"github.com/conclave-ai/conclave/selector"
	"github.com/conclave-ai/conclave/store"
	"github.com/conclave-ai/conclave/turn"
)

// scriptedProvider answers Complete/Stream from a queued script, repeating
// the final entry once exhausted so chained turns never run dry.
type scriptedProvider struct {
	mu               sync.Mutex
	completions      []string
	callIdx          int
	streamBatches    [][]llms.Delta
	streamIdx        int
	blockUntilCancel bool
	lastConversation []llms.Turn
}

func (p *scriptedProvider) Complete(ctx context.Context, systemPrompt string, conversation []llms.Turn, params llms.Params) (llms.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastConversation = conversation
	if len(p.completions) == 0 {
		return llms.Completion{}, nil
	}
	idx := p.callIdx
	if idx >= len(p.completions) {
		idx = len(p.completions) - 1
	}
	p.callIdx++
	return llms.Completion{Content: p.completions[idx]}, nil
}

func (p *scriptedProvider) Stream(ctx context.Context, systemPrompt string, conversation []llms.Turn, params llms.Params) (<-chan llms.Delta, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var batch []llms.Delta
	if len(p.streamBatches) > 0 {
		idx := p.streamIdx
		if idx >= len(p.streamBatches) {
			idx = len(p.streamBatches) - 1
		}
		batch = p.streamBatches[idx]
		p.streamIdx++
	}

	out := make(chan llms.Delta, len(batch)+1)
	for _, d := range batch {
		if d.Kind != llms.DeltaComplete || !p.blockUntilCancel {
			out <- d
		}
	}

	if p.blockUntilCancel {
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	}

	close(out)
	return out, nil
}

func (p *scriptedProvider) TestConnection(ctx context.Context) error { return nil }

// fakeResolver keys providers by ModelConfig.Credential, which the test
// agents carry unchanged as their own id for lookup convenience.
type fakeResolver map[string]llms.Provider

func (r fakeResolver) For(cfg meeting.ModelConfig) (llms.Provider, error) {
	p, ok := r[cfg.Credential]
	if !ok {
		return nil, meeting.NewError(meeting.KindValidation, "meetingsvc", "resolve_provider", "no provider scripted for credential "+cfg.Credential, nil)
	}
	return p, nil
}

func newAgent(id, name string) meeting.Agent {
	return meeting.Agent{
		ID:   id,
		Name: name,
		Role: meeting.Role{Name: "Participant"},
		ModelConfig: meeting.ModelConfig{
			Provider:   meeting.ProviderOpenAI,
			ModelName:  "test-model",
			Credential: id,
		},
	}
}

func newTestService(t *testing.T, resolver fakeResolver) (*Service, store.Store) {
	t.Helper()
	s := store.NewMemStore()
	return New(s, resolver, nil), s
}

func saveAgents(t *testing.T, s store.Store, agents ...meeting.Agent) {
	t.Helper()
	for i := range agents {
		if err := s.SaveAgent(&agents[i]); err != nil {
			t.Fatalf("save agent: %v", err)
		}
	}
}

// Scenario 1: sequential round, three agents.
func TestRunRoundSequentialThreeAgents(t *testing.T) {
	a, b, c := newAgent("a1", "Alice"), newAgent("b1", "Bob"), newAgent("c1", "Carol")
	resolver := fakeResolver{
		"a1": &scriptedProvider{completions: []string{"Alice's point."}},
		"b1": &scriptedProvider{completions: []string{"Bob's point."}},
		"c1": &scriptedProvider{completions: []string{"Carol's point."}},
	}
	svc, st := newTestService(t, resolver)
	saveAgents(t, st, a, b, c)

	m, err := svc.CreateMeeting("Roadmap", []string{"a1", "b1", "c1"}, "user", nil, meeting.Config{SpeakingOrder: meeting.SpeakingOrderSequential})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	sub := svc.SubscribeEvents(m.ID)
	final, err := svc.RunRound(context.Background(), m.ID, turn.ModeBlocking)
	if err != nil {
		t.Fatalf("run round: %v", err)
	}

	if len(final.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(final.Messages))
	}
	wantOrder := []string{"a1", "b1", "c1"}
	for i, id := range wantOrder {
		if final.Messages[i].SpeakerID != id {
			t.Errorf("message %d: expected speaker %s, got %s", i, id, final.Messages[i].SpeakerID)
		}
	}
	if final.CurrentRound != 1 {
		t.Errorf("expected current_round 1, got %d", final.CurrentRound)
	}

	sub.Close()
	var newMessages, statusChanges int
	for ev := range sub.Events() {
		switch ev.Type {
		case broadcast.EventNewMessage:
			newMessages++
		case broadcast.EventStatusChange:
			statusChanges++
		}
	}
	if newMessages != 3 {
		t.Errorf("expected 3 new_message events, got %d", newMessages)
	}
	if statusChanges != 0 {
		t.Errorf("expected no status_change events, got %d", statusChanges)
	}
}

// Scenario 2: mention override with chain.
func TestRequestTurnMentionChain(t *testing.T) {
	a, b := newAgent("a1", "Alice"), newAgent("b1", "Bob")
	resolver := fakeResolver{
		"a1": &scriptedProvider{streamBatches: [][]llms.Delta{{
			{Kind: llms.DeltaContent, Text: "Agreed, nothing further."},
			{Kind: llms.DeltaComplete},
		}}},
		"b1": &scriptedProvider{streamBatches: [][]llms.Delta{{
			{Kind: llms.DeltaContent, Text: "@Alice what do you think?"},
			{Kind: llms.DeltaComplete},
		}}},
	}
	svc, st := newTestService(t, resolver)
	saveAgents(t, st, a, b)

	m, err := svc.CreateMeeting("Design review", []string{"a1", "b1"}, "user", nil, meeting.Config{})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	m, err = svc.AddUserMessage(context.Background(), m.ID, "@Bob please weigh in")
	if err != nil {
		t.Fatalf("add user message: %v", err)
	}

	next := selector.NextAfterMention(m, m.Messages[len(m.Messages)-1])
	if len(next) != 1 || next[0].ID != "b1" {
		t.Fatalf("expected mention override to select Bob, got %+v", next)
	}

	final, err := svc.RequestTurn(context.Background(), m.ID, next[0].ID, turn.ModeStreaming)
	if err != nil {
		t.Fatalf("request turn: %v", err)
	}

	if len(final.Messages) != 3 {
		t.Fatalf("expected 3 messages (user, Bob, Alice), got %d", len(final.Messages))
	}
	if final.Messages[1].SpeakerID != "b1" || final.Messages[2].SpeakerID != "a1" {
		t.Fatalf("expected Bob then Alice, got %s then %s", final.Messages[1].SpeakerID, final.Messages[2].SpeakerID)
	}
	if len(final.Messages[2].Mentions) != 0 {
		t.Error("expected Alice's reply to mention no one, terminating the chain")
	}
}

// Scenario 3: max-rounds auto-end.
func TestMaxRoundsAutoEnd(t *testing.T) {
	a, b := newAgent("a1", "Alice"), newAgent("b1", "Bob")
	resolver := fakeResolver{
		"a1": &scriptedProvider{completions: []string{"Round one, Alice.", "Round two, Alice."}},
		"b1": &scriptedProvider{completions: []string{"Round one, Bob.", "Round two, Bob."}},
	}
	svc, st := newTestService(t, resolver)
	saveAgents(t, st, a, b)

	maxRounds := 2
	m, err := svc.CreateMeeting("Sprint check-in", []string{"a1", "b1"}, "user", nil, meeting.Config{MaxRounds: &maxRounds})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	sub := svc.SubscribeEvents(m.ID)

	if _, err := svc.RunRound(context.Background(), m.ID, turn.ModeBlocking); err != nil {
		t.Fatalf("run round 1: %v", err)
	}
	final, err := svc.RunRound(context.Background(), m.ID, turn.ModeBlocking)
	if err != nil {
		t.Fatalf("run round 2: %v", err)
	}

	if len(final.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(final.Messages))
	}
	if final.CurrentRound != 2 {
		t.Errorf("expected current_round 2, got %d", final.CurrentRound)
	}
	if final.Status != meeting.StatusEnded {
		t.Errorf("expected meeting ended, got %s", final.Status)
	}

	sub.Close()
	var statusChanges int
	for ev := range sub.Events() {
		if ev.Type == broadcast.EventStatusChange {
			statusChanges++
		}
	}
	if statusChanges != 1 {
		t.Errorf("expected exactly one status_change event, got %d", statusChanges)
	}

	if _, err := svc.RequestTurn(context.Background(), m.ID, "a1", turn.ModeBlocking); !errors.Is(err, &meeting.Error{Kind: meeting.KindStateConflict}) {
		t.Errorf("expected StateConflict on a turn after auto-end, got %v", err)
	}
}

// Scenario 4: streaming cancellation.
func TestRequestTurnStreamingCancellation(t *testing.T) {
	a := newAgent("a1", "Alice")
	provider := &scriptedProvider{
		blockUntilCancel: true,
		streamBatches: [][]llms.Delta{{
			{Kind: llms.DeltaReasoning, Text: "thinking..."},
			{Kind: llms.DeltaContent, Text: "partial answer"},
		}},
	}
	resolver := fakeResolver{"a1": provider}
	svc, st := newTestService(t, resolver)
	saveAgents(t, st, a)

	m, err := svc.CreateMeeting("Cancellable", []string{"a1"}, "user", nil, meeting.Config{})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	sub := svc.SubscribeEvents(m.ID)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := svc.RequestTurn(ctx, m.ID, "a1", turn.ModeStreaming)
		done <- err
	}()

	var sawReasoning, sawContent bool
	timeout := time.After(time.Second)
waitLoop:
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type == broadcast.EventStreamingDelta {
				switch ev.DeltaKind {
				case broadcast.DeltaReasoning:
					sawReasoning = true
				case broadcast.DeltaContent:
					sawContent = true
				}
			}
			if sawReasoning && sawContent {
				break waitLoop
			}
		case <-timeout:
			t.Fatal("timed out waiting for streaming deltas")
		}
	}

	cancel()

	var turnErr error
	select {
	case turnErr = <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancelled turn to return")
	}
	if !errors.Is(turnErr, &meeting.Error{Kind: meeting.KindCancelled}) {
		t.Errorf("expected Cancelled error, got %v", turnErr)
	}

	var sawComplete bool
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				goto checked
			}
			if ev.Type == broadcast.EventStreamingDelta && ev.DeltaKind == broadcast.DeltaComplete {
				sawComplete = true
			}
		case <-time.After(50 * time.Millisecond):
			goto checked
		}
	}
checked:
	if sawComplete {
		t.Error("expected no complete delta after cancellation")
	}

	reloaded, err := svc.GetMeeting(m.ID)
	if err != nil {
		t.Fatalf("get meeting: %v", err)
	}
	if len(reloaded.Messages) != 0 {
		t.Errorf("expected no messages appended, got %d", len(reloaded.Messages))
	}
	if reloaded.CurrentRound != 0 {
		t.Errorf("expected current_round unchanged at 0, got %d", reloaded.CurrentRound)
	}
}

// Scenario 5: minutes compression.
func TestMinutesCompressionTrimsConversation(t *testing.T) {
	a := newAgent("a1", "Alice")
	minutesProvider := &scriptedProvider{completions: []string{
		`{"summary":"Discussed the roadmap.","content":"Full minutes body.","key_decisions":["Ship v2"],"action_items":["Follow up with design"]}`,
	}}
	turnProvider := &scriptedProvider{completions: []string{"Post-minutes reply."}}
	resolver := fakeResolver{"a1": turnProvider}
	svc, st := newTestService(t, resolver)
	saveAgents(t, st, a)

	m, err := svc.CreateMeeting("Long-running sync", []string{"a1"}, "a1", nil, meeting.Config{})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	for i := 0; i < 20; i++ {
		if m, err = svc.AddUserMessage(context.Background(), m.ID, "filler message"); err != nil {
			t.Fatalf("add user message %d: %v", i, err)
		}
	}

	resolver["a1"] = minutesProvider
	if _, err := svc.GenerateMinutes(context.Background(), m.ID, "a1"); err != nil {
		t.Fatalf("generate minutes: %v", err)
	}

	if _, err := svc.AddUserMessage(context.Background(), m.ID, "post-minutes question"); err != nil {
		t.Fatalf("add post-minutes user message: %v", err)
	}

	resolver["a1"] = turnProvider
	final, err := svc.RequestTurn(context.Background(), m.ID, "a1", turn.ModeBlocking)
	if err != nil {
		t.Fatalf("request turn: %v", err)
	}

	if final.CurrentMinutes == nil || final.CurrentMinutes.Version != 1 {
		t.Fatalf("expected minutes v1, got %+v", final.CurrentMinutes)
	}
	if len(final.Messages) != 22 {
		t.Fatalf("expected 22 persisted messages (20 filler + post-minutes + reply), got %d", len(final.Messages))
	}
	// prelude + minutes entry + the one post-minutes user message; the 20
	// filler messages are replaced by the minutes entry.
	if conv := turnProvider.lastConversation; len(conv) != 3 || conv[2].Content != "user: post-minutes question" {
		t.Fatalf("expected conversation of prelude, minutes, and post-minutes message, got %+v", conv)
	}
}

// Scenario 6: persistence round-trip, reloading through a fresh Service
// over the same store.
func TestPersistenceRoundTrip(t *testing.T) {
	a := newAgent("a1", "Alice")
	mindMapProvider := &scriptedProvider{completions: []string{
		`{"discussion_points":[{"content":"Launch plan","sub_points":[{"content":"Timeline"}]}]}`,
	}}
	minutesProvider := &scriptedProvider{completions: []string{
		`{"summary":"Kickoff.","content":"Kickoff minutes.","key_decisions":[],"action_items":[]}`,
	}}
	turnProvider := &scriptedProvider{completions: []string{"@Alice noted, thanks."}}
	resolver := fakeResolver{"a1": turnProvider}

	fs := store.NewMemStore()
	svc := New(fs, resolver, nil)
	saveAgents(t, fs, a)

	m, err := svc.CreateMeeting("Kickoff", []string{"a1"}, "user", nil, meeting.Config{})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if _, err := svc.AddUserMessage(context.Background(), m.ID, "Welcome everyone"); err != nil {
		t.Fatalf("add message 1: %v", err)
	}
	if _, err := svc.AddUserMessage(context.Background(), m.ID, "@Alice kick us off"); err != nil {
		t.Fatalf("add message 2: %v", err)
	}
	if _, err := svc.RequestTurn(context.Background(), m.ID, "a1", turn.ModeBlocking); err != nil {
		t.Fatalf("request turn: %v", err)
	}

	resolver["a1"] = minutesProvider
	if _, err := svc.GenerateMinutes(context.Background(), m.ID, "a1"); err != nil {
		t.Fatalf("generate minutes: %v", err)
	}
	resolver["a1"] = mindMapProvider
	if _, err := svc.GenerateMindMap(context.Background(), m.ID, "a1"); err != nil {
		t.Fatalf("generate mind map: %v", err)
	}
	if _, err := svc.Pause(context.Background(), m.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	before, err := svc.GetMeeting(m.ID)
	if err != nil {
		t.Fatalf("get meeting before reload: %v", err)
	}

	// A cold Service sharing the same underlying store, simulating a
	// fresh process reloading persisted state.
	cold := New(fs, resolver, nil)
	after, err := cold.GetMeeting(m.ID)
	if err != nil {
		t.Fatalf("get meeting after reload: %v", err)
	}

	if len(after.Messages) != len(before.Messages) {
		t.Fatalf("messages mismatch: before %d, after %d", len(before.Messages), len(after.Messages))
	}
	for i := range before.Messages {
		if after.Messages[i].Content != before.Messages[i].Content {
			t.Errorf("message %d content mismatch", i)
		}
		if len(after.Messages[i].Mentions) != len(before.Messages[i].Mentions) {
			t.Errorf("message %d mentions mismatch", i)
		}
	}
	if len(after.MinutesHistory) != len(before.MinutesHistory) {
		t.Errorf("minutes_history mismatch: before %d, after %d", len(before.MinutesHistory), len(after.MinutesHistory))
	}
	if (after.CurrentMinutes == nil) != (before.CurrentMinutes == nil) {
		t.Fatal("current_minutes presence mismatch")
	}
	if after.CurrentMinutes != nil && after.CurrentMinutes.Content != before.CurrentMinutes.Content {
		t.Error("current_minutes content mismatch")
	}
	if len(after.MindMap.Nodes) != len(before.MindMap.Nodes) {
		t.Errorf("mind_map.nodes mismatch: before %d, after %d", len(before.MindMap.Nodes), len(after.MindMap.Nodes))
	}
	if after.Status != meeting.StatusPaused {
		t.Errorf("expected status paused, got %s", after.Status)
	}
	if after.CurrentRound != before.CurrentRound {
		t.Errorf("current_round mismatch: before %d, after %d", before.CurrentRound, after.CurrentRound)
	}
}

// DeleteAgent refuses deletion while the agent participates in a
// non-ended meeting, per the decided resolution of the open question.
func TestDeleteAgentRefusedWhileReferenced(t *testing.T) {
	a := newAgent("a1", "Alice")
	resolver := fakeResolver{"a1": &scriptedProvider{}}
	svc, st := newTestService(t, resolver)
	saveAgents(t, st, a)

	if _, err := svc.CreateMeeting("Standup", []string{"a1"}, "user", nil, meeting.Config{}); err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	if err := svc.DeleteAgent("a1"); !errors.Is(err, &meeting.Error{Kind: meeting.KindStateConflict}) {
		t.Errorf("expected StateConflict, got %v", err)
	}
}
