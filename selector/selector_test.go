package selector

import (
	"testing"
	"time"

	"github.com/conclave-ai/conclave/meeting"
)

func participants(ids ...string) []meeting.Agent {
	out := make([]meeting.Agent, 0, len(ids))
	for _, id := range ids {
		out = append(out, meeting.Agent{ID: id, Name: id})
	}
	return out
}

func TestNextAfterMentionOverridesRotation(t *testing.T) {
	m := &meeting.Meeting{Participants: participants("A", "B", "C")}
	ref := meeting.Message{Mentions: []meeting.Mention{{MentionedParticipantID: "B"}}}

	got := NextAfterMention(m, ref)
	if len(got) != 1 || got[0].ID != "B" {
		t.Fatalf("expected [B], got %+v", got)
	}
}

func TestNextAfterMentionReturnsNilWithoutMentions(t *testing.T) {
	m := &meeting.Meeting{Participants: participants("A", "B")}
	if got := NextAfterMention(m, meeting.Message{}); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestRunRoundSequentialStartsFromBeginningWhenNoHistory(t *testing.T) {
	m := &meeting.Meeting{
		Participants: participants("A", "B", "C"),
		Config:       meeting.Config{SpeakingOrder: meeting.SpeakingOrderSequential},
	}
	got := RunRound(m)
	want := []string{"A", "B", "C"}
	for i, p := range got {
		if p.ID != want[i] {
			t.Fatalf("expected order %v, got %v", want, idsOf(got))
		}
	}
}

func TestRunRoundSequentialRotatesAfterLastAgentSpeaker(t *testing.T) {
	m := &meeting.Meeting{
		Participants: participants("A", "B", "C"),
		Config:       meeting.Config{SpeakingOrder: meeting.SpeakingOrderSequential},
		Messages: []meeting.Message{
			{SpeakerID: "B", SpeakerType: meeting.SpeakerAgent, Timestamp: time.Now()},
		},
	}
	got := idsOf(RunRound(m))
	want := []string{"C", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected rotation %v, got %v", want, got)
		}
	}
}

func TestRunRoundRandomEventuallyDiffersFromSequential(t *testing.T) {
	m := &meeting.Meeting{
		Participants: participants("A", "B", "C"),
		Config:       meeting.Config{SpeakingOrder: meeting.SpeakingOrderRandom},
	}

	differed := false
	for i := 0; i < 100; i++ {
		got := idsOf(RunRound(m))
		if got[0] != "A" || got[1] != "B" || got[2] != "C" {
			differed = true
			break
		}
	}
	if !differed {
		t.Error("expected random order to differ from sequential order at least once over 100 runs")
	}
}

func idsOf(agents []meeting.Agent) []string {
	out := make([]string, len(agents))
	for i, a := range agents {
		out[i] = a.ID
	}
	return out
}
