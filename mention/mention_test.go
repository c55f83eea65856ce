package mention

import "testing"

func fixtureParticipants() []Participant {
	return []Participant{
		{ID: "p-a", Name: "Alice", RoleName: "Lead"},
		{ID: "p-b", Name: "Bob", RoleName: "Reviewer"},
		{ID: "p-c", Name: "Carol Lee", RoleName: "QA"},
	}
}

func TestParseDocumentOrder(t *testing.T) {
	got := Parse("@Bob please weigh in, then @Alice can close out", fixtureParticipants())
	if len(got) != 2 || got[0].ParticipantID != "p-b" || got[1].ParticipantID != "p-a" {
		t.Fatalf("unexpected mentions: %+v", got)
	}
}

func TestParseTrailingPunctuation(t *testing.T) {
	got := Parse("cc @Bob, thanks!", fixtureParticipants())
	if len(got) != 1 || got[0].ParticipantID != "p-b" {
		t.Fatalf("expected Bob to match despite trailing comma, got %+v", got)
	}
}

func TestParseQuotedMultiWordName(t *testing.T) {
	got := Parse(`@"Carol Lee" can you confirm?`, fixtureParticipants())
	if len(got) != 1 || got[0].ParticipantID != "p-c" {
		t.Fatalf("expected quoted multi-word match, got %+v", got)
	}
}

func TestParseFirstOccurrenceWinsPerParticipant(t *testing.T) {
	got := Parse("@Bob and again @Bob", fixtureParticipants())
	if len(got) != 1 {
		t.Fatalf("expected a single mention for repeated @Bob, got %+v", got)
	}
}

func TestParseFallsBackToRoleName(t *testing.T) {
	got := Parse("@Reviewer please check", fixtureParticipants())
	if len(got) != 1 || got[0].ParticipantID != "p-b" {
		t.Fatalf("expected role-name fallback to match Bob, got %+v", got)
	}
}

func TestParseIsIdempotentAndOrderPreserving(t *testing.T) {
	content := "@Carol Lee and @Alice, then @Bob"
	first := Parse(content, fixtureParticipants())
	second := Parse(content, fixtureParticipants())
	if len(first) != len(second) {
		t.Fatalf("parse not idempotent: %+v vs %+v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("parse not idempotent at index %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestParseNoMentionsReturnsNil(t *testing.T) {
	if got := Parse("no mentions here", fixtureParticipants()); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}
