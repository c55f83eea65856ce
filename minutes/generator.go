// Package minutes implements the minutes generator (§4.12): producing a
// versioned, structured summary of a meeting's transcript.
package minutes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-ai/conclave/llms"
	"github.com/conclave-ai/conclave/meeting"
)

const defaultPrompt = `You are producing meeting minutes. Read the transcript and respond with a JSON object of the form:
{"summary": "...", "key_decisions": ["..."], "action_items": ["..."]}
Keep the summary to one short paragraph.`

// Generate invokes generator's model adapter to produce the next minutes
// version for m, appends it to minutes_history, and sets current_minutes.
// m is mutated in place; the caller is responsible for persisting it.
func Generate(ctx context.Context, provider llms.Provider, m *meeting.Meeting, generator meeting.Agent) (*meeting.MinutesVersion, error) {
	prompt := m.Config.MinutesPrompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	transcript := renderTranscriptSinceMinutes(m)
	comp, err := provider.Complete(ctx, prompt, []llms.Turn{{Role: llms.RoleUser, Content: transcript}}, llms.Params{})
	if err != nil {
		return nil, err
	}

	summary, decisions, actionItems := parseMinutes(comp.Content)

	version := 1
	if len(m.MinutesHistory) > 0 {
		version = m.MinutesHistory[len(m.MinutesHistory)-1].Version + 1
	}

	mv := meeting.MinutesVersion{
		ID:           uuid.NewString(),
		Version:      version,
		Content:      comp.Content,
		Summary:      summary,
		KeyDecisions: decisions,
		ActionItems:  actionItems,
		CreatedAt:    time.Now(),
		CreatedBy:    generator.ID,
	}

	m.MinutesHistory = append(m.MinutesHistory, mv)
	m.CurrentMinutes = &m.MinutesHistory[len(m.MinutesHistory)-1]
	m.UpdatedAt = time.Now()

	return m.CurrentMinutes, nil
}

func renderTranscriptSinceMinutes(m *meeting.Meeting) string {
	var since time.Time
	if m.CurrentMinutes != nil {
		since = m.CurrentMinutes.CreatedAt
	}

	var b strings.Builder
	for _, msg := range m.Messages {
		if !since.IsZero() && !msg.Timestamp.After(since) {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.SpeakerName, msg.Content)
	}
	return b.String()
}

type structuredMinutes struct {
	Summary      string   `json:"summary"`
	KeyDecisions []string `json:"key_decisions"`
	ActionItems  []string `json:"action_items"`
}

// parseMinutes leniently extracts {summary, key_decisions, action_items}
// from the model response. If the response is not valid structured JSON,
// the raw content is used as both content and summary, per §4.12 step 3.
func parseMinutes(raw string) (summary string, keyDecisions, actionItems []string) {
	trimmed := strings.TrimSpace(raw)
	jsonStart := strings.IndexByte(trimmed, '{')
	jsonEnd := strings.LastIndexByte(trimmed, '}')
	if jsonStart >= 0 && jsonEnd > jsonStart {
		var parsed structuredMinutes
		if err := json.Unmarshal([]byte(trimmed[jsonStart:jsonEnd+1]), &parsed); err == nil && parsed.Summary != "" {
			return parsed.Summary, parsed.KeyDecisions, parsed.ActionItems
		}
	}
	return raw, nil, nil
}
