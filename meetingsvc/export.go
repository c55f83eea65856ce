package meetingsvc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conclave-ai/conclave/meeting"
)

func exportJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, meeting.NewError(meeting.KindValidation, "meetingsvc", "export", "failed to marshal export", err)
	}
	return data, nil
}

// exportMarkdown renders a meeting's transcript, agenda, and current
// minutes as a single Markdown document (§6.4).
func exportMarkdown(m *meeting.Meeting) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", m.Topic)
	fmt.Fprintf(&b, "Status: %s\n\n", m.Status)

	if len(m.Agenda) > 0 {
		b.WriteString("## Agenda\n\n")
		for _, item := range m.Agenda {
			marker := " "
			if item.Completed {
				marker = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s\n", marker, item.Title)
		}
		b.WriteString("\n")
	}

	if m.CurrentMinutes != nil {
		fmt.Fprintf(&b, "## Minutes (v%d)\n\n%s\n\n", m.CurrentMinutes.Version, m.CurrentMinutes.Content)
	}

	b.WriteString("## Transcript\n\n")
	for _, msg := range m.Messages {
		fmt.Fprintf(&b, "**%s**: %s\n\n", msg.SpeakerName, msg.Content)
	}

	return b.String()
}
