// Package promptctx composes the (system_prompt, conversation) pair a
// model adapter receives for one speaker's turn (§4.4).
package promptctx

import (
	"fmt"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/llms"
	"github.com/conclave-ai/conclave/meeting"
)

var discussionGuidance = map[meeting.DiscussionStyle]string{
	meeting.DiscussionFormal: "Maintain a formal, structured tone. Address points directly and avoid digressions.",
	meeting.DiscussionCasual: "Keep the tone conversational and approachable, as among colleagues.",
	meeting.DiscussionDebate: "Argue your position rigorously, challenge weak reasoning, and concede only when persuaded.",
}

var lengthGuidance = map[meeting.LengthPreference]string{
	meeting.LengthBrief:    "Keep your response to one or two sentences.",
	meeting.LengthModerate: "Keep your response to a short paragraph.",
	meeting.LengthDetailed: "Elaborate fully; multiple paragraphs are expected.",
}

const moderatorDutyBlock = "As moderator, guide the discussion toward the agenda, ensure every participant gets a chance to contribute, periodically summarize progress, redirect off-topic tangents, and drive the meeting toward a conclusion."

// recentMentionWindow bounds how far back §4.4.2's "recently mentioned"
// notice looks.
const recentMentionWindow = 5

// BuildSystemPrompt composes the fixed-order system prompt blocks of
// §4.4.1 for speaker within m.
func BuildSystemPrompt(m *meeting.Meeting, speaker meeting.Agent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Your role: %s\n", speaker.Role.Name)
	fmt.Fprintf(&b, "Role description: %s\n", speaker.Role.Description)
	b.WriteString(speaker.Role.SystemPrompt)
	b.WriteString("\n")

	if guidance, ok := discussionGuidance[m.Config.DiscussionStyle]; ok {
		b.WriteString(guidance)
		b.WriteString("\n")
	}

	if pref, ok := m.Config.SpeakingLengthPreferences[speaker.ID]; ok {
		if guidance, ok := lengthGuidance[pref]; ok {
			b.WriteString(guidance)
			b.WriteString("\n")
		}
	}

	if m.IsModerator(speaker.ID) && !m.ModeratorIsUser() {
		b.WriteString(moderatorDutyBlock)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func moderatorLabel(m *meeting.Meeting) string {
	if m.ModeratorIsUser() {
		return "user"
	}
	if p, ok := m.FindParticipant(m.Moderator); ok {
		return p.Name
	}
	return m.Moderator
}

// buildPrelude composes the §4.4.2 prepended system entry: topic,
// moderator, participants, agenda, current-minutes summary, and a
// recently-mentioned notice.
func buildPrelude(m *meeting.Meeting, speaker meeting.Agent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Meeting topic: %s\n", m.Topic)
	fmt.Fprintf(&b, "Moderator: %s\n", moderatorLabel(m))

	b.WriteString("Participants:\n")
	for _, p := range m.Participants {
		fmt.Fprintf(&b, "- %s (%s)\n", p.Name, p.Role.Name)
	}

	if len(m.Agenda) > 0 {
		b.WriteString("Agenda:\n")
		for _, item := range m.Agenda {
			marker := "○"
			if item.Completed {
				marker = "✓"
			}
			fmt.Fprintf(&b, "%s %s\n", marker, item.Title)
		}
	}

	if m.CurrentMinutes != nil {
		fmt.Fprintf(&b, "Current meeting conclusion:\n%s\n", m.CurrentMinutes.Summary)
	}

	if m.RecentlyMentioned(speaker.ID, recentMentionWindow) {
		fmt.Fprintf(&b, "You were recently mentioned — consider responding directly.\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func turnRoleFor(speakerType meeting.SpeakerType) llms.TurnRole {
	if speakerType == meeting.SpeakerUser {
		return llms.RoleUser
	}
	return llms.RoleAssistant
}

func renderMessage(msg meeting.Message) llms.Turn {
	return llms.Turn{
		Role:    turnRoleFor(msg.SpeakerType),
		Content: fmt.Sprintf("%s: %s", msg.SpeakerName, msg.Content),
	}
}

// BuildConversation composes the full conversation §4.4.2 hands to the
// model adapter: the prelude entry, the minutes-compression entry (if
// applicable), then the message-history window.
func BuildConversation(m *meeting.Meeting, speaker meeting.Agent) []llms.Turn {
	var out []llms.Turn
	out = append(out, llms.Turn{Role: llms.RoleSystem, Content: buildPrelude(m, speaker)})

	if m.CurrentMinutes != nil {
		content := fmt.Sprintf("Minutes as of %s:\n%s", m.CurrentMinutes.CreatedAt.Format(time.RFC3339), m.CurrentMinutes.Content)
		out = append(out, llms.Turn{Role: llms.RoleSystem, Content: content})

		for _, msg := range m.Messages {
			if msg.Timestamp.After(m.CurrentMinutes.CreatedAt) {
				out = append(out, renderMessage(msg))
			}
		}
		return out
	}

	for _, msg := range m.Messages {
		out = append(out, renderMessage(msg))
	}
	return out
}

// Build composes the full (system_prompt, conversation) pair §4.4 hands
// to a model adapter for speaker's upcoming turn.
func Build(m *meeting.Meeting, speaker meeting.Agent) (string, []llms.Turn) {
	return BuildSystemPrompt(m, speaker), BuildConversation(m, speaker)
}
