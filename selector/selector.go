// Package selector implements the speaker selector (§4.7): deciding which
// participant(s) run next given mention overrides and the configured
// speaking order.
package selector

import (
	"math/rand"

	"github.com/conclave-ai/conclave/meeting"
)

// NextAfterMention returns the ordered list of participants mentioned in
// refMessage, resolved against m's participants, overriding normal
// rotation for exactly this hop. Returns nil if refMessage carries no
// mentions, and an empty list if none of them resolves to a participant.
func NextAfterMention(m *meeting.Meeting, refMessage meeting.Message) []meeting.Agent {
	if len(refMessage.Mentions) == 0 {
		return nil
	}
	out := make([]meeting.Agent, 0, len(refMessage.Mentions))
	for _, mention := range refMessage.Mentions {
		if p, ok := m.FindParticipant(mention.MentionedParticipantID); ok {
			out = append(out, *p)
		}
	}
	return out
}

// RunRound returns the full participant list for a "run-round" request:
// rotated to start just after the most recent AI speaker for sequential
// order, or a uniform-random permutation for random order.
func RunRound(m *meeting.Meeting) []meeting.Agent {
	switch m.Config.SpeakingOrder {
	case meeting.SpeakingOrderRandom:
		return randomOrder(m.Participants)
	default:
		return sequentialOrder(m)
	}
}

func sequentialOrder(m *meeting.Meeting) []meeting.Agent {
	n := len(m.Participants)
	if n == 0 {
		return nil
	}

	startIdx := 0
	if lastAgentID := lastAgentSpeaker(m); lastAgentID != "" {
		for i, p := range m.Participants {
			if p.ID == lastAgentID {
				startIdx = (i + 1) % n
				break
			}
		}
	}

	out := make([]meeting.Agent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.Participants[(startIdx+i)%n])
	}
	return out
}

func lastAgentSpeaker(m *meeting.Meeting) string {
	for i := len(m.Messages) - 1; i >= 0; i-- {
		if m.Messages[i].SpeakerType == meeting.SpeakerAgent {
			return m.Messages[i].SpeakerID
		}
	}
	return ""
}

func randomOrder(participants []meeting.Agent) []meeting.Agent {
	n := len(participants)
	out := make([]meeting.Agent, n)
	copy(out, participants)
	rand.Shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
