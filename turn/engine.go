// Package turn implements the turn engine (§4.5): executing exactly one
// AI turn end to end, from context assembly through model invocation,
// mention parsing, and message append.
package turn

import (
	"context"
	"errors"
	"strings"

	"github.com/conclave-ai/conclave/broadcast"
	"github.com/conclave-ai/conclave/llms"
	"github.com/conclave-ai/conclave/meeting"
	"github.com/conclave-ai/conclave/mention"
	"github.com/conclave-ai/conclave/promptctx"
)

// Mode selects blocking or streaming model invocation for one turn.
type Mode string

const (
	ModeBlocking  Mode = "blocking"
	ModeStreaming Mode = "streaming"
)

// Result is what a successful execute_turn call returns: the appended
// message and the AI participants it mentions, in mention order, for the
// speaker selector to chain into.
type Result struct {
	Message        *meeting.Message
	MentionedAgent []meeting.Agent
	RoundEnded     bool
}

func mentionParticipants(m *meeting.Meeting) []mention.Participant {
	out := make([]mention.Participant, 0, len(m.Participants))
	for _, p := range m.Participants {
		out = append(out, mention.Participant{ID: p.ID, Name: p.Name, RoleName: p.Role.Name})
	}
	return out
}

func toMeetingMentions(raw []mention.Mention, messageID string) []meeting.Mention {
	if len(raw) == 0 {
		return nil
	}
	out := make([]meeting.Mention, 0, len(raw))
	for _, r := range raw {
		out = append(out, meeting.Mention{
			MentionedParticipantID:   r.ParticipantID,
			MentionedParticipantName: r.ParticipantName,
			MessageID:                messageID,
		})
	}
	return out
}

// Execute runs one AI turn for speaker within m, per §4.5. It assumes the
// caller already holds the per-meeting coordinator lock and has reloaded
// m from the store. On success it mutates m in place (the caller is
// responsible for persisting it) and publishes events to hub. On failure
// m is left unmutated beyond what §4.5 step 9 commits.
//
// In streaming mode every delta is published to hub, if non-nil, as a
// streaming_delta event as it is produced.
func Execute(ctx context.Context, provider llms.Provider, m *meeting.Meeting, speaker meeting.Agent, mode Mode, hub *broadcast.Hub) (*Result, error) {
	if err := m.EnsureActive("execute_turn"); err != nil {
		return nil, err
	}
	if m.Config.MaxRounds != nil && m.CurrentRound >= *m.Config.MaxRounds {
		return nil, meeting.NewError(meeting.KindStateConflict, "turn", "execute_turn", "max_rounds reached", nil)
	}

	systemPrompt, conversation := promptctx.Build(m, speaker)
	params := llms.Params{}
	if p := speaker.ModelConfig.Parameters; p != nil {
		params = llms.Params{Temperature: p.Temperature, MaxTokens: p.MaxTokens, TopP: p.TopP}
	}

	content, reasoning, err := run(ctx, provider, systemPrompt, conversation, params, mode, speaker.ID, hub)
	if err != nil {
		if hub != nil {
			hub.Publish(broadcast.Event{
				Type:        broadcast.EventTurnFailed,
				SpeakerID:   speaker.ID,
				ErrorKind:   classify(err),
				ErrorDetail: err.Error(),
			})
		}
		return nil, err
	}

	if strings.TrimSpace(content) == "" {
		err := meeting.NewError(meeting.KindValidation, "turn", "execute_turn", "model produced an empty message", nil)
		if hub != nil {
			hub.Publish(broadcast.Event{Type: broadcast.EventTurnFailed, SpeakerID: speaker.ID, ErrorKind: string(meeting.KindValidation), ErrorDetail: err.Error()})
		}
		return nil, err
	}

	mentions := mention.Parse(content, mentionParticipants(m))

	msg, roundEnded, err := m.AppendAgentMessage(speaker, content, reasoning, nil)
	if err != nil {
		return nil, err
	}
	msg.Mentions = toMeetingMentions(mentions, msg.ID)

	if hub != nil {
		hub.Publish(broadcast.Event{Type: broadcast.EventNewMessage, MessageID: msg.ID})
		if roundEnded {
			hub.Publish(broadcast.Event{Type: broadcast.EventStatusChange, Status: string(meeting.StatusEnded)})
		}
	}

	var mentionedAgents []meeting.Agent
	for _, mn := range mentions {
		if p, ok := m.FindParticipant(mn.ParticipantID); ok {
			mentionedAgents = append(mentionedAgents, *p)
		}
	}

	return &Result{Message: msg, MentionedAgent: mentionedAgents, RoundEnded: roundEnded}, nil
}

func run(ctx context.Context, provider llms.Provider, systemPrompt string, conversation []llms.Turn, params llms.Params, mode Mode, speakerID string, hub *broadcast.Hub) (content, reasoning string, err error) {
	if mode == ModeBlocking {
		comp, err := provider.Complete(ctx, systemPrompt, conversation, params)
		if err != nil {
			return "", "", err
		}
		return comp.Content, comp.ReasoningContent, nil
	}

	deltas, err := provider.Stream(ctx, systemPrompt, conversation, params)
	if err != nil {
		return "", "", err
	}

	var contentBuf, reasoningBuf strings.Builder
	for d := range deltas {
		switch d.Kind {
		case llms.DeltaContent:
			contentBuf.WriteString(d.Text)
			if hub != nil {
				hub.Publish(broadcast.Event{Type: broadcast.EventStreamingDelta, SpeakerID: speakerID, DeltaKind: broadcast.DeltaContent, DeltaText: d.Text})
			}
		case llms.DeltaReasoning:
			reasoningBuf.WriteString(d.Text)
			if hub != nil {
				hub.Publish(broadcast.Event{Type: broadcast.EventStreamingDelta, SpeakerID: speakerID, DeltaKind: broadcast.DeltaReasoning, DeltaText: d.Text})
			}
		case llms.DeltaComplete:
			if hub != nil {
				hub.Publish(broadcast.Event{Type: broadcast.EventStreamingDelta, SpeakerID: speakerID, DeltaKind: broadcast.DeltaComplete})
			}
			return contentBuf.String(), reasoningBuf.String(), nil
		case llms.DeltaError:
			if hub != nil {
				hub.Publish(broadcast.Event{Type: broadcast.EventStreamingDelta, SpeakerID: speakerID, DeltaKind: broadcast.DeltaError, DeltaText: d.Err.Error()})
			}
			return "", "", d.Err
		}
	}

	// Cancellation closed the channel without a terminal delta: discard
	// whatever was accumulated, per §5's cancellation semantics.
	if ctx.Err() != nil {
		return "", "", meeting.NewError(meeting.KindCancelled, "turn", "execute_turn", "turn cancelled", ctx.Err())
	}
	return contentBuf.String(), reasoningBuf.String(), nil
}

func classify(err error) string {
	var authErr *llms.AuthError
	var rateErr *llms.RateLimitError
	var netErr *llms.NetworkError
	var provErr *llms.ProviderError
	switch {
	case errors.As(err, &authErr):
		return string(meeting.KindAuthFailed)
	case errors.As(err, &rateErr):
		return string(meeting.KindRateLimited)
	case errors.As(err, &netErr):
		return string(meeting.KindNetwork)
	case errors.As(err, &provErr):
		return string(meeting.KindProviderError)
	default:
		return string(meeting.KindValidation)
	}
}
