package meeting

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const component = "meeting"

// NewMeeting creates a new, active meeting with current_round = 0.
func NewMeeting(topic string, participants []Agent, moderator string, agenda []AgendaItem, cfg Config) (*Meeting, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" || len(topic) > 200 {
		return nil, NewError(KindValidation, component, "create", "topic must be 1..200 characters", nil)
	}
	if len(participants) == 0 {
		return nil, NewError(KindValidation, component, "create", "at least one participant is required", nil)
	}
	if cfg.SpeakingOrder == "" {
		cfg.SpeakingOrder = SpeakingOrderSequential
	}
	if cfg.DiscussionStyle == "" {
		cfg.DiscussionStyle = DiscussionFormal
	}
	now := time.Now()
	m := &Meeting{
		ID:           uuid.NewString(),
		Topic:        topic,
		Participants: participants,
		Moderator:    moderator,
		Status:       StatusActive,
		Config:       cfg,
		Agenda:       agenda,
		Messages:     nil,
		CurrentRound: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return m, nil
}

// EnsureActive returns a StateConflict error unless the meeting is active.
func (m *Meeting) EnsureActive(operation string) error {
	if m.Status != StatusActive {
		return NewError(KindStateConflict, component, operation, "meeting is not active", nil)
	}
	return nil
}

// Start transitions paused -> active. No-op from active; errors from ended.
func (m *Meeting) Start() error {
	switch m.Status {
	case StatusActive:
		return nil
	case StatusPaused:
		m.Status = StatusActive
		m.UpdatedAt = time.Now()
		return nil
	default:
		return NewError(KindStateConflict, component, "start", "cannot start an ended meeting", nil)
	}
}

// Pause transitions active -> paused. No-op from paused; errors from ended.
func (m *Meeting) Pause() error {
	switch m.Status {
	case StatusPaused:
		return nil
	case StatusActive:
		m.Status = StatusPaused
		m.UpdatedAt = time.Now()
		return nil
	default:
		return NewError(KindStateConflict, component, "pause", "cannot pause an ended meeting", nil)
	}
}

// End transitions active or paused -> ended. No-op if already ended.
func (m *Meeting) End() {
	if m.Status == StatusEnded {
		return
	}
	m.Status = StatusEnded
	m.UpdatedAt = time.Now()
}

// nextMessageTimestamp returns a timestamp strictly greater than the last
// message's timestamp (one nanosecond past it if the clock hasn't
// advanced), so the append-order invariant holds even under a
// low-resolution clock.
func (m *Meeting) nextMessageTimestamp() time.Time {
	now := time.Now()
	if len(m.Messages) == 0 {
		return now
	}
	last := m.Messages[len(m.Messages)-1].Timestamp
	if !now.After(last) {
		return last.Add(time.Nanosecond)
	}
	return now
}

func (m *Meeting) truncate(content string) (string, bool) {
	if m.Config.MaxMessageLength == nil {
		return content, false
	}
	limit := *m.Config.MaxMessageLength
	if limit <= 0 || len(content) <= limit {
		return content, false
	}
	const marker = " …[truncated]"
	cut := limit
	if cut > len(content) {
		cut = len(content)
	}
	return content[:cut] + marker, true
}

// AddUserMessage appends a user-authored message. It does not affect round
// counting. Whitespace-only content is rejected with Validation and the
// meeting is left unchanged.
func (m *Meeting) AddUserMessage(content string) (*Message, error) {
	if err := m.EnsureActive("add_user_message"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, NewError(KindValidation, component, "add_user_message", "content must not be whitespace-only", nil)
	}
	final, truncated := m.truncate(content)
	_ = truncated
	msg := Message{
		ID:          uuid.NewString(),
		SpeakerID:   "user",
		SpeakerName: "user",
		SpeakerType: SpeakerUser,
		Content:     final,
		Timestamp:   m.nextMessageTimestamp(),
		RoundNumber: m.CurrentRound,
	}
	m.Messages = append(m.Messages, msg)
	m.UpdatedAt = time.Now()
	return &m.Messages[len(m.Messages)-1], nil
}

// AppendAgentMessage appends an agent-authored message, applying the
// truncation and round-counting rules of §4.5/§4.6. It is the single commit
// point the turn engine calls after a successful model completion.
func (m *Meeting) AppendAgentMessage(speaker Agent, content, reasoning string, mentions []Mention) (*Message, bool, error) {
	if err := m.EnsureActive("execute_turn"); err != nil {
		return nil, false, err
	}
	if m.Config.MaxRounds != nil && m.CurrentRound >= *m.Config.MaxRounds {
		return nil, false, NewError(KindStateConflict, component, "execute_turn", "max_rounds reached", nil)
	}
	if strings.TrimSpace(content) == "" {
		return nil, false, NewError(KindValidation, component, "execute_turn", "model produced an empty message", nil)
	}
	final, _ := m.truncate(content)

	msg := Message{
		ID:               uuid.NewString(),
		SpeakerID:        speaker.ID,
		SpeakerName:      speaker.Name,
		SpeakerType:      SpeakerAgent,
		Content:          final,
		ReasoningContent: reasoning,
		Timestamp:        m.nextMessageTimestamp(),
		RoundNumber:      m.CurrentRound,
		Mentions:         mentions,
	}
	m.Messages = append(m.Messages, msg)
	m.UpdatedAt = time.Now()

	ended := m.recordRoundProgress()
	return &m.Messages[len(m.Messages)-1], ended, nil
}

// recordRoundProgress is called after speaker's message has already been
// appended to m.Messages with RoundNumber == m.CurrentRound. It derives
// who has spoken this round directly from the persisted transcript rather
// than from any in-memory-only bookkeeping, since every call into this
// package reloads m fresh from the store (meetingsvc.Service.executeChain
// loads, appends, and saves one turn at a time) and an unexported field
// tagged `json:"-"` would never survive that round trip. If every
// participant has now spoken, the round advances; if that advancement
// reaches max_rounds, the meeting transitions to ended and the return
// value is true.
func (m *Meeting) recordRoundProgress() bool {
	spoken := make(map[string]bool, len(m.Participants))
	for _, msg := range m.Messages {
		if msg.RoundNumber == m.CurrentRound && msg.SpeakerType == SpeakerAgent {
			spoken[msg.SpeakerID] = true
		}
	}

	if len(spoken) < len(m.Participants) {
		return false
	}
	for _, p := range m.Participants {
		if !spoken[p.ID] {
			return false
		}
	}
	// Every participant has spoken: the round completes.
	m.CurrentRound++

	if m.Config.MaxRounds != nil && m.CurrentRound >= *m.Config.MaxRounds {
		m.End()
		return true
	}
	return false
}

// AddAgendaItem appends a new agenda item. Only allowed while active.
func (m *Meeting) AddAgendaItem(title, description string) (*AgendaItem, error) {
	if err := m.EnsureActive("add_agenda_item"); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 200 {
		return nil, NewError(KindValidation, component, "add_agenda_item", "title must be 1..200 characters", nil)
	}
	item := AgendaItem{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		CreatedAt:   time.Now(),
	}
	m.Agenda = append(m.Agenda, item)
	m.UpdatedAt = time.Now()
	return &m.Agenda[len(m.Agenda)-1], nil
}

// MarkAgendaCompleted marks the named agenda item completed.
func (m *Meeting) MarkAgendaCompleted(itemID string) error {
	if err := m.EnsureActive("mark_agenda_completed"); err != nil {
		return err
	}
	for i := range m.Agenda {
		if m.Agenda[i].ID == itemID {
			m.Agenda[i].Completed = true
			m.UpdatedAt = time.Now()
			return nil
		}
	}
	return NewError(KindNotFound, component, "mark_agenda_completed", "agenda item not found", nil)
}

// RemoveAgendaItem removes the named agenda item.
func (m *Meeting) RemoveAgendaItem(itemID string) error {
	if err := m.EnsureActive("remove_agenda_item"); err != nil {
		return err
	}
	for i := range m.Agenda {
		if m.Agenda[i].ID == itemID {
			m.Agenda = append(m.Agenda[:i], m.Agenda[i+1:]...)
			m.UpdatedAt = time.Now()
			return nil
		}
	}
	return NewError(KindNotFound, component, "remove_agenda_item", "agenda item not found", nil)
}

// RecentlyMentioned reports whether participantID was mentioned in any of
// the last n persisted messages, used by the context builder (§4.4.2).
func (m *Meeting) RecentlyMentioned(participantID string, n int) bool {
	start := len(m.Messages) - n
	if start < 0 {
		start = 0
	}
	for _, msg := range m.Messages[start:] {
		for _, mention := range msg.Mentions {
			if mention.MentionedParticipantID == participantID {
				return true
			}
		}
	}
	return false
}
