// Package meeting defines the core data model and state machine for the
// meeting orchestration engine: Agents, Meetings, Messages, Minutes, and
// Mind-maps, plus the lifecycle and round-counting rules that govern them.
package meeting

import "time"

// Provider identifies a model-provider backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderGLM       Provider = "glm"
)

// Role describes how a participant behaves in a meeting.
type Role struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
}

// ModelParameters carries optional per-agent generation tuning.
type ModelParameters struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// ModelConfig binds an Agent to a provider, model, and credential.
type ModelConfig struct {
	Provider   Provider         `json:"provider"`
	ModelName  string           `json:"model_name"`
	Credential string           `json:"credential"`
	Parameters *ModelParameters `json:"parameters,omitempty"`
}

// Agent is an identity plus model configuration, owned by the agent
// registry and referenced by meetings by id.
type Agent struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Role        Role        `json:"role"`
	ModelConfig ModelConfig `json:"model_config"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Status is a Meeting's lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// SpeakingOrder selects how run_round rotates through participants.
type SpeakingOrder string

const (
	SpeakingOrderSequential SpeakingOrder = "sequential"
	SpeakingOrderRandom     SpeakingOrder = "random"
)

// DiscussionStyle selects the system-prompt guidance block.
type DiscussionStyle string

const (
	DiscussionFormal DiscussionStyle = "formal"
	DiscussionCasual DiscussionStyle = "casual"
	DiscussionDebate DiscussionStyle = "debate"
)

// LengthPreference selects the speaking-length guidance block.
type LengthPreference string

const (
	LengthBrief    LengthPreference = "brief"
	LengthModerate LengthPreference = "moderate"
	LengthDetailed LengthPreference = "detailed"
)

// Config holds the per-meeting tunables from §3.
type Config struct {
	MaxRounds                 *int                             `json:"max_rounds,omitempty"`
	MaxMessageLength          *int                             `json:"max_message_length,omitempty"`
	SpeakingOrder             SpeakingOrder                    `json:"speaking_order"`
	DiscussionStyle           DiscussionStyle                  `json:"discussion_style"`
	SpeakingLengthPreferences map[string]LengthPreference      `json:"speaking_length_preferences,omitempty"`
	MinutesPrompt             string                           `json:"minutes_prompt,omitempty"`
}

// AgendaItem is one bullet on the meeting's agenda.
type AgendaItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// SpeakerType distinguishes the human user from an AI participant.
type SpeakerType string

const (
	SpeakerUser  SpeakerType = "user"
	SpeakerAgent SpeakerType = "agent"
)

// Mention is one resolved `@name` reference within a Message.
type Mention struct {
	MentionedParticipantID   string `json:"mentioned_participant_id"`
	MentionedParticipantName string `json:"mentioned_participant_name"`
	MessageID                string `json:"message_id"`
}

// Message is one immutable utterance in a meeting's transcript.
type Message struct {
	ID               string    `json:"id"`
	SpeakerID        string    `json:"speaker_id"`
	SpeakerName      string    `json:"speaker_name"`
	SpeakerType      SpeakerType `json:"speaker_type"`
	Content          string    `json:"content"`
	ReasoningContent string    `json:"reasoning_content,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	RoundNumber      int       `json:"round_number"`
	Mentions         []Mention `json:"mentions,omitempty"`
}

// MinutesVersion is one versioned, structured summary of a meeting.
type MinutesVersion struct {
	ID           string    `json:"id"`
	Version      int       `json:"version"`
	Content      string    `json:"content"`
	Summary      string    `json:"summary"`
	KeyDecisions []string  `json:"key_decisions,omitempty"`
	ActionItems  []string  `json:"action_items,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by"`
}

// MindMapNode is one node of a MindMap tree.
type MindMapNode struct {
	ID                string            `json:"id"`
	Content           string            `json:"content"`
	Level             int               `json:"level"`
	ParentID          *string           `json:"parent_id,omitempty"`
	ChildrenIDs       []string          `json:"children_ids,omitempty"`
	MessageReferences []string          `json:"message_references,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// MindMap is the latest discussion-point tree derived for a meeting.
type MindMap struct {
	ID        string                 `json:"id"`
	MeetingID string                 `json:"meeting_id"`
	RootNode  string                 `json:"root_node"`
	Nodes     map[string]*MindMapNode `json:"nodes"`
	Version   int                    `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
	CreatedBy string                 `json:"created_by"`
}

// Meeting is the central aggregate owning messages, minutes, and mind-map.
type Meeting struct {
	ID             string           `json:"id"`
	Topic          string           `json:"topic"`
	Participants   []Agent          `json:"participants"`
	Moderator      string           `json:"moderator"` // "user" or a participant id
	Status         Status           `json:"status"`
	Config         Config           `json:"config"`
	Agenda         []AgendaItem     `json:"agenda"`
	Messages       []Message        `json:"messages"`
	CurrentRound   int              `json:"current_round"`
	MinutesHistory []MinutesVersion `json:"minutes_history"`
	CurrentMinutes *MinutesVersion  `json:"current_minutes"`
	MindMap        *MindMap         `json:"mind_map"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsModerator reports whether participant id is this meeting's moderator.
func (m *Meeting) IsModerator(participantID string) bool {
	return m.Moderator == participantID
}

// ModeratorIsUser reports whether the human user moderates this meeting.
func (m *Meeting) ModeratorIsUser() bool {
	return m.Moderator == "user" || m.Moderator == ""
}

// FindParticipant returns the participant snapshot with the given id.
func (m *Meeting) FindParticipant(id string) (*Agent, bool) {
	for i := range m.Participants {
		if m.Participants[i].ID == id {
			return &m.Participants[i], true
		}
	}
	return nil, false
}
