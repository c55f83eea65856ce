// Package meetingsvc is the boundary-facing composition root: it wires
// the store, model-adapter factory, broadcast hub, and turn coordinator
// together and exposes every §6.1 operation.
package meetingsvc

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-ai/conclave/broadcast"
	"github.com/conclave-ai/conclave/coordinator"
	"github.com/conclave-ai/conclave/llms"
	"github.com/conclave-ai/conclave/logging"
	"github.com/conclave-ai/conclave/meeting"
	"github.com/conclave-ai/conclave/mention"
	"github.com/conclave-ai/conclave/mindmap"
	"github.com/conclave-ai/conclave/minutes"
	"github.com/conclave-ai/conclave/selector"
	"github.com/conclave-ai/conclave/store"
	"github.com/conclave-ai/conclave/turn"
)

// ProviderResolver resolves a model adapter for an agent's configuration.
// *llms.Factory satisfies this; tests substitute a fake.
type ProviderResolver interface {
	For(cfg meeting.ModelConfig) (llms.Provider, error)
}

// Service is the composition root analogous to the teacher's Team: it
// owns every collaborator and implements the consumer-facing operations
// of §6.1 by orchestrating them under the per-meeting coordinator lock.
type Service struct {
	store       store.Store
	providers   ProviderResolver
	coordinator *coordinator.Coordinator
	hubs        *hubRegistry
	log         *slog.Logger
}

// New wires a Service from its collaborators. log may be nil, in which
// case a default logger is used.
func New(s store.Store, providers ProviderResolver, log *slog.Logger) *Service {
	if log == nil {
		log = logging.New(slog.LevelInfo, os.Stderr)
	}
	return &Service{
		store:       s,
		providers:   providers,
		coordinator: coordinator.New(),
		hubs:        newHubRegistry(),
		log:         log,
	}
}

func (s *Service) opLog(operation string) *slog.Logger {
	return logging.Component(s.log, "meetingsvc", operation)
}

// ---- Agents ----

// CreateAgent validates and persists a new Agent.
func (s *Service) CreateAgent(name string, role meeting.Role, modelConfig meeting.ModelConfig) (*meeting.Agent, error) {
	if name == "" || len(name) > 50 {
		return nil, meeting.NewError(meeting.KindValidation, "meetingsvc", "create_agent", "name must be 1..50 characters", nil)
	}
	now := time.Now()
	a := meeting.Agent{
		ID:          uuid.NewString(),
		Name:        name,
		Role:        role,
		ModelConfig: modelConfig,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveAgent(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAgent loads a single Agent by id.
func (s *Service) GetAgent(id string) (*meeting.Agent, error) {
	return s.store.LoadAgent(id)
}

// ListAgents returns every persisted Agent.
func (s *Service) ListAgents() ([]meeting.Agent, error) {
	return s.store.ListAgents()
}

// UpdateAgent replaces name/role/model_config for an existing Agent.
// Participant snapshots already captured in meetings are unaffected.
func (s *Service) UpdateAgent(id, name string, role meeting.Role, modelConfig meeting.ModelConfig) (*meeting.Agent, error) {
	a, err := s.store.LoadAgent(id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		a.Name = name
	}
	a.Role = role
	a.ModelConfig = modelConfig
	a.UpdatedAt = time.Now()
	if err := s.store.SaveAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAgent refuses deletion while id is a participant of any
// non-ended meeting (the decided resolution of §9's open question).
func (s *Service) DeleteAgent(id string) error {
	meetings, err := s.store.ListMeetings()
	if err != nil {
		return err
	}
	for _, m := range meetings {
		if m.Status == meeting.StatusEnded {
			continue
		}
		if _, ok := m.FindParticipant(id); ok {
			return meeting.NewError(meeting.KindStateConflict, "meetingsvc", "delete_agent", "agent is referenced by a non-ended meeting", nil)
		}
	}
	return s.store.DeleteAgent(id)
}

// TestConnection probes an agent's model adapter credential.
func (s *Service) TestConnection(ctx context.Context, agentID string) error {
	a, err := s.store.LoadAgent(agentID)
	if err != nil {
		return err
	}
	provider, err := s.providers.For(a.ModelConfig)
	if err != nil {
		return err
	}
	return provider.TestConnection(ctx)
}

// ---- Meetings: lifecycle ----

// CreateMeeting resolves participant_ids to Agent snapshots and creates
// a new active meeting.
func (s *Service) CreateMeeting(topic string, participantIDs []string, moderator string, agenda []meeting.AgendaItem, cfg meeting.Config) (*meeting.Meeting, error) {
	participants := make([]meeting.Agent, 0, len(participantIDs))
	for _, id := range participantIDs {
		a, err := s.store.LoadAgent(id)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *a)
	}

	m, err := meeting.NewMeeting(topic, participants, moderator, agenda, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveMeeting(m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMeeting loads a single Meeting by id.
func (s *Service) GetMeeting(id string) (*meeting.Meeting, error) {
	return s.store.LoadMeeting(id)
}

// ListMeetings returns every persisted Meeting.
func (s *Service) ListMeetings() ([]meeting.Meeting, error) {
	return s.store.ListMeetings()
}

// DeleteMeeting cancels any in-flight turn and removes the meeting.
func (s *Service) DeleteMeeting(id string) error {
	s.coordinator.Remove(id)
	s.hubs.close(id)
	return s.store.DeleteMeeting(id)
}

func (s *Service) withMeeting(ctx context.Context, id, operation string, fn func(m *meeting.Meeting) error) (*meeting.Meeting, error) {
	_, _, release, err := s.coordinator.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	m, err := s.store.LoadMeeting(id)
	if err != nil {
		return nil, err
	}
	if err := fn(m); err != nil {
		return nil, err
	}
	if err := s.store.SaveMeeting(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Start transitions a meeting to active.
func (s *Service) Start(ctx context.Context, id string) (*meeting.Meeting, error) {
	return s.withMeeting(ctx, id, "start", func(m *meeting.Meeting) error { return m.Start() })
}

// Pause transitions a meeting to paused.
func (s *Service) Pause(ctx context.Context, id string) (*meeting.Meeting, error) {
	m, err := s.withMeeting(ctx, id, "pause", func(m *meeting.Meeting) error { return m.Pause() })
	if err == nil {
		s.coordinator.Stop(id)
	}
	return m, err
}

// End transitions a meeting to ended.
func (s *Service) End(ctx context.Context, id string) (*meeting.Meeting, error) {
	m, err := s.withMeeting(ctx, id, "end", func(m *meeting.Meeting) error {
		m.End()
		return nil
	})
	if err == nil {
		s.coordinator.Stop(id)
		s.hubs.get(id).Publish(broadcast.Event{Type: broadcast.EventStatusChange, Status: string(meeting.StatusEnded)})
	}
	return m, err
}

// ---- Meetings: content ----

// AddUserMessage appends a user-authored message.
func (s *Service) AddUserMessage(ctx context.Context, id, content string) (*meeting.Meeting, error) {
	m, err := s.withMeeting(ctx, id, "add_user_message", func(m *meeting.Meeting) error {
		msg, err := m.AddUserMessage(content)
		if err != nil {
			return err
		}
		participants := make([]mention.Participant, 0, len(m.Participants))
		for _, p := range m.Participants {
			participants = append(participants, mention.Participant{ID: p.ID, Name: p.Name, RoleName: p.Role.Name})
		}
		for _, r := range mention.Parse(msg.Content, participants) {
			msg.Mentions = append(msg.Mentions, meeting.Mention{MentionedParticipantID: r.ParticipantID, MentionedParticipantName: r.ParticipantName, MessageID: msg.ID})
		}
		return nil
	})
	if err == nil {
		hub := s.hubs.get(id)
		if len(m.Messages) > 0 {
			hub.Publish(broadcast.Event{Type: broadcast.EventNewMessage, MessageID: m.Messages[len(m.Messages)-1].ID})
		}
	}
	return m, err
}

// RequestTurn executes one AI turn for agentID (§4.5). In streaming mode it
// then follows any resulting AI mentions into an auto-response chain
// bounded by coordinator.DefaultMaxChainDepth, per §4.8; in blocking mode
// no follow-up turns run.
func (s *Service) RequestTurn(ctx context.Context, id, agentID string, mode turn.Mode) (*meeting.Meeting, error) {
	return s.executeChain(ctx, id, agentID, mode, 1)
}

// RunRound executes one full rotation of all participants via the
// speaker selector (§4.7), chaining mention-based follow-ups along the
// way exactly as RequestTurn does for a single speaker.
func (s *Service) RunRound(ctx context.Context, id string, mode turn.Mode) (*meeting.Meeting, error) {
	_, _, release, err := s.coordinator.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}

	m, err := s.store.LoadMeeting(id)
	if err != nil {
		release()
		return nil, err
	}
	order := selector.RunRound(m)
	release()

	var final *meeting.Meeting
	for _, speaker := range order {
		final, err = s.executeChain(ctx, id, speaker.ID, mode, 1)
		if err != nil {
			return final, err
		}
	}
	return final, nil
}

// executeChain runs execute_turn for agentID, then follows any AI
// mentions it produced up to the chain-depth limit, per §4.8. depth is
// the 1-based hop number of this call within the current chain: the
// caller starts a new chain at depth 1, and executeChain increments it
// on each recursive follow-up so the limit is enforced across the whole
// chain rather than per coordinator acquisition.
func (s *Service) executeChain(ctx context.Context, meetingID, agentID string, mode turn.Mode, depth int) (*meeting.Meeting, error) {
	turnCtx, _, release, err := s.coordinator.Acquire(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	m, err := s.store.LoadMeeting(meetingID)
	if err != nil {
		release()
		return nil, err
	}

	speaker, ok := m.FindParticipant(agentID)
	if !ok {
		release()
		return nil, meeting.NewError(meeting.KindNotFound, "meetingsvc", "request_turn", "agent is not a participant of this meeting", nil)
	}

	provider, err := s.providers.For(speaker.ModelConfig)
	if err != nil {
		release()
		return nil, err
	}

	hub := s.hubs.get(meetingID)
	result, err := turn.Execute(turnCtx, provider, m, *speaker, mode, hub)
	if err != nil {
		release()
		return nil, err
	}
	if err := s.store.SaveMeeting(m); err != nil {
		release()
		return nil, err
	}
	release()

	if mode != turn.ModeStreaming || depth >= coordinator.DefaultMaxChainDepth || len(result.MentionedAgent) == 0 || m.Status != meeting.StatusActive {
		return m, nil
	}

	final := m
	for _, next := range result.MentionedAgent {
		nextMeeting, chainErr := s.executeChain(ctx, meetingID, next.ID, mode, depth+1)
		if chainErr != nil {
			s.logErr("auto_response_chain", chainErr) // chain abort is not surfaced as an error, per §4.8
			return final, nil
		}
		final = nextMeeting
	}
	return final, nil
}

// ---- Meetings: agenda ----

func (s *Service) AddAgendaItem(ctx context.Context, id, title, description string) (*meeting.Meeting, error) {
	return s.withMeeting(ctx, id, "add_agenda_item", func(m *meeting.Meeting) error {
		_, err := m.AddAgendaItem(title, description)
		return err
	})
}

func (s *Service) MarkAgendaCompleted(ctx context.Context, id, itemID string) (*meeting.Meeting, error) {
	return s.withMeeting(ctx, id, "mark_agenda_completed", func(m *meeting.Meeting) error {
		return m.MarkAgendaCompleted(itemID)
	})
}

func (s *Service) RemoveAgendaItem(ctx context.Context, id, itemID string) (*meeting.Meeting, error) {
	return s.withMeeting(ctx, id, "remove_agenda_item", func(m *meeting.Meeting) error {
		return m.RemoveAgendaItem(itemID)
	})
}

// ---- Meetings: minutes ----

func (s *Service) GenerateMinutes(ctx context.Context, id, generatorID string) (*meeting.MinutesVersion, error) {
	var version *meeting.MinutesVersion
	_, err := s.withMeeting(ctx, id, "generate_minutes", func(m *meeting.Meeting) error {
		generator, err := s.resolveGenerator(m, generatorID)
		if err != nil {
			return err
		}
		provider, err := s.providers.For(generator.ModelConfig)
		if err != nil {
			return err
		}
		version, err = minutes.Generate(ctx, provider, m, generator)
		return err
	})
	if err == nil {
		s.hubs.get(id).Publish(broadcast.Event{Type: broadcast.EventMinutesGenerated, MinutesVersion: version.Version})
	}
	return version, err
}

// UpdateMinutes overwrites the current minutes content as a manual edit,
// versioned identically to a generated one.
func (s *Service) UpdateMinutes(ctx context.Context, id, content, editorID string) (*meeting.MinutesVersion, error) {
	var version *meeting.MinutesVersion
	_, err := s.withMeeting(ctx, id, "update_minutes", func(m *meeting.Meeting) error {
		v := 1
		if len(m.MinutesHistory) > 0 {
			v = m.MinutesHistory[len(m.MinutesHistory)-1].Version + 1
		}
		mv := meeting.MinutesVersion{
			ID:        uuid.NewString(),
			Version:   v,
			Content:   content,
			Summary:   content,
			CreatedAt: time.Now(),
			CreatedBy: editorID,
		}
		m.MinutesHistory = append(m.MinutesHistory, mv)
		m.CurrentMinutes = &m.MinutesHistory[len(m.MinutesHistory)-1]
		version = m.CurrentMinutes
		return nil
	})
	return version, err
}

// MinutesHistory returns every minutes version ever generated for id.
func (s *Service) MinutesHistory(id string) ([]meeting.MinutesVersion, error) {
	m, err := s.store.LoadMeeting(id)
	if err != nil {
		return nil, err
	}
	return m.MinutesHistory, nil
}

func (s *Service) resolveGenerator(m *meeting.Meeting, generatorID string) (meeting.Agent, error) {
	if generatorID != "" {
		if p, ok := m.FindParticipant(generatorID); ok {
			return *p, nil
		}
		return meeting.Agent{}, meeting.NewError(meeting.KindNotFound, "meetingsvc", "resolve_generator", "generator id is not a participant", nil)
	}
	if !m.ModeratorIsUser() {
		if p, ok := m.FindParticipant(m.Moderator); ok {
			return *p, nil
		}
	}
	if len(m.Participants) == 0 {
		return meeting.Agent{}, meeting.NewError(meeting.KindValidation, "meetingsvc", "resolve_generator", "meeting has no participants to generate with", nil)
	}
	return m.Participants[0], nil
}

// ---- Meetings: mind map ----

func (s *Service) GenerateMindMap(ctx context.Context, id, generatorID string) (*meeting.MindMap, error) {
	var mm *meeting.MindMap
	_, err := s.withMeeting(ctx, id, "generate_mind_map", func(m *meeting.Meeting) error {
		generator, err := s.resolveGenerator(m, generatorID)
		if err != nil {
			return err
		}
		provider, err := s.providers.For(generator.ModelConfig)
		if err != nil {
			return err
		}
		mm, err = mindmap.Generate(ctx, provider, m, generator)
		return err
	})
	if err == nil {
		s.hubs.get(id).Publish(broadcast.Event{Type: broadcast.EventMindMapGenerated, MindMapVersion: mm.Version})
	}
	return mm, err
}

// UpdateMindMap replaces the stored mind-map document wholesale, e.g.
// after a client-side manual edit.
func (s *Service) UpdateMindMap(ctx context.Context, id string, mm *meeting.MindMap) (*meeting.MindMap, error) {
	_, err := s.withMeeting(ctx, id, "update_mind_map", func(m *meeting.Meeting) error {
		mm.Version = 1
		if m.MindMap != nil {
			mm.Version = m.MindMap.Version + 1
		}
		m.MindMap = mm
		return nil
	})
	return mm, err
}

// ---- Export ----

// ExportFormat selects a meeting export rendering.
type ExportFormat string

const (
	ExportMarkdown ExportFormat = "markdown"
	ExportJSON     ExportFormat = "json"
)

// MindMapExportFormat selects a mind-map export rendering.
type MindMapExportFormat string

const (
	MindMapExportPNG      MindMapExportFormat = "png"
	MindMapExportSVG      MindMapExportFormat = "svg"
	MindMapExportJSON     MindMapExportFormat = "json"
	MindMapExportMarkdown MindMapExportFormat = "markdown"
)

// Export renders a meeting to the requested format (§6.4).
func (s *Service) Export(id string, format ExportFormat) ([]byte, error) {
	m, err := s.store.LoadMeeting(id)
	if err != nil {
		return nil, err
	}
	switch format {
	case ExportJSON:
		return exportJSON(m)
	default:
		return []byte(exportMarkdown(m)), nil
	}
}

// ExportMindMap renders a meeting's mind-map to the requested format.
func (s *Service) ExportMindMap(id string, format MindMapExportFormat) ([]byte, error) {
	m, err := s.store.LoadMeeting(id)
	if err != nil {
		return nil, err
	}
	if m.MindMap == nil {
		return nil, meeting.NewError(meeting.KindNotFound, "meetingsvc", "export_mind_map", "meeting has no mind map", nil)
	}
	switch format {
	case MindMapExportPNG:
		return mindmap.RenderPNG(m.MindMap)
	case MindMapExportSVG:
		return []byte(mindmap.RenderSVG(m.MindMap)), nil
	case MindMapExportMarkdown:
		return []byte(mindmap.ExportMarkdown(m.MindMap)), nil
	default:
		return exportJSON(m.MindMap)
	}
}

// SubscribeEvents returns a live subscription to id's broadcast hub.
func (s *Service) SubscribeEvents(id string) *broadcast.Subscription {
	return s.hubs.get(id).Subscribe()
}

func (s *Service) logErr(operation string, err error) {
	if err != nil {
		s.opLog(operation).Error("operation failed", "error", err)
	}
}
