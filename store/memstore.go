package store

import (
	"encoding/json"
	"sync"

	"github.com/conclave-ai/conclave/meeting"
)

// MemStore is an in-memory Store for tests. Every save/load deep-copies
// via a JSON round trip so callers can never observe or corrupt another
// caller's in-memory state through aliasing.
type MemStore struct {
	mu       sync.RWMutex
	agents   map[string]meeting.Agent
	meetings map[string]meeting.Meeting
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		agents:   make(map[string]meeting.Agent),
		meetings: make(map[string]meeting.Meeting),
	}
}

func deepCopy[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (s *MemStore) SaveAgent(a *meeting.Agent) error {
	cp, err := deepCopy(*a)
	if err != nil {
		return persistenceErr("save", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = cp
	return nil
}

func (s *MemStore) LoadAgent(id string) (*meeting.Agent, error) {
	s.mu.RLock()
	a, ok := s.agents[id]
	s.mu.RUnlock()
	if !ok {
		return nil, meeting.NewError(meeting.KindNotFound, "store", "load", "agent not found", nil)
	}
	cp, err := deepCopy(a)
	if err != nil {
		return nil, persistenceErr("load", err)
	}
	return &cp, nil
}

func (s *MemStore) ListAgents() ([]meeting.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]meeting.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp, err := deepCopy(a)
		if err != nil {
			return nil, persistenceErr("list", err)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemStore) DeleteAgent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, id)
	return nil
}

func (s *MemStore) SaveMeeting(m *meeting.Meeting) error {
	cp, err := deepCopy(*m)
	if err != nil {
		return persistenceErr("save", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[m.ID] = cp
	return nil
}

func (s *MemStore) LoadMeeting(id string) (*meeting.Meeting, error) {
	s.mu.RLock()
	m, ok := s.meetings[id]
	s.mu.RUnlock()
	if !ok {
		return nil, meeting.NewError(meeting.KindNotFound, "store", "load", "meeting not found", nil)
	}
	cp, err := deepCopy(m)
	if err != nil {
		return nil, persistenceErr("load", err)
	}
	return &cp, nil
}

func (s *MemStore) ListMeetings() ([]meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]meeting.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		cp, err := deepCopy(m)
		if err != nil {
			return nil, persistenceErr("list", err)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemStore) DeleteMeeting(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meetings, id)
	return nil
}
