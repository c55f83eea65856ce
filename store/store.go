// Package store implements the entity store (§4.1): durable load/save/
// delete of Agents and Meetings, with a file-backed implementation using
// atomic per-entity rename and an in-memory implementation for tests.
package store

import "github.com/conclave-ai/conclave/meeting"

// Store is the persistence contract the boundary service depends on.
type Store interface {
	SaveAgent(a *meeting.Agent) error
	LoadAgent(id string) (*meeting.Agent, error)
	ListAgents() ([]meeting.Agent, error)
	DeleteAgent(id string) error

	SaveMeeting(m *meeting.Meeting) error
	LoadMeeting(id string) (*meeting.Meeting, error)
	ListMeetings() ([]meeting.Meeting, error)
	DeleteMeeting(id string) error
}
