package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conclave-ai/conclave/meeting"
)

// FileStore persists one JSON document per Agent/Meeting under a data
// directory, writing via a temp-file-plus-rename so a save is atomic with
// respect to a concurrent load.
type FileStore struct {
	agentsDir   string
	meetingsDir string
}

// NewFileStore creates a FileStore rooted at dataDir, creating the
// agents/ and meetings/ subdirectories if needed.
func NewFileStore(dataDir string) (*FileStore, error) {
	fs := &FileStore{
		agentsDir:   filepath.Join(dataDir, "agents"),
		meetingsDir: filepath.Join(dataDir, "meetings"),
	}
	if err := os.MkdirAll(fs.agentsDir, 0755); err != nil {
		return nil, persistenceErr("init", err)
	}
	if err := os.MkdirAll(fs.meetingsDir, 0755); err != nil {
		return nil, persistenceErr("init", err)
	}
	return fs, nil
}

func persistenceErr(op string, err error) error {
	return meeting.NewError(meeting.KindPersistenceFailed, "store", op, err.Error(), err)
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return persistenceErr("save", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return persistenceErr("save", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return persistenceErr("save", err)
	}
	return nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return meeting.NewError(meeting.KindNotFound, "store", "load", fmt.Sprintf("%s not found", filepath.Base(path)), err)
		}
		return persistenceErr("load", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return persistenceErr("load", err)
	}
	return nil
}

func listJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, persistenceErr("list", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, e.Name()[:len(e.Name())-len(".json")])
	}
	return ids, nil
}

func (fs *FileStore) agentPath(id string) string   { return filepath.Join(fs.agentsDir, id+".json") }
func (fs *FileStore) meetingPath(id string) string { return filepath.Join(fs.meetingsDir, id+".json") }

func (fs *FileStore) SaveAgent(a *meeting.Agent) error {
	return saveJSON(fs.agentPath(a.ID), a)
}

func (fs *FileStore) LoadAgent(id string) (*meeting.Agent, error) {
	var a meeting.Agent
	if err := loadJSON(fs.agentPath(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (fs *FileStore) ListAgents() ([]meeting.Agent, error) {
	ids, err := listJSONFiles(fs.agentsDir)
	if err != nil {
		return nil, err
	}
	out := make([]meeting.Agent, 0, len(ids))
	for _, id := range ids {
		a, err := fs.LoadAgent(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (fs *FileStore) DeleteAgent(id string) error {
	if err := os.Remove(fs.agentPath(id)); err != nil && !os.IsNotExist(err) {
		return persistenceErr("delete", err)
	}
	return nil
}

func (fs *FileStore) SaveMeeting(m *meeting.Meeting) error {
	return saveJSON(fs.meetingPath(m.ID), m)
}

func (fs *FileStore) LoadMeeting(id string) (*meeting.Meeting, error) {
	var m meeting.Meeting
	if err := loadJSON(fs.meetingPath(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (fs *FileStore) ListMeetings() ([]meeting.Meeting, error) {
	ids, err := listJSONFiles(fs.meetingsDir)
	if err != nil {
		return nil, err
	}
	out := make([]meeting.Meeting, 0, len(ids))
	for _, id := range ids {
		m, err := fs.LoadMeeting(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (fs *FileStore) DeleteMeeting(id string) error {
	if err := os.Remove(fs.meetingPath(id)); err != nil && !os.IsNotExist(err) {
		return persistenceErr("delete", err)
	}
	return nil
}
