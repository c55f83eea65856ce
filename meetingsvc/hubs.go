package meetingsvc

import (
	"sync"

	"github.com/conclave-ai/conclave/broadcast"
)

// hubRegistry owns one broadcast.Hub per meeting, created lazily on
// first use and torn down when its meeting is deleted.
type hubRegistry struct {
	mu   sync.Mutex
	hubs map[string]*broadcast.Hub
}

func newHubRegistry() *hubRegistry {
	return &hubRegistry{hubs: make(map[string]*broadcast.Hub)}
}

func (r *hubRegistry) get(meetingID string) *broadcast.Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[meetingID]
	if !ok {
		h = broadcast.NewHub()
		r.hubs[meetingID] = h
	}
	return h
}

func (r *hubRegistry) close(meetingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hubs[meetingID]; ok {
		h.Close()
		delete(r.hubs, meetingID)
	}
}
