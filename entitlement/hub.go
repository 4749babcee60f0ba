package entitlement

import (
	"sync"

	"go-careerdesk/web/db"
)

// Change is published after every successful write.
type Change struct {
	UserID      string         `json:"user_id"`
	Version     int64          `json:"version"`
	Entitlement db.Entitlement `json:"entitlement"`
}

type subscriber struct {
	userID string
	ch     chan Change
}

// Hub fans entitlement changes out to in-process subscribers. Delivery is
// best effort: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe returns a channel of changes for userID, or for every user when
// userID is empty. Call cancel to unsubscribe; it closes the channel.
func (h *Hub) Subscribe(userID string, buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	s := &subscriber{userID: userID, ch: make(chan Change, buffer)}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			close(s.ch)
			h.mu.Unlock()
		})
	}
	return s.ch, cancel
}

func (h *Hub) Publish(rec db.Entitlement) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.userID != "" && s.userID != rec.UserID {
			continue
		}
		select {
		case s.ch <- Change{UserID: rec.UserID, Version: rec.Version, Entitlement: rec.Clone()}:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
