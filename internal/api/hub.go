package api

import (
	"sync"

	"github.com/Hoarfrost42/Agent-Round/internal/round"
)

const hubSubscriberBuffer = 64

// eventHub fans round events out to websocket subscribers. The SSE response
// on the message endpoint is the primary delivery path; the hub mirrors it
// for observers of the same session. Slow subscribers lose events rather
// than stalling the round.
type eventHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan round.Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[string]map[chan round.Event]struct{})}
}

func (h *eventHub) Subscribe(sessionID string) (<-chan round.Event, func()) {
	ch := make(chan round.Event, hubSubscriberBuffer)
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan round.Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *eventHub) Publish(sessionID string, event round.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
