package app

import (
	"sync"

	"scholarship-exam-service/internal/domain"
)

// LeaderboardHub fans live leaderboard snapshots out to subscribers per test.
type LeaderboardHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{subscribers: make(map[string]map[chan domain.Leaderboard]struct{})}
}

// Subscribe registers a channel primed with initial. The caller must invoke the
// returned cancel function to avoid leaks.
func (h *LeaderboardHub) Subscribe(testID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[testID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.subscribers[testID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[testID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, testID)
		}
	}
	return ch, cancel
}

// Watched reports whether any subscriber is attached to testID.
func (h *LeaderboardHub) Watched(testID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[testID]) > 0
}

// Publish never blocks: a full subscriber loses its oldest snapshot.
func (h *LeaderboardHub) Publish(testID string, lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[testID] {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
