// Package live streams committed ledger events to connected browsers over
// WebSocket so open dashboards refresh balances without polling.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/allowance/internal/notify"
)

// Hub tracks connected subscribers and fans events out to them. It
// satisfies notify.Publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	logger      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger,
	}
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	h.mu.Unlock()
}

// remove is safe to call more than once for the same subscriber.
func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[s]; ok {
		delete(h.subscribers, s)
		close(s.outbox)
	}
	h.mu.Unlock()
}

// Publish never blocks on a slow subscriber; its copy of the event is dropped.
func (h *Hub) Publish(_ context.Context, e notify.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for s := range h.subscribers {
		select {
		case s.outbox <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("live event dropped for slow subscribers", "kind", e.Kind, "dropped", dropped)
	}
	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
