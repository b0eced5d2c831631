package services

import (
	"sync"
	"time"

	"github.com/accessdeploy/dto"
	"github.com/accessdeploy/models"
)

// closedRetention is how long a terminal deployment stays flagged so that
// late subscribers get an immediately closed channel. Older entries are
// pruned; subscribers arriving later are handled by the snapshot check in
// the SSE handler.
const closedRetention = time.Hour

// StatusHub fans deployment status and log updates out to subscribers. Each
// deployment gets its own set of channels; they are all closed the moment the
// deployment reaches a terminal state, so subscriber lifetimes are bounded by
// the deployment's.
type StatusHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan dto.StatusEvent]struct{}
	closed      map[string]time.Time
	now         func() time.Time
}

// NewStatusHub creates an empty status hub
func NewStatusHub() *StatusHub {
	return &StatusHub{
		subscribers: make(map[string]map[chan dto.StatusEvent]struct{}),
		closed:      make(map[string]time.Time),
		now:         time.Now,
	}
}

// Subscribe returns a channel of events for one deployment plus a cancel
// function. The channel closes when the deployment reaches a terminal state
// or the subscriber cancels, whichever is first. Subscribing to an already
// terminal deployment returns an immediately closed channel.
func (h *StatusHub) Subscribe(deploymentID string) (<-chan dto.StatusEvent, func()) {
	ch := make(chan dto.StatusEvent, 16)

	h.mu.Lock()
	if _, done := h.closed[deploymentID]; done {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	subs, ok := h.subscribers[deploymentID]
	if !ok {
		subs = make(map[chan dto.StatusEvent]struct{})
		h.subscribers[deploymentID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[deploymentID]; ok {
			if _, present := subs[ch]; present {
				delete(subs, ch)
				close(ch)
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of a deployment. A slow
// subscriber's full buffer drops the event for that subscriber rather than
// blocking the orchestrator.
func (h *StatusHub) Publish(event dto.StatusEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[event.DeploymentID] {
		select {
		case ch <- event:
		default:
		}
	}
	if event.Terminal {
		h.closeLocked(event.DeploymentID)
	}
}

// PublishStatus is a convenience wrapper for plain status changes
func (h *StatusHub) PublishStatus(deploymentID string, status models.DeploymentStatus) {
	h.Publish(dto.StatusEvent{
		DeploymentID: deploymentID,
		Status:       string(status),
		Terminal:     status.IsTerminal(),
	})
}

// closeLocked closes all channels for a deployment and prunes aged terminal
// flags so the map stays bounded. Caller holds the lock.
func (h *StatusHub) closeLocked(deploymentID string) {
	for ch := range h.subscribers[deploymentID] {
		close(ch)
	}
	delete(h.subscribers, deploymentID)

	now := h.now()
	h.closed[deploymentID] = now
	for id, at := range h.closed {
		if now.Sub(at) > closedRetention {
			delete(h.closed, id)
		}
	}
}
