package tasks

import (
	"sync"

	"github.com/desertthunder/scribe/internal/models"
)

// subscriberBuffer bounds how far a slow consumer may lag before it is
// pruned. Progress events are coarse, so a small buffer is plenty.
const subscriberBuffer = 16

// Hub fans task snapshots out to per-task subscribers. Publishing never
// blocks: a subscriber whose buffer is full is dropped and its channel
// closed, on the theory that a stalled stream is better torn down than
// allowed to stall the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[string][]chan *models.Task
}

func NewHub() *Hub {
	return &Hub{subs: map[string][]chan *models.Task{}}
}

// Subscribe registers for snapshots of the given task. The caller must
// eventually call Unsubscribe with the returned channel.
func (h *Hub) Subscribe(taskID string) chan *models.Task {
	ch := make(chan *models.Task, subscriberBuffer)
	h.mu.Lock()
	h.subs[taskID] = append(h.subs[taskID], ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call for
// a channel the hub already pruned.
func (h *Hub) Unsubscribe(taskID string, ch chan *models.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[taskID]
	for i, sub := range list {
		if sub == ch {
			h.subs[taskID] = append(list[:i], list[i+1:]...)
			close(ch)
			break
		}
	}
	if len(h.subs[taskID]) == 0 {
		delete(h.subs, taskID)
	}
}

// Publish delivers a snapshot to every subscriber of the task. Slow
// subscribers are pruned rather than waited on.
func (h *Hub) Publish(taskID string, snapshot *models.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[taskID]
	kept := list[:0]
	for _, ch := range list {
		select {
		case ch <- snapshot:
			kept = append(kept, ch)
		default:
			close(ch)
		}
	}
	if len(kept) == 0 {
		delete(h.subs, taskID)
	} else {
		h.subs[taskID] = kept
	}
}

// SubscriberCount reports how many subscribers a task currently has.
func (h *Hub) SubscriberCount(taskID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[taskID])
}
