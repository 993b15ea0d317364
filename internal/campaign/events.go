package campaign

import (
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

type EventType string

const (
	EventStarted   EventType = "started"
	EventRecipient EventType = "recipient"
	EventState     EventType = "state"
	EventCompleted EventType = "completed"
)

// Event is emitted by the runner after its state has been updated.
// Recipient, Outcome and Entry are set only for EventRecipient.
// Seq increases by one per event of a runner, in the order the state changed.
type Event struct {
	Seq       uint64              `json:"seq"`
	Type      EventType           `json:"type"`
	RunID     uuid.UUID           `json:"run_id"`
	State     State               `json:"state"`
	Stats     model.CampaignStats `json:"stats"`
	Position  int                 `json:"position"`
	Cancelled bool                `json:"cancelled,omitempty"`
	Recipient *model.Recipient    `json:"recipient,omitempty"`
	Outcome   *model.Outcome      `json:"outcome,omitempty"`
	Entry     *model.LogEntry     `json:"entry,omitempty"`
	Elapsed   time.Duration       `json:"elapsed_ns,omitempty"`
	At        time.Time           `json:"at"`
}

// Observer receives every event of the runner, one at a time and in Seq order.
// It runs on whichever runner goroutine is draining the queue (the dispatch loop,
// or the caller of Start, Cancel or Reset), so it must not block. It may call
// back into the runner.
type Observer func(Event)

// Subscribe registers obs for all future events of the runner.
func (r *Runner) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	r.obsMu.Lock()
	r.observers = append(r.observers, obs)
	r.obsMu.Unlock()
}

// emitLocked stamps ev and queues it for delivery. Callers hold r.mu and call
// flush after releasing it.
func (r *Runner) emitLocked(ev Event) {
	r.seq++
	ev.Seq = r.seq
	r.outbox = append(r.outbox, ev)
}

// flush delivers queued events. Only one goroutine delivers at a time; a flush
// that finds another delivery in progress leaves its events to that goroutine.
func (r *Runner) flush() {
	r.mu.Lock()
	if r.delivering {
		r.mu.Unlock()
		return
	}
	r.delivering = true
	for len(r.outbox) > 0 {
		batch := r.outbox
		r.outbox = nil
		r.mu.Unlock()

		for _, ev := range batch {
			r.deliver(ev)
		}

		r.mu.Lock()
		r.delivered += uint64(len(batch))
		r.flushed.Broadcast()
	}
	r.delivering = false
	r.mu.Unlock()
}

// waitDelivered blocks until every event up to seq has reached the observers.
func (r *Runner) waitDelivered(seq uint64) {
	r.mu.Lock()
	for r.delivered < seq {
		r.flushed.Wait()
	}
	r.mu.Unlock()
}

func (r *Runner) deliver(ev Event) {
	r.obsMu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.obsMu.RUnlock()

	for _, obs := range observers {
		obs(ev)
	}
}
