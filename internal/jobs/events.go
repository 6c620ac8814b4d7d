package jobs

import (
	"sync"
	"time"

	"speech-orchestrator/internal/domain"
)

// EventType classifies messages emitted by the orchestrator and pipeline.
type EventType string

const (
	// EventTypeModel reports the outcome of a model load.
	EventTypeModel EventType = "model"
	// EventTypeRecognition reports live recognition start/stop.
	EventTypeRecognition EventType = "recognition"
	// EventTypeStatus is a human-readable state change.
	EventTypeStatus EventType = "status"
	// EventTypeProgress carries a 0-100 percent with a message.
	EventTypeProgress EventType = "progress"
	// EventTypeText carries a decoded text fragment.
	EventTypeText EventType = "text"
	// EventTypeError reports a fault; Status is set when the fault ends a job.
	EventTypeError EventType = "error"
	// EventTypeResult is the completion event for a successful job.
	EventTypeResult EventType = "result"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq         int64            `json:"seq"`
	Timestamp   time.Time        `json:"timestamp"`
	JobID       string           `json:"jobId,omitempty"`
	Type        EventType        `json:"type"`
	Status      domain.JobStatus `json:"status,omitempty"`
	Message     string           `json:"message,omitempty"`
	Percent     int              `json:"percent,omitempty"`
	Text        string           `json:"text,omitempty"`
	Model       string           `json:"model,omitempty"`
	Success     bool             `json:"success,omitempty"`
	Started     bool             `json:"started,omitempty"`
	EmptyResult bool             `json:"emptyResult,omitempty"`
}

// Emitter publishes events for UI consumption. Satisfied by EventBus and by
// the bootstrap layer's push-notifying wrapper.
type Emitter interface {
	Publish(Event) Event
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
