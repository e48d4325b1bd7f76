// Package events defines the progress events TradeLens broadcasts to
// connected clients while it ingests files and runs analyses.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	AnalysisStarted   = "analysis.started"
	AnalysisNews      = "analysis.news"
	AnalysisCompleted = "analysis.completed"
	AnalysisFailed    = "analysis.failed"
	IngestFile        = "ingest.file"
	TechniquesStaged  = "techniques.staged"
)

// Event is one message pushed to subscribers.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	Time time.Time `json:"time"`
}

// New stamps an event with the current time.
func New(typ string, data any) Event {
	return Event{Type: typ, Data: data, Time: time.Now().UTC()}
}

// Publisher delivers events. Implementations must not block the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// OrNop returns p, or Nop when p is nil.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return Nop{}
	}
	return p
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}

// Func adapts a function to Publisher.
type Func func(ctx context.Context, e Event)

func (f Func) Publish(ctx context.Context, e Event) { f(ctx, e) }
