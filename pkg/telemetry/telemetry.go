package telemetry

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Event names
const (
	EventSwapSubmitted     = "swap_submitted"
	EventOrderSubmitted    = "uniswapx_order_submitted"
	EventTransferSubmitted = "transfer_submitted"
	EventWrapSubmitted     = "wrap_submitted"
	EventSubmissionFailed  = "submission_failed"
)

// Sink receives analytics events. Emit must not block.
type Sink interface {
	Emit(name string, props map[string]any)
}

// LogSink writes events to the logger
type LogSink struct {
	logger *log.Entry
}

// NewLogSink creates a logging sink
func NewLogSink() *LogSink {
	return &LogSink{logger: log.WithField("component", "telemetry")}
}

func (s *LogSink) Emit(name string, props map[string]any) {
	s.logger.WithFields(log.Fields(props)).Debug(name)
}

// Multi fans an event out to several sinks
type Multi []Sink

func (m Multi) Emit(name string, props map[string]any) {
	for _, s := range m {
		s.Emit(name, props)
	}
}

// Nop discards events
type Nop struct{}

func (Nop) Emit(string, map[string]any) {}

// Event is a recorded emission
type Event struct {
	Name  string
	Props map[string]any
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(name string, props map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: name, Props: props})
}

// Events returns a snapshot of recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
