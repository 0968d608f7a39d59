package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink counts events by name and routing
type PrometheusSink struct {
	events *prometheus.CounterVec
}

// NewPrometheusSink registers the event counter with reg
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet_swap",
		Name:      "events_total",
		Help:      "Total analytics events emitted",
	}, []string{"event", "routing"})
	reg.MustRegister(events)
	return &PrometheusSink{events: events}
}

func (s *PrometheusSink) Emit(name string, props map[string]any) {
	routing := ""
	if r, ok := props["routing"]; ok {
		routing = fmt.Sprint(r)
	}
	s.events.WithLabelValues(name, routing).Inc()
}
