// Package metrics exposes Prometheus instrumentation for the provisioning
// server and adapts it to the session's Recorder interface.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/wifiprov/internal/provision"
)

const namespace = "wifiprov"

var (
	// RequestsTotal counts scan and connect requests by admission result
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Scan and connect requests by operation and admission result",
		},
		[]string{"operation", "result"},
	)

	// OutcomesTotal counts terminal outcomes of accepted requests
	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Terminal outcomes of accepted requests",
		},
		[]string{"operation", "outcome"},
	)

	// StaleResultsTotal counts radio completions discarded as stale
	StaleResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Radio results discarded because their request was no longer pending",
		},
		[]string{"operation"},
	)

	// OperationDuration observes how long accepted requests took
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time from acceptance to terminal outcome",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"operation"},
	)

	// SessionPhase is 1 for the current phase and 0 for the others
	SessionPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_phase",
			Help:      "Current session phase (1 = active)",
		},
		[]string{"phase"},
	)

	// ConnectedClients tracks open channel connections
	ConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Open UI channel connections",
		},
	)

	// ChannelEventsTotal counts channel events by direction and name
	ChannelEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_events_total",
			Help:      "Events crossing the UI channel",
		},
		[]string{"direction", "event"},
	)

	// LinkMode is 1 for the current wireless link mode and 0 for the others
	LinkMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_mode",
			Help:      "Current wireless link mode (1 = active)",
		},
		[]string{"mode"},
	)
)

var phases = []provision.Phase{provision.PhaseIdle, provision.PhaseScanning, provision.PhaseConnecting}

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		RequestsTotal,
		OutcomesTotal,
		StaleResultsTotal,
		OperationDuration,
		SessionPhase,
		ConnectedClients,
		ChannelEventsTotal,
		LinkMode,
	}
}

// Register adds all collectors to reg. A nil reg means the default
// registry. Collectors already present in reg are left as they are.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	setPhase(provision.PhaseIdle)
	return nil
}

func setPhase(p provision.Phase) {
	for _, ph := range phases {
		v := 0.0
		if ph == p {
			v = 1
		}
		SessionPhase.WithLabelValues(ph.String()).Set(v)
	}
}

// SetLinkMode marks mode as the active link mode.
func SetLinkMode(mode string, all []string) {
	for _, m := range all {
		v := 0.0
		if m == mode {
			v = 1
		}
		LinkMode.WithLabelValues(m).Set(v)
	}
}

// ChannelEvent counts one event crossing the channel.
func ChannelEvent(direction, event string) {
	ChannelEventsTotal.WithLabelValues(direction, event).Inc()
}

// Recorder implements provision.Recorder on the package collectors.
type Recorder struct{}

var _ provision.Recorder = Recorder{}

func (Recorder) RequestAccepted(op provision.Operation) {
	RequestsTotal.WithLabelValues(op.String(), "accepted").Inc()
}

func (Recorder) RequestRejected(op provision.Operation, reason provision.ErrorType) {
	result := "rejected"
	switch reason {
	case provision.ErrTypeBusy:
		result = "busy"
	case provision.ErrTypeValidation:
		result = "invalid"
	}
	RequestsTotal.WithLabelValues(op.String(), result).Inc()
}

func (Recorder) OutcomeRecorded(o provision.Outcome) {
	OutcomesTotal.WithLabelValues(o.Op.String(), o.Label()).Inc()
	OperationDuration.WithLabelValues(o.Op.String()).Observe(o.Duration.Seconds())
}

func (Recorder) StaleDiscarded(op provision.Operation) {
	StaleResultsTotal.WithLabelValues(op.String()).Inc()
}

func (Recorder) PhaseChanged(p provision.Phase) {
	setPhase(p)
}
