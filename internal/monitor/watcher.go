// Package monitor tracks the wireless link mode (access point, connected,
// disconnected) by polling a radio.LinkReporter.
package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/metrics"
	"github.com/muurk/wifiprov/internal/radio"
)

// DefaultInterval is the poll period used when none is configured.
const DefaultInterval = time.Second

// Status is the most recent link state and when its mode last changed.
type Status struct {
	radio.LinkState
	Since time.Time `json:"since"`
}

// Watcher polls a LinkReporter and records mode transitions.
type Watcher struct {
	reporter radio.LinkReporter
	interval time.Duration
	onChange func(from, to Status)

	mu      sync.RWMutex
	current Status
	lastErr string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithOnChange registers a callback invoked after every mode change.
func WithOnChange(fn func(from, to Status)) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// NewWatcher creates a watcher. A non-positive interval uses DefaultInterval.
func NewWatcher(reporter radio.LinkReporter, interval time.Duration, opts ...Option) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &Watcher{
		reporter: reporter,
		interval: interval,
		current:  Status{LinkState: radio.LinkState{Mode: radio.ModeUnknown}, Since: time.Now()},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	logging.Debug("Link monitor started", zap.Duration("interval", w.interval))

	w.Poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("Link monitor stopped")
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll reads the link state once.
func (w *Watcher) Poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, w.interval*5)
	defer cancel()

	state, err := w.reporter.LinkState(pollCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.mu.Lock()
		repeat := w.lastErr == err.Error()
		w.lastErr = err.Error()
		w.mu.Unlock()
		if !repeat {
			logging.Warn("Failed to read link state", zap.Error(err))
		}
		state.Mode = radio.ModeUnknown
	} else {
		w.mu.Lock()
		w.lastErr = ""
		w.mu.Unlock()
	}
	w.update(state)
}

func (w *Watcher) update(state radio.LinkState) {
	w.mu.Lock()
	prev := w.current
	changed := prev.Mode != state.Mode || prev.SSID != state.SSID
	next := Status{LinkState: state, Since: prev.Since}
	if changed {
		next.Since = time.Now()
	}
	w.current = next
	w.mu.Unlock()

	if !changed {
		return
	}

	logging.LogLinkChange(string(prev.Mode), string(state.Mode), state.SSID, state.IP)
	metrics.SetLinkMode(string(state.Mode), modeNames())
	if w.onChange != nil {
		w.onChange(prev, next)
	}
}

// Current returns the latest status.
func (w *Watcher) Current() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func modeNames() []string {
	modes := radio.AllModes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return names
}
