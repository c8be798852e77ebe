package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/wifiprov/internal/metrics"
	"github.com/muurk/wifiprov/internal/radio"
)

type scriptedReporter struct {
	mu     sync.Mutex
	states []radio.LinkState
	err    error
}

func (r *scriptedReporter) set(st radio.LinkState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = []radio.LinkState{st}
	r.err = err
}

func (r *scriptedReporter) LinkState(ctx context.Context) (radio.LinkState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return radio.LinkState{}, r.err
	}
	return r.states[0], nil
}

func TestWatcherTracksTransitions(t *testing.T) {
	rep := &scriptedReporter{}
	rep.set(radio.LinkState{Mode: radio.ModeAP, Interface: "wlan0"}, nil)

	var changes []string
	w := NewWatcher(rep, time.Hour, WithOnChange(func(from, to Status) {
		changes = append(changes, string(from.Mode)+"->"+string(to.Mode))
	}))
	ctx := context.Background()

	w.Poll(ctx)
	first := w.Current()
	assert.Equal(t, radio.ModeAP, first.Mode)

	w.Poll(ctx)
	assert.Equal(t, first.Since, w.Current().Since, "unchanged mode keeps its timestamp")

	rep.set(radio.LinkState{Mode: radio.ModeConnected, SSID: "Cafe", IP: "192.168.1.42"}, nil)
	w.Poll(ctx)
	cur := w.Current()
	assert.Equal(t, "Cafe", cur.SSID)
	assert.Equal(t, "192.168.1.42", cur.IP)

	rep.set(radio.LinkState{}, errors.New("nl80211 unavailable"))
	w.Poll(ctx)
	assert.Equal(t, radio.ModeUnknown, w.Current().Mode)

	assert.Equal(t, []string{"unknown->ap", "ap->connected", "connected->unknown"}, changes)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LinkMode.WithLabelValues("unknown")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.LinkMode.WithLabelValues("connected")))
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	rep := &scriptedReporter{}
	rep.set(radio.LinkState{Mode: radio.ModeDisconnected}, nil)
	w := NewWatcher(rep, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return w.Current().Mode == radio.ModeDisconnected
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
