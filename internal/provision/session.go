package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
)

// Default bounded waits for radio calls.
const (
	DefaultScanTimeout    = 10 * time.Second
	DefaultConnectTimeout = 30 * time.Second
)

// Radio performs the slow, fallible hardware work. Implementations should
// honour ctx cancellation where they can; the session does not depend on it.
type Radio interface {
	Scan(ctx context.Context) ([]NetworkInfo, error)
	Connect(ctx context.Context, req ConnectRequest) (ConnectResult, error)
}

// Publisher receives every terminal outcome. Publish is called from the
// session's loop and must not block.
type Publisher interface {
	Publish(Outcome)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Outcome)

// Publish calls f(o).
func (f PublisherFunc) Publish(o Outcome) { f(o) }

// Recorder observes session activity for metrics.
type Recorder interface {
	RequestAccepted(op Operation)
	RequestRejected(op Operation, reason ErrorType)
	OutcomeRecorded(o Outcome)
	StaleDiscarded(op Operation)
	PhaseChanged(p Phase)
}

type nopRecorder struct{}

func (nopRecorder) RequestAccepted(Operation)            {}
func (nopRecorder) RequestRejected(Operation, ErrorType) {}
func (nopRecorder) OutcomeRecorded(Outcome)              {}
func (nopRecorder) StaleDiscarded(Operation)             {}
func (nopRecorder) PhaseChanged(Phase)                   {}

// Config holds session tunables.
type Config struct {
	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
	SortOrder      SortOrder
}

// DefaultConfig returns the standard timeouts with signal ordering.
func DefaultConfig() Config {
	return Config{
		ScanTimeout:    DefaultScanTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		SortOrder:      SortBySignal,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithPublisher subscribes p to outcomes.
func WithPublisher(p Publisher) Option {
	return func(s *Session) {
		s.Subscribe(p)
	}
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	Phase         Phase     `json:"phase"`
	PendingID     uint64    `json:"pending_request_id,omitempty"`
	PendingOp     string    `json:"pending_operation,omitempty"`
	LastRequestID uint64    `json:"last_request_id"`
	Since         time.Time `json:"since"`
}

type request struct {
	op     Operation
	conn   ConnectRequest
	origin Origin
	reply  chan reply
}

type reply struct {
	id  uint64
	err error
}

type completion struct {
	id       uint64
	op       Operation
	networks []NetworkInfo
	result   ConnectResult
	err      error
	timedOut bool
}

// Session is the process-wide provisioning state machine. All state
// transitions happen on the goroutine running Run; radio calls run on their
// own goroutines and report back through a channel.
type Session struct {
	radio    Radio
	cfg      Config
	recorder Recorder

	pubMu      sync.RWMutex
	publishers []Publisher

	requests    chan request
	completions chan completion
	done        chan struct{}
	running     atomic.Bool

	// Owned by the Run goroutine.
	phase     Phase
	pendingID uint64
	pendingOp Operation
	origin    Origin
	ssid      string
	started   time.Time
	nextID    uint64
	cancel    context.CancelFunc
	timer     *time.Timer

	snapMu sync.RWMutex
	snap   Snapshot
}

// NewSession creates an idle session. Call Run to start processing requests.
func NewSession(radio Radio, cfg Config, opts ...Option) *Session {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	s := &Session{
		radio:       radio,
		cfg:         cfg,
		recorder:    nopRecorder{},
		requests:    make(chan request),
		completions: make(chan completion, 4),
		done:        make(chan struct{}),
		snap:        Snapshot{Phase: PhaseIdle, Since: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe adds a publisher. Safe to call while the session is running.
func (s *Session) Subscribe(p Publisher) {
	if p == nil {
		return
	}
	s.pubMu.Lock()
	s.publishers = append(s.publishers, p)
	s.pubMu.Unlock()
}

// Run processes requests until ctx is cancelled. It may only be called once.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	defer s.shutdown()

	logging.Info("Provisioning session started",
		zap.Duration("scan_timeout", s.cfg.ScanTimeout),
		zap.Duration("connect_timeout", s.cfg.ConnectTimeout),
		zap.String("sort", s.cfg.SortOrder.String()),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.requests:
			s.handleRequest(ctx, req)
		case c := <-s.completions:
			s.handleCompletion(c)
		}
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Scan asks for a scan. It returns the accepted request id, or a *Error of
// type Busy or Closed. The scan result arrives later through the publishers.
func (s *Session) Scan(ctx context.Context, origin Origin) (uint64, error) {
	return s.submit(ctx, request{op: OpScan, origin: origin})
}

// Connect asks the radio to join req.SSID. An empty SSID is rejected here
// without involving the radio, even while another request is in flight.
func (s *Session) Connect(ctx context.Context, req ConnectRequest, origin Origin) (uint64, error) {
	if req.SSID == "" {
		s.recorder.RequestRejected(OpConnect, ErrTypeValidation)
		logging.Debug("Connect rejected: empty ssid", zap.String("client_id", origin.ClientID))
		return 0, NewValidationError(OpConnect, MissingSSIDMessage)
	}
	return s.submit(ctx, request{op: OpConnect, conn: req, origin: origin})
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	return s.Snapshot().Phase
}

// Snapshot returns the current phase and request bookkeeping.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

func (s *Session) submit(ctx context.Context, req request) (uint64, error) {
	req.reply = make(chan reply, 1)

	select {
	case s.requests <- req:
	case <-s.done:
		return 0, NewClosedError(req.op)
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	// The loop always answers a request it has received.
	r := <-req.reply
	return r.id, r.err
}

func (s *Session) handleRequest(ctx context.Context, req request) {
	if s.phase != PhaseIdle {
		logging.Info("Request rejected: busy",
			zap.String("operation", req.op.String()),
			zap.String("phase", s.phase.String()),
			zap.Uint64("pending_request_id", s.pendingID),
			zap.String("client_id", req.origin.ClientID),
		)
		s.recorder.RequestRejected(req.op, ErrTypeBusy)
		req.reply <- reply{err: NewBusyError(req.op)}
		return
	}

	s.nextID++
	id := s.nextID
	timeout := s.cfg.ScanTimeout
	next := PhaseScanning
	if req.op == OpConnect {
		timeout = s.cfg.ConnectTimeout
		next = PhaseConnecting
	}

	radioCtx, cancel := context.WithTimeout(ctx, timeout)
	s.pendingID = id
	s.pendingOp = req.op
	s.origin = req.origin
	s.ssid = req.conn.SSID
	s.started = time.Now()
	s.cancel = cancel
	s.timer = time.AfterFunc(timeout, func() {
		s.complete(completion{id: id, op: req.op, timedOut: true})
	})
	s.setPhase(next)

	logging.Info("Request accepted",
		zap.Uint64("request_id", id),
		zap.String("operation", req.op.String()),
		zap.String("client_id", req.origin.ClientID),
		zap.String("event", req.origin.Event),
	)
	s.recorder.RequestAccepted(req.op)
	req.reply <- reply{id: id}

	switch req.op {
	case OpScan:
		go func() {
			defer s.recoverRadio(id, OpScan)
			networks, err := s.radio.Scan(radioCtx)
			s.complete(completion{id: id, op: OpScan, networks: networks, err: err})
		}()
	case OpConnect:
		conn := req.conn
		go func() {
			defer s.recoverRadio(id, OpConnect)
			result, err := s.radio.Connect(radioCtx, conn)
			s.complete(completion{id: id, op: OpConnect, result: result, err: err})
		}()
	}
}

// recoverRadio turns a panicking adapter call into an adapter failure.
func (s *Session) recoverRadio(id uint64, op Operation) {
	r := recover()
	if r == nil {
		return
	}
	logging.Error("Radio adapter panicked",
		zap.Uint64("request_id", id),
		zap.String("operation", op.String()),
		zap.Any("panic", r),
	)
	s.complete(completion{id: id, op: op, err: fmt.Errorf("radio panic: %v", r)})
}

func (s *Session) complete(c completion) {
	select {
	case s.completions <- c:
	case <-s.done:
	}
}

func (s *Session) handleCompletion(c completion) {
	if s.phase == PhaseIdle || c.id != s.pendingID {
		if c.timedOut {
			// Timer fired while the radio's answer was being handled.
			return
		}
		stale := NewStaleError(c.op, c.id, s.pendingID)
		logging.Warn("Discarding stale radio result",
			zap.Uint64("request_id", c.id),
			zap.Uint64("pending_request_id", s.pendingID),
			zap.String("operation", c.op.String()),
			zap.Error(stale),
		)
		s.recorder.StaleDiscarded(c.op)
		return
	}

	timeout := s.cfg.ScanTimeout
	if c.op == OpConnect {
		timeout = s.cfg.ConnectTimeout
	}

	out := Outcome{
		RequestID: c.id,
		Op:        c.op,
		Origin:    s.origin,
		SSID:      s.ssid,
		Started:   s.started,
		Duration:  time.Since(s.started),
	}

	var err error
	switch {
	case c.timedOut, errors.Is(c.err, context.DeadlineExceeded):
		err = NewTimeoutError(c.op, c.id, timeout)
	case c.err != nil:
		err = NewAdapterError(c.op, c.id, c.err)
	case c.op == OpConnect && !c.result.Success:
		msg := c.result.Error
		if msg == "" {
			msg = "connection failed"
		}
		err = NewAdapterError(c.op, c.id, errors.New(msg))
	}
	out.Err = err

	switch c.op {
	case OpScan:
		if err != nil {
			out.Scan = &ScanResult{Success: false, Networks: []NetworkInfo{}, Error: WireMessage(err)}
		} else {
			out.Scan = &ScanResult{Success: true, Networks: Normalize(c.networks, s.cfg.SortOrder)}
		}
	case OpConnect:
		if err != nil {
			out.Connect = &ConnectResult{Success: false, Error: WireMessage(err)}
		} else {
			out.Connect = &ConnectResult{Success: true, IP: c.result.IP}
		}
	}

	s.finish()

	fields := []zap.Field{
		zap.Uint64("request_id", out.RequestID),
		zap.String("operation", out.Op.String()),
		zap.String("outcome", out.Label()),
		zap.Duration("duration", out.Duration),
	}
	if err != nil {
		logging.Warn("Request failed", append(fields, zap.Error(err))...)
	} else {
		logging.Info("Request completed", fields...)
	}

	s.recorder.OutcomeRecorded(out)
	s.publish(out)
}

// finish releases the in-flight bookkeeping and returns to idle.
func (s *Session) finish() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pendingID = 0
	s.origin = Origin{}
	s.setPhase(PhaseIdle)
}

func (s *Session) setPhase(p Phase) {
	prev := s.phase
	s.phase = p

	s.snapMu.Lock()
	s.snap = Snapshot{
		Phase:         p,
		LastRequestID: s.nextID,
		Since:         time.Now(),
	}
	if p != PhaseIdle {
		s.snap.PendingID = s.pendingID
		s.snap.PendingOp = s.pendingOp.String()
	}
	s.snapMu.Unlock()

	if prev != p {
		logging.LogTransition(prev.String(), p.String(), s.nextID)
	}
	s.recorder.PhaseChanged(p)
}

func (s *Session) publish(o Outcome) {
	s.pubMu.RLock()
	pubs := make([]Publisher, len(s.publishers))
	copy(pubs, s.publishers)
	s.pubMu.RUnlock()

	for _, p := range pubs {
		p.Publish(o)
	}
}

func (s *Session) shutdown() {
	if s.phase != PhaseIdle {
		logging.Warn("Session stopped with request in flight",
			zap.Uint64("request_id", s.pendingID),
			zap.String("operation", s.pendingOp.String()),
		)
		s.finish()
	}
	close(s.done)
	logging.Info("Provisioning session stopped")
}
