package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/tsfeed/internal/backoff"
	"github.com/rickgao/tsfeed/internal/buffer"
	"github.com/rickgao/tsfeed/internal/model"
)

// Manager owns one feed connection, its retry schedule and its sample window.
type Manager interface {
	// Connect starts a connection attempt. It is a no-op while an attempt is
	// in flight, while connected, and in the error state.
	Connect() error

	// Reconnect cancels any pending retry, resets the backoff and starts a
	// fresh attempt immediately.
	Reconnect() error

	// Disconnect tears the manager down. No transitions happen afterwards.
	Disconnect(ctx context.Context) error

	// State returns the current connection state.
	State() State

	// LastError returns the last recorded error, if any.
	LastError() (string, bool)

	// Snapshot returns a copy of the buffered samples, oldest first.
	Snapshot() []model.Sample

	// Info returns a point-in-time status view.
	Info() Info
}

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdReconnect
	cmdDisconnect
)

type command struct {
	kind  commandKind
	reply chan error
}

// envelope tags an event with the attempt generation that produced it.
type envelope struct {
	gen   uint64
	ev    Event
	retry bool // Retry timer fired
}

// status is the part of the manager readable from any goroutine.
type status struct {
	state       State
	lastErr     string
	hasErr      bool
	attempt     int
	nextDelay   time.Duration
	attemptID   string
	connectedAt time.Time
	received    int64
	rejected    int64
	closed      bool
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
	window *buffer.Window[model.Sample]

	newClient func(ClientConfig, *slog.Logger) Client

	cmds  chan command
	inbox chan envelope
	done  chan struct{} // Closed when the event loop exits

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Owned by the event loop
	gen    uint64
	client Client
	retry  *time.Timer
	policy backoff.State

	statusMu sync.RWMutex
	status   status
}

// NewManager creates a manager and starts its event loop. The manager is
// idle (disconnected) until Connect is called.
func NewManager(cfg ManagerConfig, logger *slog.Logger) Manager {
	return newManager(cfg, logger, NewClient)
}

func newManager(cfg ManagerConfig, logger *slog.Logger, newClient func(ClientConfig, *slog.Logger) Client) *manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPoints < 1 {
		cfg.MaxPoints = DefaultMaxPoints
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &manager{
		cfg:       cfg,
		logger:    logger.With("component", "connection", "url", cfg.Client.URL),
		window:    buffer.NewWindow[model.Sample](cfg.MaxPoints),
		newClient: newClient,
		cmds:      make(chan command),
		inbox:     make(chan envelope, 64),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		policy:    backoff.NewState(cfg.Backoff),
	}
	m.status.state = StateDisconnected

	go m.run()

	return m
}

// Connect starts a connection attempt.
func (m *manager) Connect() error {
	return m.send(cmdConnect)
}

// Reconnect forces a fresh connection attempt.
func (m *manager) Reconnect() error {
	return m.send(cmdReconnect)
}

// Disconnect tears down the manager and waits for its goroutines.
func (m *manager) Disconnect(ctx context.Context) error {
	if err := m.send(cmdDisconnect); err != nil && err != ErrClosed {
		return err
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, goroutines still running")
		return ctx.Err()
	}
}

// State returns the current connection state.
func (m *manager) State() State {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status.state
}

// LastError returns the last recorded error.
func (m *manager) LastError() (string, bool) {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status.lastErr, m.status.hasErr
}

// Snapshot returns a copy of the buffered samples.
func (m *manager) Snapshot() []model.Sample {
	return m.window.Snapshot()
}

// Info returns a status view.
func (m *manager) Info() Info {
	m.statusMu.RLock()
	st := m.status
	m.statusMu.RUnlock()

	info := Info{
		State:       st.state,
		LastError:   st.lastErr,
		Attempt:     st.attempt,
		MaxAttempts: m.cfg.Backoff.MaxAttempts,
		AttemptID:   st.attemptID,
		URL:         m.cfg.Client.URL,
		Buffered:    m.window.Len(),
		Capacity:    m.window.Cap(),
		Received:    st.received,
		Rejected:    st.rejected,
		ConnectedAt: st.connectedAt,
		Closed:      st.closed,
	}
	if st.nextDelay > 0 {
		info.NextDelay = st.nextDelay.String()
	}
	return info
}

// send hands a command to the event loop and waits for it to be applied.
func (m *manager) send(kind commandKind) error {
	cmd := command{kind: kind, reply: make(chan error, 1)}
	select {
	case m.cmds <- cmd:
	case <-m.done:
		return ErrClosed
	}
	return <-cmd.reply
}

// post delivers an event to the loop unless the manager is gone.
func (m *manager) post(env envelope) bool {
	select {
	case m.inbox <- env:
		return true
	case <-m.done:
		return false
	}
}

// run is the event loop. Every state mutation happens here.
func (m *manager) run() {
	defer close(m.done)

	for {
		select {
		case cmd := <-m.cmds:
			err := m.handleCommand(cmd.kind)
			cmd.reply <- err
			if cmd.kind == cmdDisconnect {
				return
			}
		case env := <-m.inbox:
			m.handleEvent(env)
		}
	}
}

func (m *manager) handleCommand(kind commandKind) error {
	switch kind {
	case cmdConnect:
		switch st := m.State(); st {
		case StateConnecting, StateConnected:
			return nil
		case StateError:
			m.logger.Debug("connect ignored in error state, use reconnect")
			return nil
		}
		m.startAttempt()
		return nil

	case cmdReconnect:
		m.logger.Info("manual reconnect requested")
		m.cancelRetry()
		m.dropClient()
		backoff.Reset(&m.policy)
		if m.cfg.ClearOnReconnect {
			m.window.Clear()
		}
		m.startAttempt()
		return nil

	case cmdDisconnect:
		m.cancelRetry()
		m.dropClient()
		m.gen++
		m.cancel()
		m.transition(StateDisconnected, func(st *status) {
			st.closed = true
			st.nextDelay = 0
		})
		m.logger.Info("connection manager stopped")
		return nil
	}

	return fmt.Errorf("unknown command %d", kind)
}

// startAttempt opens a new transport under a new generation.
func (m *manager) startAttempt() {
	m.gen++
	gen := m.gen
	attemptID := uuid.NewString()

	logger := m.logger.With("attempt_id", attemptID, "attempt", m.policy.Attempt)
	c := m.newClient(m.cfg.Client, logger)
	m.client = c

	m.transition(StateConnecting, func(st *status) {
		st.attemptID = attemptID
		st.attempt = m.policy.Attempt
		st.nextDelay = 0
	})

	logger.Info("attempting connection")

	m.wg.Add(1)
	go m.dial(gen, c)
}

// dial connects one client and forwards its events until it closes.
func (m *manager) dial(gen uint64, c Client) {
	defer m.wg.Done()

	if err := c.Connect(m.ctx); err != nil {
		if m.post(envelope{gen: gen, ev: Event{Kind: EventError, Err: err}}) {
			m.post(envelope{gen: gen, ev: Event{Kind: EventClosed, Err: err}})
		}
		return
	}

	for ev := range c.Events() {
		if !m.post(envelope{gen: gen, ev: ev}) {
			c.Close()
			return
		}
	}
}

func (m *manager) handleEvent(env envelope) {
	if env.gen != m.gen || m.isClosed() {
		// Stale attempt or cancelled timer.
		return
	}

	if env.retry {
		m.retry = nil
		m.startAttempt()
		return
	}

	ev := env.ev
	switch ev.Kind {
	case EventOpened:
		backoff.Reset(&m.policy)
		m.transition(StateConnected, func(st *status) {
			st.lastErr, st.hasErr = "", false
			st.attempt = 0
			st.connectedAt = time.Now()
		})
		m.logger.Info("connected")

	case EventMessage:
		m.handleMessage(ev)

	case EventError:
		msg := "connection error"
		if ev.Err != nil {
			msg = fmt.Sprintf("connection error: %v", ev.Err)
		}
		m.logger.Warn("transport error", "error", ev.Err)
		m.transition(StateError, func(st *status) {
			st.lastErr, st.hasErr = msg, true
		})

	case EventClosed:
		m.client = nil
		m.handleClose(ev)
	}
}

// handleMessage decodes a frame and appends it. Bad frames never affect
// the connection.
func (m *manager) handleMessage(ev Event) {
	sample, err := model.DecodeSample(ev.Data, ev.ReceivedAt)
	if err != nil {
		m.logger.Warn("dropping malformed message", "error", err, "bytes", len(ev.Data))
		m.statusMu.Lock()
		m.status.lastErr = fmt.Sprintf("error processing data from server: %v", err)
		m.status.hasErr = true
		m.status.rejected++
		m.statusMu.Unlock()
		return
	}

	m.window.Append(sample)

	m.statusMu.Lock()
	m.status.received++
	m.statusMu.Unlock()

	for _, sink := range m.cfg.Sinks {
		sink.HandleSample(sample)
	}
}

func (m *manager) handleClose(ev Event) {
	if ev.Clean {
		m.logger.Info("connection closed cleanly", "code", ev.Code)
		m.transition(StateDisconnected, nil)
		return
	}

	if backoff.Exhausted(m.policy) {
		msg := fmt.Sprintf("%v: failed to connect after %d attempts", ErrRetriesExhausted, m.policy.Attempt)
		m.logger.Error("giving up on connection", "attempts", m.policy.Attempt)
		m.transition(StateError, func(st *status) {
			st.lastErr, st.hasErr = msg, true
			st.nextDelay = 0
		})
		return
	}

	delay := backoff.NextDelay(m.policy)
	m.policy.CurrentDelay = delay
	m.policy.Attempt++

	m.logger.Info("scheduling reconnection",
		"code", ev.Code,
		"delay", delay,
		"attempt", m.policy.Attempt,
		"max_attempts", m.policy.MaxAttempts,
	)

	gen := m.gen
	m.retry = time.AfterFunc(delay, func() {
		m.post(envelope{gen: gen, retry: true})
	})

	m.transition(StateConnecting, func(st *status) {
		st.attempt = m.policy.Attempt
		st.nextDelay = delay
	})
}

// cancelRetry stops a pending retry. A timer that already fired is
// discarded by the generation check.
func (m *manager) cancelRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

// dropClient closes the current transport, if any.
func (m *manager) dropClient() {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			m.logger.Debug("close transport", "error", err)
		}
		m.client = nil
	}
}

func (m *manager) isClosed() bool {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status.closed
}

// transition applies a state change and notifies the observer. Re-entering
// the same state (a retry scheduled from Connecting) is reported too.
func (m *manager) transition(to State, mutate func(*status)) {
	m.statusMu.Lock()
	from := m.status.state
	m.status.state = to
	if to != StateConnected {
		m.status.connectedAt = time.Time{}
	}
	if mutate != nil {
		mutate(&m.status)
	}
	t := Transition{
		From:      from,
		To:        to,
		Attempt:   m.status.attempt,
		AttemptID: m.status.attemptID,
		LastError: m.status.lastErr,
		NextDelay: m.status.nextDelay,
		At:        time.Now(),
	}
	m.statusMu.Unlock()

	if from != to {
		m.logger.Debug("state change", "from", from, "to", to)
	}
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(t)
	}
}
