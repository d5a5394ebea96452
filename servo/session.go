package servo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-buzzer/internal/pool"
	"github.com/arloliu/go-buzzer/logger"
)

// Session manages the connection to one servo controller.
//
// It is the only owner of the transport handle and the single choke point for
// writes: positions submitted with MoveTo go through the rate limiter, whose
// worker performs one write at a time.
//
// All methods are safe for concurrent use.
type Session struct {
	cfg     *SessionConfig
	logger  logger.Logger
	state   *stateMgr
	limiter *limiter
	metrics SessionMetrics

	// opMu serializes Connect, Disconnect and Close. Reset never takes it.
	opMu sync.Mutex

	// mu guards the fields below and every state transition.
	mu     sync.Mutex
	handle *transportHandle
	// gen changes whenever the handle is replaced or dropped; writes and
	// connects started under an older generation are discarded.
	gen      uint64
	status   string
	lastErr  error
	target   Position
	position Position
	written  bool
}

// NewSession creates a disconnected Session.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	return &Session{
		cfg:     cfg,
		logger:  cfg.logger,
		state:   newStateMgr(),
		limiter: newLimiter(cfg.minInterval),
		status:  "Disconnected",
	}, nil
}

// State returns the current session state.
func (s *Session) State() State { return s.state.State() }

// IsConnected returns if MoveTo currently reaches the device.
func (s *Session) IsConnected() bool { return s.state.State().IsConnected() }

// Status returns a message describing the session for the person running the quiz.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// LastError returns the error behind the most recent fault, or nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

// LastCommandTime returns when the most recent limited write started.
// It never decreases for the life of the session.
func (s *Session) LastCommandTime() time.Time { return s.limiter.lastWrite() }

// Position returns the last position written to the device. ok is false until
// a write succeeded. There is no acknowledgment from the firmware.
func (s *Session) Position() (pos Position, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.position, s.written
}

// Target returns the most recent position requested with MoveTo.
func (s *Session) Target() Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.target
}

// GetMetrics returns the metrics associated with the session.
func (s *Session) GetMetrics() *SessionMetrics { return &s.metrics }

// GetLogger returns the logger associated with the session.
func (s *Session) GetLogger() logger.Logger { return s.logger }

// AddStateChangeHandler registers handlers invoked after every state transition.
func (s *Session) AddStateChangeHandler(handlers ...StateChangeHandler) {
	s.state.addHandler(handlers...)
}

// WaitState blocks until the session reaches state or ctx is done.
func (s *Session) WaitState(ctx context.Context, state State) error {
	return s.state.waitState(ctx, state)
}

// Connect selects a device, opens it and makes the session ready for MoveTo.
//
// It is valid from Disconnected and Faulted. When the session is already
// Connected the current handle is fully released first. On failure the session
// is Faulted, nothing stays open, and the error wraps ErrUnsupported,
// ErrSelectionCancelled, ErrNoDevice, ErrOpenFailed or ErrConnectAborted.
func (s *Session) Connect(ctx context.Context) error {
	if s.State() == ConnectingState {
		return ErrConnectInProgress
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.State() == ConnectingState {
		s.mu.Unlock()
		return ErrConnectInProgress
	}

	old, oldDone := s.detachLocked()
	connectGen := s.gen
	prev := s.state.swap(ConnectingState)
	s.status = "Connecting..."
	s.mu.Unlock()
	s.state.notify(prev, ConnectingState)

	if old != nil {
		s.logger.Info("servo: releasing current handle before reconnect", "device", old.Name())
		s.waitWorker(ctx, oldDone)
		if err := old.release(); err != nil {
			s.logger.Warn("servo: release before reconnect", "device", old.Name(), "error", err)
		}
	}

	mode := s.cfg.mode
	h, err := acquireHandle(ctx, s.cfg.host, s.cfg.filter, &mode)

	s.mu.Lock()
	if s.gen != connectGen || s.State() != ConnectingState {
		s.mu.Unlock()
		if h != nil {
			s.releaseLogged(h, "servo: release after aborted connect")
		}
		s.metrics.incConnectErrCount()
		s.logger.Warn("servo: connect aborted", "error", ErrConnectAborted)

		return ErrConnectAborted
	}

	if err != nil {
		prev = s.faultLocked(err)
		s.mu.Unlock()
		s.state.notify(prev, FaultedState)
		s.metrics.incConnectErrCount()
		s.logger.Error("servo: connect failed", "error", err)

		return err
	}

	s.handle = h
	s.gen++
	gen := s.gen
	s.lastErr = nil
	s.status = "Connected to " + h.Name()
	s.limiter.start(context.Background(), func(p Position) { s.writePosition(gen, h, p) })
	prev = s.state.swap(ConnectedState)
	s.mu.Unlock()
	s.state.notify(prev, ConnectedState)

	s.metrics.incConnectCount()
	s.logger.Info("servo: connected", "device", h.Name(), "baudRate", mode.BaudRate)

	return nil
}

// Disconnect sends the home position as a courtesy, then releases the writer
// and closes the port.
//
// A failed courtesy command is logged and ignored. Disconnect on a session that
// is not Connected is a no-op. The returned error only reports a failed release;
// the session is Disconnected either way.
func (s *Session) Disconnect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.disconnect(ctx)
}

// Reset forgets the handle and forces the session to Disconnected from any state,
// without the courtesy command and without waiting for a write in flight.
//
// The forgotten handle is released in the background so a wedged write cannot
// block the caller.
func (s *Session) Reset() {
	s.mu.Lock()
	h, _ := s.detachLocked()
	s.lastErr = nil
	s.status = "Connection reset"
	prev := s.state.swap(DisconnectedState)
	s.mu.Unlock()
	s.state.notify(prev, DisconnectedState)

	s.metrics.incResetCount()
	s.logger.Info("servo: connection reset", "prevState", prev)

	if h != nil {
		go s.releaseLogged(h, "servo: release after reset")
	}
}

// MoveTo requests the servo to move to pos, clamped to [MinPosition, MaxPosition].
//
// It returns immediately. The write happens on the limiter's worker no sooner
// than the configured interval after the previous write; targets that arrive
// while one is pending replace it. When the session is not Connected it does
// nothing and returns ErrNotConnected.
func (s *Session) MoveTo(pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.State().IsConnected() || s.handle == nil {
		return ErrNotConnected
	}

	pos = Clamp(pos)
	s.target = pos
	s.metrics.incMoveRequestCount()
	if s.limiter.submit(pos) {
		s.metrics.incCoalescedCount()
		s.logger.Debug("servo: pending target replaced", "position", pos)
	}

	return nil
}

// Close tears the session down for good: it disconnects when connected and
// resets otherwise. It never panics and always returns nil, so it can be deferred.
//
// When a Connect is still running, Close resets instead of waiting for it.
func (s *Session) Close() (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("servo: panic during close", "panic", r)
			err = nil
		}
	}()

	if !s.opMu.TryLock() {
		s.Reset()
		return nil
	}
	defer s.opMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.closeTimeout)
	defer cancel()

	if s.State().IsConnected() {
		if err := s.disconnect(ctx); err != nil {
			s.logger.Warn("servo: close", "error", err)
		}

		return nil
	}

	if s.State() != DisconnectedState {
		s.Reset()
	}

	return nil
}

// disconnect must be called with opMu held.
func (s *Session) disconnect(ctx context.Context) error {
	s.mu.Lock()
	if !s.State().IsConnected() {
		s.mu.Unlock()
		s.logger.Debug("servo: disconnect ignored", "state", s.State())

		return nil
	}

	h, done := s.detachLocked()
	s.status = "Disconnected"
	prev := s.state.swap(DisconnectedState)
	s.mu.Unlock()
	s.state.notify(prev, DisconnectedState)

	if h == nil {
		return nil
	}

	if s.waitWorker(ctx, done) {
		s.sendCourtesy(ctx, h)
	}

	if err := h.release(); err != nil {
		s.mu.Lock()
		s.status = "Disconnected (release error: " + err.Error() + ")"
		s.mu.Unlock()
		s.logger.Warn("servo: release on disconnect", "device", h.Name(), "error", err)

		return err
	}

	s.logger.Info("servo: disconnected", "device", h.Name())

	return nil
}

// sendCourtesy writes the home position, honoring the rate limit window.
// Failures are logged only.
func (s *Session) sendCourtesy(ctx context.Context, h *transportHandle) {
	home := s.cfg.homePosition

	if wait := s.limiter.remaining(); wait > 0 {
		if err := pool.Sleep(ctx, wait); err != nil {
			s.logger.Warn("servo: courtesy command skipped", "position", home, "error", err)

			return
		}
	}

	s.limiter.stamp()
	if err := h.Write(Encode(home)); err != nil {
		s.metrics.incWriteErrCount()
		s.logger.Warn("servo: courtesy command failed", "position", home, "error", err)

		return
	}

	s.metrics.incWriteCount()
	s.mu.Lock()
	s.position = home
	s.written = true
	s.mu.Unlock()
	s.logger.Debug("servo: courtesy command sent", "position", home)
}

// writePosition runs on the limiter worker of handle generation gen.
func (s *Session) writePosition(gen uint64, h *transportHandle, pos Position) {
	err := h.Write(Encode(pos))

	s.mu.Lock()
	if err == nil {
		s.position = pos
		s.written = true
		s.mu.Unlock()
		s.metrics.incWriteCount()
		s.logger.Debug("servo: position sent", "position", pos)

		return
	}

	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("servo: stale write failed", "position", pos, "error", err)

		return
	}

	if !errors.Is(err, ErrWriteFailed) {
		err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	failed, _ := s.detachLocked()
	prev := s.faultLocked(err)
	s.mu.Unlock()
	s.state.notify(prev, FaultedState)

	s.metrics.incWriteErrCount()
	s.logger.Error("servo: write failed", "position", pos, "error", err)

	if failed != nil {
		s.releaseLogged(failed, "servo: release after write failure")
	}
}

// detachLocked drops the handle and stops the limiter worker. The caller owns
// the returned handle and may wait on done for the worker to exit.
func (s *Session) detachLocked() (*transportHandle, <-chan struct{}) {
	h := s.handle
	s.handle = nil
	s.gen++
	done := s.limiter.stop()

	return h, done
}

// faultLocked records err and moves to Faulted. The caller notifies handlers
// with the returned previous state after unlocking.
func (s *Session) faultLocked(err error) State {
	s.lastErr = err
	s.status = Describe(err)

	return s.state.swap(FaultedState)
}

// waitWorker waits for the previous limiter worker to exit. It returns false
// when the close timeout or ctx expired first.
func (s *Session) waitWorker(ctx context.Context, done <-chan struct{}) bool {
	if done == nil {
		return true
	}

	timer := pool.GetTimer(s.cfg.closeTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-done:
		return true
	case <-timer.C:
		s.logger.Warn("servo: write still in flight", "timeout", s.cfg.closeTimeout)
	case <-ctx.Done():
		s.logger.Warn("servo: stop waiting for write in flight", "error", ctx.Err())
	}

	return false
}

func (s *Session) releaseLogged(h *transportHandle, msg string) {
	if err := h.release(); err != nil {
		s.logger.Warn(msg, "device", h.Name(), "error", err)
	}
}
