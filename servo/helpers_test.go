package servo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// eventLog records transport events across ports in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.events...)
}

func (l *eventLog) index(event string) int {
	for i, e := range l.list() {
		if e == event {
			return i
		}
	}

	return -1
}

// fakePort is an in-memory Port.
type fakePort struct {
	name string
	log  *eventLog

	mu         sync.Mutex
	frames     []string
	times      []time.Time
	writeErr   error
	drainErr   error
	closeErr   error
	block      chan struct{} // when set, Write waits on it
	drained    bool
	closed     bool
	inflight   atomic.Int32
	overlapped atomic.Bool
}

func newFakePort(name string, log *eventLog) *fakePort {
	return &fakePort{name: name, log: log}
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.inflight.Add(1) > 1 {
		p.overlapped.Store(true)
	}
	defer p.inflight.Add(-1)

	p.mu.Lock()
	block := p.block
	p.mu.Unlock()
	if block != nil {
		<-block
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errors.New("port closed")
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.frames = append(p.frames, string(b))
	p.times = append(p.times, time.Now())
	p.log.add("write:%s:%q", p.name, string(b))

	return len(b), nil
}

func (p *fakePort) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drained = true
	p.log.add("drain:%s", p.name)

	return p.drainErr
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.log.add("close:%s", p.name)

	return p.closeErr
}

func (p *fakePort) setWriteErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

func (p *fakePort) Frames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.frames...)
}

func (p *fakePort) WriteTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]time.Time(nil), p.times...)
}

func (p *fakePort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

func (p *fakePort) IsDrained() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.drained
}

// fakeHost hands out fakePorts named port-1, port-2, ...
type fakeHost struct {
	log *eventLog

	mu        sync.Mutex
	selectErr error
	openErr   error
	selectFn  func(ctx context.Context) (string, error)
	ports     []*fakePort
	mode      *PortMode
	filter    PortFilter
	prepare   func(p *fakePort)
}

func newFakeHost() *fakeHost {
	return &fakeHost{log: &eventLog{}}
}

func (h *fakeHost) SelectPort(ctx context.Context, filter PortFilter) (string, error) {
	h.mu.Lock()
	h.filter = filter
	selectFn, selectErr := h.selectFn, h.selectErr
	n := len(h.ports) + 1
	h.mu.Unlock()

	if selectFn != nil {
		return selectFn(ctx)
	}
	if selectErr != nil {
		return "", selectErr
	}

	return fmt.Sprintf("port-%d", n), nil
}

func (h *fakeHost) OpenPort(name string, mode *PortMode) (Port, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.log.add("open:%s", name)
	h.mode = mode
	if h.openErr != nil {
		return nil, h.openErr
	}

	p := newFakePort(name, h.log)
	if h.prepare != nil {
		h.prepare(p)
	}
	h.ports = append(h.ports, p)

	return p, nil
}

func (h *fakeHost) Port(i int) *fakePort {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i >= len(h.ports) {
		return nil
	}

	return h.ports[i]
}

func (h *fakeHost) PortCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.ports)
}

// newTestSession creates a session on host with a short close timeout.
func newTestSession(t *testing.T, host Host, opts ...SessionOption) *Session {
	t.Helper()

	defaults := []SessionOption{
		WithCloseTimeout(500 * time.Millisecond),
	}

	cfg, err := NewSessionConfig(host, append(defaults, opts...)...)
	require.NoError(t, err)

	s, err := NewSession(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

// connectedSession returns a connected session on a fresh fakeHost.
func connectedSession(t *testing.T, opts ...SessionOption) (*Session, *fakeHost, *fakePort) {
	t.Helper()

	host := newFakeHost()
	s := newTestSession(t, host, opts...)
	require.NoError(t, s.Connect(context.Background()))
	require.Equal(t, ConnectedState, s.State())

	return s, host, host.Port(0)
}

func frame(p int) string {
	return fmt.Sprintf("S%d\n", p)
}
