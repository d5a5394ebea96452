package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-buzzer/servo"
	"github.com/stretchr/testify/require"
)

type fakeMover struct {
	mu        sync.Mutex
	connected bool
	moves     []servo.Position
	err       error
}

func (m *fakeMover) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.connected
}

func (m *fakeMover) MoveTo(pos servo.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.moves = append(m.moves, pos)

	return nil
}

func TestBridgeNotify(t *testing.T) {
	require := require.New(t)

	m := &fakeMover{connected: true}
	b := New(m)

	require.True(b.Notify(QuestionActive))
	require.True(b.Notify(AnswerReceived))
	require.False(b.Notify(Event(99)))
	require.Equal([]servo.Position{servo.HomePosition, servo.LoweredPosition}, m.moves)
}

func TestBridgeNotify_Disconnected(t *testing.T) {
	m := &fakeMover{}
	b := New(m)

	require.False(t, b.Notify(QuestionActive))
	require.Empty(t, m.moves)

	require.False(t, New(nil).Notify(AnswerReceived))
}

func TestBridgeNotify_MoveError(t *testing.T) {
	m := &fakeMover{connected: true, err: servo.ErrNotConnected}
	require.False(t, New(m).Notify(QuestionActive))
}

func TestBridgePresets(t *testing.T) {
	require := require.New(t)

	m := &fakeMover{connected: true}
	b := New(m, WithPreset(AnswerReceived, 30), nil)

	pos, ok := b.Preset(AnswerReceived)
	require.True(ok)
	require.Equal(servo.Position(30), pos)

	b.SetPreset(QuestionActive, 400)
	pos, _ = b.Preset(QuestionActive)
	require.Equal(servo.MaxPosition, pos)

	b.Notify(QuestionActive)
	b.Notify(AnswerReceived)
	require.Equal([]servo.Position{180, 30}, m.moves)
}

func TestEventString(t *testing.T) {
	require.Equal(t, "question-active", QuestionActive.String())
	require.Equal(t, "answer-received", AnswerReceived.String())
	require.Equal(t, "unknown", Event(0).String())
}

// fakeHost provides an in-memory port for a real servo.Session.
type fakeHost struct {
	port *recordingPort
}

func (h *fakeHost) SelectPort(context.Context, servo.PortFilter) (string, error) { return "mem", nil }

func (h *fakeHost) OpenPort(string, *servo.PortMode) (servo.Port, error) {
	h.port = &recordingPort{}
	return h.port, nil
}

type recordingPort struct {
	mu     sync.Mutex
	frames []string
}

func (p *recordingPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, string(b))

	return len(b), nil
}

func (p *recordingPort) Frames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.frames...)
}

func (p *recordingPort) Drain() error { return nil }
func (p *recordingPort) Close() error { return nil }

func TestBridgeWithSession(t *testing.T) {
	require := require.New(t)

	host := &fakeHost{}
	cfg, err := servo.NewSessionConfig(host)
	require.NoError(err)
	s, err := servo.NewSession(cfg)
	require.NoError(err)
	defer s.Close()

	b := New(s)
	require.False(b.Notify(QuestionActive), "no move before connect")

	require.NoError(s.Connect(context.Background()))
	require.True(b.Notify(QuestionActive))
	require.True(b.Notify(AnswerReceived))

	require.Eventually(func() bool {
		frames := host.port.Frames()
		return len(frames) > 0 && frames[len(frames)-1] == "S0\n"
	}, 2*time.Second, time.Millisecond)
}
