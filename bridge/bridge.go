// Package bridge turns quiz lifecycle events into servo moves.
//
// The mapping is a small table from Event to servo.Position. A move is only
// requested while the servo session is connected; otherwise Notify does
// nothing, since the buzzer is optional hardware.
package bridge

import (
	"github.com/arloliu/go-buzzer/logger"
	"github.com/arloliu/go-buzzer/servo"
	"github.com/puzpuzpuz/xsync/v3"
)

// Event is a quiz lifecycle event.
type Event uint8

const (
	// QuestionActive fires when a question is selected or drawn.
	QuestionActive Event = iota + 1
	// AnswerReceived fires when the answer for the active question arrived.
	AnswerReceived
)

// String returns string representation of the event.
func (e Event) String() string {
	switch e {
	case QuestionActive:
		return "question-active"
	case AnswerReceived:
		return "answer-received"
	default:
		return "unknown"
	}
}

// DefaultPresets returns the built-in table: a new question raises the arm to
// home, an answer lowers it.
func DefaultPresets() map[Event]servo.Position {
	return map[Event]servo.Position{
		QuestionActive: servo.HomePosition,
		AnswerReceived: servo.LoweredPosition,
	}
}

// Mover is the part of servo.Session used by the bridge.
type Mover interface {
	IsConnected() bool
	MoveTo(pos servo.Position) error
}

var _ Mover = (*servo.Session)(nil)

// Bridge maps events to servo moves.
type Bridge struct {
	mover   Mover
	logger  logger.Logger
	presets *xsync.MapOf[Event, servo.Position]
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithPreset overrides the position for event.
func WithPreset(event Event, pos servo.Position) Option {
	return func(b *Bridge) { b.presets.Store(event, servo.Clamp(pos)) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Bridge driving mover with the default presets.
func New(mover Mover, opts ...Option) *Bridge {
	b := &Bridge{
		mover:   mover,
		logger:  logger.GetLogger(),
		presets: xsync.NewMapOf[Event, servo.Position](),
	}
	for event, pos := range DefaultPresets() {
		b.presets.Store(event, pos)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// Preset returns the position mapped to event.
func (b *Bridge) Preset(event Event) (servo.Position, bool) {
	return b.presets.Load(event)
}

// SetPreset changes the position mapped to event. pos is clamped.
func (b *Bridge) SetPreset(event Event, pos servo.Position) {
	b.presets.Store(event, servo.Clamp(pos))
}

// Notify requests the preset move for event. It returns true if a move was
// requested; a disconnected servo or an unmapped event is a silent no-op.
func (b *Bridge) Notify(event Event) bool {
	if b.mover == nil || !b.mover.IsConnected() {
		return false
	}

	pos, ok := b.presets.Load(event)
	if !ok {
		b.logger.Debug("bridge: no preset for event", "event", event)
		return false
	}

	if err := b.mover.MoveTo(pos); err != nil {
		b.logger.Debug("bridge: move skipped", "event", event, "position", pos, "error", err)
		return false
	}

	b.logger.Debug("bridge: move requested", "event", event, "position", pos)

	return true
}
