package servo

import (
	"strconv"
)

// Position is a commanded servo target in degrees.
//
// It is the last commanded value, not a confirmed physical position: the
// firmware never acknowledges commands.
type Position int

const (
	// MinPosition and MaxPosition bound the servo travel. The firmware clamps to the
	// same range independently.
	MinPosition Position = 0
	MaxPosition Position = 180

	// HomePosition is the neutral, raised position the firmware boots into.
	HomePosition Position = 90
	// LoweredPosition is the "buzzer pressed" position.
	LoweredPosition Position = 0
)

// Clamp limits p to [MinPosition, MaxPosition].
func Clamp(p Position) Position {
	switch {
	case p < MinPosition:
		return MinPosition
	case p > MaxPosition:
		return MaxPosition
	default:
		return p
	}
}

// Valid reports whether p is inside [MinPosition, MaxPosition].
func (p Position) Valid() bool { return p >= MinPosition && p <= MaxPosition }

// String returns the position in degrees, e.g. "90°".
func (p Position) String() string { return strconv.Itoa(int(p)) + "°" }

// Encode returns the wire frame for p: 'S', the decimal degrees, '\n'.
// p is clamped first, so the frame never carries a sign or an out-of-range value.
func Encode(p Position) []byte {
	return AppendEncode(make([]byte, 0, 5), p)
}

// AppendEncode appends the wire frame for p to dst and returns the extended buffer.
func AppendEncode(dst []byte, p Position) []byte {
	dst = append(dst, 'S')
	dst = strconv.AppendInt(dst, int64(Clamp(p)), 10)

	return append(dst, '\n')
}
