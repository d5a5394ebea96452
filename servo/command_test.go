package servo

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	require := require.New(t)

	for p := MinPosition; p <= MaxPosition; p++ {
		require.Equal([]byte("S"+strconv.Itoa(int(p))+"\n"), Encode(p))
	}
}

func TestEncodeClamps(t *testing.T) {
	tests := []struct {
		in   Position
		want string
	}{
		{-1, "S0\n"},
		{-180, "S0\n"},
		{181, "S180\n"},
		{1000, "S180\n"},
		{7, "S7\n"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, string(Encode(tt.in)), "position %d", tt.in)
	}
}

func TestAppendEncode(t *testing.T) {
	buf := AppendEncode([]byte("S1\n"), 135)
	require.Equal(t, "S1\nS135\n", string(buf))
}

func TestPosition(t *testing.T) {
	require := require.New(t)

	require.Equal("90°", HomePosition.String())
	require.True(MinPosition.Valid())
	require.True(MaxPosition.Valid())
	require.False(Position(-1).Valid())
	require.False(Position(181).Valid())
	require.Equal(MaxPosition, Clamp(200))
	require.Equal(MinPosition, Clamp(-3))
}
