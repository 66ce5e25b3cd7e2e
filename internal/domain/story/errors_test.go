package story

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("continue: %w", GenerationError("continue story", errors.New("boom")))

	require.ErrorIs(t, err, ErrGeneration)
	require.NotErrorIs(t, err, ErrMediaUnavailable)
	require.Contains(t, err.Error(), "boom")
}

func TestParseErrorCountsAsGeneration(t *testing.T) {
	err := ParseError("start story", errors.New("unexpected end of JSON input"))

	require.ErrorIs(t, err, ErrParse)
	require.ErrorIs(t, err, ErrGeneration)

	// the reverse does not hold
	require.NotErrorIs(t, GenerationError("x", nil), ErrParse)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("mic busy")
	err := DeviceUnavailable("open microphone", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, "story: open microphone: device_unavailable: mic busy", err.Error())
	require.Equal(t, "story: permission_denied", ErrPermissionDenied.Error())
}

func TestPageHasRecording(t *testing.T) {
	require.False(t, Page{}.HasRecording())
	require.False(t, Page{UserRecording: &Recording{}}.HasRecording())
	require.True(t, Page{UserRecording: &Recording{Data: []byte{1}}}.HasRecording())
}
