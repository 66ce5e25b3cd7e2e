package recorder

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wondertales/internal/domain/story"
)

type fakeCapture struct {
	data    []byte
	err     error
	stopped bool
}

func (f *fakeCapture) Stop() ([]byte, string, error) {
	f.stopped = true
	return f.data, "audio/wav", f.err
}

type fakeMic struct {
	openErr  error
	captures []*fakeCapture
	data     []byte
}

func (m *fakeMic) Open(ctx context.Context) (Capture, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	c := &fakeCapture{data: m.data}
	m.captures = append(m.captures, c)
	return c, nil
}

type fakePlayback struct {
	stops int
}

func (p *fakePlayback) StopAll() { p.stops++ }

func TestRecordingLifecycle(t *testing.T) {
	mic := &fakeMic{data: []byte("RIFF-voice")}
	pb := &fakePlayback{}
	c := NewController(mic, pb, nil)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	require.NoError(t, c.Start(context.Background(), 2))
	require.True(t, c.IsRecording())
	require.Equal(t, 1, pb.stops, "starting a recording stops playback first")

	require.ErrorIs(t, c.Start(context.Background(), 2), ErrAlreadyRecording)

	rec, err := c.Stop()
	require.NoError(t, err)
	require.False(t, c.IsRecording())
	require.True(t, mic.captures[0].stopped)
	require.Equal(t, 2, rec.PageIndex)
	require.Equal(t, []byte("RIFF-voice"), rec.Data)
	require.Equal(t, at, rec.CreatedAt)

	_, err = c.Stop()
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestStartFailureStaysIdle(t *testing.T) {
	for _, openErr := range []error{
		story.PermissionDenied("open microphone", errors.New("denied")),
		story.DeviceUnavailable("open microphone", errors.New("no card")),
	} {
		c := NewController(&fakeMic{openErr: openErr}, &fakePlayback{}, nil)
		err := c.Start(context.Background(), 0)
		require.ErrorIs(t, err, openErr)
		require.False(t, c.IsRecording())

		_, err = c.Stop()
		require.ErrorIs(t, err, ErrNotRecording)
	}
}

func TestStopReleasesDeviceOnError(t *testing.T) {
	mic := &fakeMic{}
	c := NewController(mic, nil, nil)
	require.NoError(t, c.Start(context.Background(), 0))

	_, err := c.Stop()
	require.ErrorIs(t, err, story.ErrDeviceUnavailable)
	require.False(t, c.IsRecording())

	// a fresh recording can start again
	mic.data = []byte("x")
	require.NoError(t, c.Start(context.Background(), 0))
}

func TestClassifyFailure(t *testing.T) {
	err := classifyFailure("arecord: main:850: audio open error: Permission denied", errors.New("exit status 1"))
	require.ErrorIs(t, err, story.ErrPermissionDenied)

	err = classifyFailure("arecord: main:850: audio open error: No such file or directory", errors.New("exit status 1"))
	require.ErrorIs(t, err, story.ErrDeviceUnavailable)
	require.ErrorContains(t, err, "No such file")

	require.ErrorIs(t, classifyFailure("", nil), story.ErrDeviceUnavailable)
}

func TestCommandMicrophoneMissingBinary(t *testing.T) {
	mic := NewCommandMicrophone("definitely-not-a-recorder-binary", 16000)
	_, err := mic.Open(context.Background())
	require.ErrorIs(t, err, story.ErrDeviceUnavailable)
}

func TestCommandMicrophoneImmediateExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs the unix false command")
	}
	mic := NewCommandMicrophone("false", 16000)
	_, err := mic.Open(context.Background())
	require.ErrorIs(t, err, story.ErrDeviceUnavailable)
}
