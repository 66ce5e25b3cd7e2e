package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"wondertales/internal/domain/story"
)

var (
	ErrAlreadyRecording = errors.New("recorder: already recording")
	ErrNotRecording     = errors.New("recorder: not recording")
)

// Capture is one open microphone session buffering audio.
type Capture interface {
	// Stop releases the device and returns everything captured as one
	// encoded clip.
	Stop() (data []byte, mimeType string, err error)
}

// Microphone opens the capture device. Open fails with a story
// PermissionDenied or DeviceUnavailable error.
type Microphone interface {
	Open(ctx context.Context) (Capture, error)
}

// Playback is the part of the playback controller the recorder needs.
type Playback interface {
	StopAll()
}

// Controller is the Idle/Recording state machine for voice capture.
type Controller struct {
	mic      Microphone
	playback Playback
	log      *logrus.Entry
	now      func() time.Time

	mu        sync.Mutex
	capture   Capture
	pageIndex int

	recording *atomic.Bool
}

func NewController(mic Microphone, playback Playback, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.WithField("component", "recorder")
	}
	return &Controller{
		mic:       mic,
		playback:  playback,
		log:       log,
		now:       time.Now,
		recording: atomic.NewBool(false),
	}
}

// Start stops any playback and opens the microphone for pageIndex. On
// failure the controller stays idle.
func (c *Controller) Start(ctx context.Context, pageIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return ErrAlreadyRecording
	}

	if c.playback != nil {
		c.playback.StopAll()
	}

	capture, err := c.mic.Open(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Microphone unavailable")
		return err
	}

	c.capture = capture
	c.pageIndex = pageIndex
	c.recording.Store(true)
	c.log.WithField("page", pageIndex).Info("Recording started")
	return nil
}

// Stop finalises the buffered audio into a recording for the page that was
// current when recording started. The device is released even on error.
func (c *Controller) Stop() (*story.Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrNotRecording
	}

	capture := c.capture
	c.capture = nil
	c.recording.Store(false)

	data, mimeType, err := capture.Stop()
	if err != nil {
		return nil, story.DeviceUnavailable("stop recording", err)
	}
	if len(data) == 0 {
		return nil, story.DeviceUnavailable("stop recording", errors.New("no audio captured"))
	}

	c.log.WithFields(logrus.Fields{
		"page":  c.pageIndex,
		"bytes": len(data),
	}).Info("Recording finished")

	return &story.Recording{
		PageIndex: c.pageIndex,
		MIMEType:  mimeType,
		Data:      data,
		CreatedAt: c.now(),
	}, nil
}

// IsRecording is observational only.
func (c *Controller) IsRecording() bool {
	return c.recording.Load()
}
