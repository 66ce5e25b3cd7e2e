package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"wondertales/internal/domain/story"
)

type Source string

const (
	SourceNone      Source = ""
	SourceNarration Source = "narration"
	SourceRecording Source = "recording"
)

var ErrNoRecording = errors.New("audio: page has no recording")

// Controller owns the single audio output. Starting any source first stops
// and releases whatever is currently active.
type Controller struct {
	out Output
	log *logrus.Entry

	mu     sync.Mutex
	seq    uint64
	active *activeSource

	playing *atomic.Bool
}

type activeSource struct {
	id     uint64
	source Source
	handle Handle
	paused bool
}

func NewController(out Output, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.WithField("component", "playback")
	}
	return &Controller{
		out:     out,
		log:     log,
		playing: atomic.NewBool(false),
	}
}

// PlayNarration plays synthesized narration for a page.
func (c *Controller) PlayNarration(clip *Clip) error {
	if clip == nil {
		return ErrEmptyAudio
	}
	return c.play(SourceNarration, clip)
}

// PlayRecording decodes and plays the child's own recording.
func (c *Controller) PlayRecording(rec *story.Recording) error {
	if rec == nil || len(rec.Data) == 0 {
		return ErrNoRecording
	}
	clip, err := Decode(rec.Data, rec.MIMEType)
	if err != nil {
		return fmt.Errorf("failed to decode recording: %w", err)
	}
	return c.play(SourceRecording, clip)
}

func (c *Controller) play(src Source, clip *Clip) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	c.seq++
	id := c.seq
	h, err := c.out.Play(clip, func() { c.finished(id) })
	if err != nil {
		return fmt.Errorf("failed to play %s: %w", src, err)
	}

	c.active = &activeSource{id: id, source: src, handle: h}
	c.playing.Store(true)

	c.log.WithFields(logrus.Fields{
		"source":   src,
		"duration": clip.Duration().String(),
	}).Debug("Playback started")
	return nil
}

// StopAll stops whatever is playing. Safe to call when idle.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.active == nil {
		return
	}
	c.active.handle.Stop()
	c.log.WithField("source", c.active.source).Debug("Playback stopped")
	c.active = nil
	c.playing.Store(false)
}

// finished is the natural-completion callback. Callbacks for sources that
// were already replaced are ignored.
func (c *Controller) finished(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.id != id {
		return
	}
	c.active = nil
	c.playing.Store(false)
}

// TogglePause pauses or resumes the active source and reports whether it is
// now paused. It does nothing when idle.
func (c *Controller) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return false
	}
	c.active.paused = !c.active.paused
	c.active.handle.SetPaused(c.active.paused)
	c.playing.Store(!c.active.paused)
	return c.active.paused
}

// IsPlaying is observational only; it never gates other operations.
func (c *Controller) IsPlaying() bool {
	return c.playing.Load()
}

// Active reports which kind of source currently holds the output.
func (c *Controller) Active() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return SourceNone
	}
	return c.active.source
}
