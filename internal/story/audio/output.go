package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Handle controls one clip that an Output is playing.
type Handle interface {
	Stop()
	SetPaused(paused bool)
}

// Output is the single audio device. onEnd is called once the clip has
// drained or been stopped, never from inside Play.
type Output interface {
	Play(clip *Clip, onEnd func()) (Handle, error)
}

// SpeakerOutput plays clips on the system speaker through beep.
type SpeakerOutput struct {
	rate    beep.SampleRate
	once    sync.Once
	initErr error
}

func NewSpeakerOutput(rate beep.SampleRate) *SpeakerOutput {
	if rate <= 0 {
		rate = 44100
	}
	return &SpeakerOutput{rate: rate}
}

func (s *SpeakerOutput) Play(clip *Clip, onEnd func()) (Handle, error) {
	s.once.Do(func() {
		s.initErr = speaker.Init(s.rate, s.rate.N(time.Second/10))
	})
	if s.initErr != nil {
		return nil, fmt.Errorf("failed to init speaker: %w", s.initErr)
	}

	var st beep.Streamer = clip.Streamer()
	if clip.Format().SampleRate != s.rate {
		st = beep.Resample(4, clip.Format().SampleRate, s.rate, st)
	}

	ctrl := &beep.Ctrl{Streamer: st, Paused: false}
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		// runs on the speaker goroutine with the speaker lock held
		go onEnd()
	})))

	return &speakerHandle{ctrl: ctrl}, nil
}

type speakerHandle struct {
	ctrl *beep.Ctrl
}

func (h *speakerHandle) Stop() {
	speaker.Lock()
	h.ctrl.Streamer = nil
	speaker.Unlock()
}

func (h *speakerHandle) SetPaused(paused bool) {
	speaker.Lock()
	h.ctrl.Paused = paused
	speaker.Unlock()
}
