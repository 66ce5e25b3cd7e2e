package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"wondertales/internal/domain/library/generator"
	"wondertales/internal/domain/story"
	"wondertales/internal/story/audio"
	"wondertales/internal/story/media"
)

var ErrNarrationNotReady = errors.New("loader: narration not ready")

type Illustrator interface {
	Illustrate(ctx context.Context, prompt string) (*story.Illustration, error)
}

// Narrator is satisfied by every tts engine.
type Narrator interface {
	Synthesize(ctx context.Context, text string) (*generator.Speech, error)
}

type Player interface {
	PlayNarration(clip *audio.Clip) error
}

// Recordings tells the loader whether a page has the child's own voice,
// which always takes priority over auto-played narration.
type Recordings interface {
	HasRecording(index int) bool
}

type AssetState int

const (
	Loading AssetState = iota
	Ready
	Unavailable
)

func (s AssetState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unavailable"
	}
}

// View is the observable asset state of the page in view.
type View struct {
	Index        int
	Image        AssetState
	Illustration *story.Illustration
	Narration    AssetState
	AutoPlayed   bool
}

// Loader fetches the illustration and narration for the page in view,
// serving from the media cache when it can. Results that arrive after the
// reader has moved to another page are cached but change nothing else.
type Loader struct {
	cache       *media.Cache
	illustrator Illustrator
	narrator    Narrator
	player      Player
	recordings  Recordings
	log         *logrus.Entry

	mu       sync.Mutex
	page     story.Page
	view     View
	shown    bool
	closed   bool
	inflight map[string]bool
	onChange func(View)

	wg sync.WaitGroup
}

func New(cache *media.Cache, illustrator Illustrator, narrator Narrator, player Player, recordings Recordings, log *logrus.Entry) *Loader {
	if log == nil {
		log = logrus.WithField("component", "loader")
	}
	return &Loader{
		cache:       cache,
		illustrator: illustrator,
		narrator:    narrator,
		player:      player,
		recordings:  recordings,
		log:         log,
		inflight:    make(map[string]bool),
	}
}

// OnChange registers a callback invoked with a snapshot of the view every
// time it changes. It runs on whichever goroutine made the change.
func (l *Loader) OnChange(fn func(View)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Show makes page the page in view and ensures its assets.
func (l *Loader) Show(ctx context.Context, index int, page story.Page) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}

	l.page = page
	l.shown = true
	l.view = View{Index: index}
	log := l.log.WithField("page", index)

	if img, ok := l.cache.Image(index); ok {
		log.Debug("Illustration cache hit")
		l.view.Image = Ready
		l.view.Illustration = img
	} else {
		l.view.Image = Loading
		l.dispatch(imageKey(index), func() { l.fetchImage(ctx, index, page.ImagePrompt) })
	}

	if clip, ok := l.cache.Narration(index); ok {
		log.Debug("Narration cache hit")
		l.view.Narration = Ready
		l.autoPlayLocked(index, clip)
	} else {
		l.view.Narration = Loading
		l.dispatch(narrationKey(index), func() { l.fetchNarration(ctx, index, page.Text) })
	}

	view, notify := l.view, l.onChange
	l.mu.Unlock()

	if notify != nil {
		notify(view)
	}
}

// ReplayNarration plays the narration of the page in view on explicit
// request, even when the page has a recording.
func (l *Loader) ReplayNarration() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.shown {
		return ErrNarrationNotReady
	}
	clip, ok := l.cache.Narration(l.view.Index)
	if !ok {
		return ErrNarrationNotReady
	}
	return l.player.PlayNarration(clip)
}

// Current returns a snapshot of the view.
func (l *Loader) Current() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view
}

// Close detaches the loader from the screen. In-flight requests still
// complete and fill the cache.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	l.onChange = nil
	l.mu.Unlock()
}

// Wait blocks until every dispatched request has finished.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// dispatch starts fn unless a request for key is already running. Must be
// called with l.mu held.
func (l *Loader) dispatch(key string, fn func()) {
	if l.inflight[key] {
		l.log.WithField("key", key).Debug("Request already in flight")
		return
	}
	l.inflight[key] = true
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

func (l *Loader) fetchImage(ctx context.Context, index int, prompt string) {
	img, err := l.illustrator.Illustrate(ctx, prompt)
	if err == nil && img == nil {
		err = story.MediaUnavailable("illustrate", fmt.Errorf("no image returned"))
	}

	l.mu.Lock()
	delete(l.inflight, imageKey(index))
	if err == nil {
		l.cache.PutImage(index, img)
		// keep whatever was cached first
		img, _ = l.cache.Image(index)
	} else {
		l.log.WithError(err).WithField("page", index).Warn("Illustration unavailable")
	}

	if !l.currentLocked(index) {
		l.log.WithField("page", index).Debug("Ignoring late illustration for page no longer in view")
		l.mu.Unlock()
		return
	}
	if err != nil {
		l.view.Image = Unavailable
	} else {
		l.view.Image = Ready
		l.view.Illustration = img
	}
	view, notify := l.view, l.onChange
	l.mu.Unlock()

	if notify != nil {
		notify(view)
	}
}

func (l *Loader) fetchNarration(ctx context.Context, index int, text string) {
	clip, err := l.synthesize(ctx, text)

	l.mu.Lock()
	delete(l.inflight, narrationKey(index))
	if err == nil {
		l.cache.PutNarration(index, clip)
		clip, _ = l.cache.Narration(index)
	} else {
		l.log.WithError(err).WithField("page", index).Warn("Narration unavailable")
	}

	if !l.currentLocked(index) {
		l.log.WithField("page", index).Debug("Ignoring late narration for page no longer in view")
		l.mu.Unlock()
		return
	}
	if err != nil {
		l.view.Narration = Unavailable
	} else {
		l.view.Narration = Ready
		l.autoPlayLocked(index, clip)
	}
	view, notify := l.view, l.onChange
	l.mu.Unlock()

	if notify != nil {
		notify(view)
	}
}

func (l *Loader) synthesize(ctx context.Context, text string) (*audio.Clip, error) {
	speech, err := l.narrator.Synthesize(ctx, text)
	if err != nil {
		return nil, story.MediaUnavailable("generate speech", err)
	}
	if speech == nil || len(speech.Data) == 0 {
		return nil, story.MediaUnavailable("generate speech", fmt.Errorf("no audio returned"))
	}
	clip, err := audio.Decode(speech.Data, speech.MIMEType)
	if err != nil {
		return nil, story.MediaUnavailable("decode speech", err)
	}
	return clip, nil
}

// autoPlayLocked plays narration unless the page has a recording.
func (l *Loader) autoPlayLocked(index int, clip *audio.Clip) {
	if l.recordings != nil && l.recordings.HasRecording(index) {
		l.log.WithField("page", index).Debug("Page has a recording, not auto-playing narration")
		return
	}
	if err := l.player.PlayNarration(clip); err != nil {
		l.log.WithError(err).WithField("page", index).Warn("Failed to play narration")
		return
	}
	l.view.AutoPlayed = true
}

func (l *Loader) currentLocked(index int) bool {
	return !l.closed && l.shown && l.view.Index == index
}

func imageKey(index int) string {
	return fmt.Sprintf("image:%d", index)
}

func narrationKey(index int) string {
	return fmt.Sprintf("narration:%d", index)
}
