package nest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wondertales/internal/domain/library/generator"
	"wondertales/internal/domain/story"
	"wondertales/internal/story/audio"
	"wondertales/internal/story/book"
	"wondertales/internal/story/favorites"
	"wondertales/internal/story/loader"
	"wondertales/internal/story/media"
)

var ErrEmptyTopic = errors.New("nest: tell me what the story should be about")

// Player is the playback surface a reading session drives.
type Player interface {
	PlayNarration(clip *audio.Clip) error
	PlayRecording(rec *story.Recording) error
	StopAll()
	TogglePause() bool
	IsPlaying() bool
}

// VoiceRecorder captures the child's voice for a page.
type VoiceRecorder interface {
	Start(ctx context.Context, pageIndex int) error
	Stop() (*story.Recording, error)
	IsRecording() bool
}

// StorySaver receives the finished story.
type StorySaver interface {
	SaveStory(ctx context.Context, s story.Story) error
}

// sessionDeps are the collaborators every reading session shares.
type sessionDeps struct {
	writer      generator.StoryWriter
	illustrator generator.Illustrator
	narrator    loader.Narrator
	player      Player
	recorder    VoiceRecorder
	gate        *favorites.Gate
	saver       StorySaver
	endingAfter int
	imageDir    string
	now         func() time.Time
	log         *logrus.Entry
}

// Session is one reading of one generated story: the book, the asset
// loader for the page in view, recordings and favorites.
type Session struct {
	deps   sessionDeps
	title  string
	book   *book.Book
	loader *loader.Loader
	log    *logrus.Entry

	mu       sync.Mutex
	saveCtx  context.Context
	saveErr  error
	exported map[int]string
	onView   func(loader.View)
}

// startSession asks the writer for the first page of a story about topic.
func startSession(ctx context.Context, deps sessionDeps, topic string) (*Session, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	first, err := deps.writer.StartStory(ctx, topic)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, story.GenerationError("start story", fmt.Errorf("no page returned"))
	}
	return newSession(deps, *first, topic), nil
}

// newSession is the story-started hook: it opens the book on the first
// page with a fresh media cache.
func newSession(deps sessionDeps, first story.Page, title string) *Session {
	if deps.now == nil {
		deps.now = time.Now
	}
	if deps.log == nil {
		deps.log = logrus.WithField("component", "session")
	}

	s := &Session{
		deps:     deps,
		title:    title,
		log:      deps.log.WithField("title", title),
		exported: make(map[int]string),
	}
	s.book = book.New(first, deps.writer, book.Options{
		EndingAfter: deps.endingAfter,
		OnExit:      s.save,
		Now:         deps.now,
		Log:         deps.log.WithField("component", "book"),
	})
	s.loader = loader.New(media.NewCache(), deps.illustrator, deps.narrator, deps.player, s, deps.log.WithField("component", "loader"))
	s.loader.OnChange(s.viewChanged)
	return s
}

// OnView registers a callback for every asset state change of the page in
// view.
func (s *Session) OnView(fn func(loader.View)) {
	s.mu.Lock()
	s.onView = fn
	s.mu.Unlock()
}

// Open shows the first page.
func (s *Session) Open(ctx context.Context) {
	idx, page := s.book.Current()
	s.loader.Show(ctx, idx, page)
}

// Choose picks one of the latest page's choices and turns to the new page.
func (s *Session) Choose(ctx context.Context, choice string) error {
	s.stopRecording()
	s.deps.player.StopAll()
	if _, err := s.book.SelectChoice(ctx, choice); err != nil {
		return err
	}
	s.show(ctx)
	return nil
}

func (s *Session) Back(ctx context.Context) error {
	return s.move(ctx, s.book.GoBack)
}

func (s *Session) Forward(ctx context.Context) error {
	return s.move(ctx, s.book.GoForward)
}

func (s *Session) move(ctx context.Context, step func() (int, error)) error {
	before, _ := s.book.Current()
	s.stopRecording()
	idx, err := step()
	if err != nil {
		return err
	}
	if idx != before {
		s.show(ctx)
	}
	return nil
}

func (s *Session) show(ctx context.Context) {
	s.deps.player.StopAll()
	idx, page := s.book.Current()
	s.loader.Show(ctx, idx, page)
}

// Page returns the cursor and the page in view.
func (s *Session) Page() (int, story.Page) {
	return s.book.Current()
}

func (s *Session) View() loader.View {
	return s.loader.Current()
}

func (s *Session) Book() *book.Book {
	return s.book
}

func (s *Session) Title() string {
	return s.title
}

// ReplayNarration plays the page's narration again.
func (s *Session) ReplayNarration() error {
	return s.loader.ReplayNarration()
}

// TogglePause pauses or resumes whatever is playing.
func (s *Session) TogglePause() bool {
	return s.deps.player.TogglePause()
}

// ToggleFavorite hearts the illustration in view.
func (s *Session) ToggleFavorite(ctx context.Context) (bool, error) {
	v := s.loader.Current()
	if v.Illustration == nil {
		return false, fmt.Errorf("the picture is not ready yet")
	}
	_, page := s.book.Current()
	return s.deps.gate.Toggle(ctx, v.Illustration, page.ImagePrompt)
}

func (s *Session) IsFavorite() bool {
	v := s.loader.Current()
	if v.Illustration == nil {
		return false
	}
	return s.deps.gate.IsFavorite(v.Illustration.Ref)
}

// StartRecording opens the microphone for the page in view.
func (s *Session) StartRecording(ctx context.Context) error {
	if s.deps.recorder == nil {
		return story.DeviceUnavailable("start recording", fmt.Errorf("no microphone configured"))
	}
	idx, _ := s.book.Current()
	return s.deps.recorder.Start(ctx, idx)
}

// StopRecording saves the captured voice on the page it was recorded for.
func (s *Session) StopRecording() (*story.Recording, error) {
	if s.deps.recorder == nil {
		return nil, story.DeviceUnavailable("stop recording", fmt.Errorf("no microphone configured"))
	}
	rec, err := s.deps.recorder.Stop()
	if err != nil {
		return nil, err
	}
	if err := s.book.AttachRecording(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Session) IsRecording() bool {
	return s.deps.recorder != nil && s.deps.recorder.IsRecording()
}

// stopRecording finishes a recording left running when the reader leaves
// the page.
func (s *Session) stopRecording() {
	if !s.IsRecording() {
		return
	}
	if _, err := s.StopRecording(); err != nil {
		s.log.WithError(err).Warn("Failed to keep recording")
	}
}

// PlayMyVoice plays the child's recording for the page in view.
func (s *Session) PlayMyVoice() error {
	_, page := s.book.Current()
	if !page.HasRecording() {
		return audio.ErrNoRecording
	}
	return s.deps.player.PlayRecording(page.UserRecording)
}

// HasRecording reports whether index has a recording or is being recorded
// right now. The loader uses it to hold back auto-played narration.
func (s *Session) HasRecording(index int) bool {
	if s.book.HasRecording(index) {
		return true
	}
	return s.IsRecording()
}

// ExportedImage returns where the illustration for index was written.
func (s *Session) ExportedImage(index int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.exported[index]
	return path, ok
}

// Finish closes the story and stores it in the history.
func (s *Session) Finish(ctx context.Context) (book.Result, error) {
	s.stopRecording()
	s.deps.player.StopAll()

	s.mu.Lock()
	s.saveCtx = ctx
	s.mu.Unlock()

	res, err := s.book.Finish()
	if err != nil {
		return res, err
	}
	s.loader.Close()

	s.mu.Lock()
	saveErr := s.saveErr
	s.mu.Unlock()
	return res, saveErr
}

// save is the book's exit hook.
func (s *Session) save(res book.Result) {
	rec := story.Story{
		ID:              uuid.NewString(),
		Title:           s.title,
		Date:            s.deps.now(),
		Pages:           res.Pages,
		DurationSeconds: res.DurationSeconds,
	}

	s.mu.Lock()
	ctx := s.saveCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	if s.deps.saver != nil {
		err = s.deps.saver.SaveStory(ctx, rec)
	}
	if err != nil {
		s.log.WithError(err).Warn("Failed to save story to history")
		err = fmt.Errorf("failed to save story: %w", err)
	} else {
		s.log.WithField("id", rec.ID).Info("Story saved to history")
	}

	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

func (s *Session) viewChanged(v loader.View) {
	ready := v.Image == loader.Ready && v.Illustration != nil
	if ready {
		s.export(v.Index, v.Illustration)
	}

	// a late view for a page already left must not overwrite the gate
	if idx, _ := s.book.Current(); v.Index != idx {
		return
	}
	if ready {
		if _, err := s.deps.gate.Check(context.Background(), v.Illustration); err != nil {
			s.log.WithError(err).Warn("Failed to read favorites")
		}
	}

	s.mu.Lock()
	fn := s.onView
	s.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

func (s *Session) export(index int, img *story.Illustration) {
	if s.deps.imageDir == "" || len(img.Data) == 0 {
		return
	}

	s.mu.Lock()
	_, done := s.exported[index]
	s.mu.Unlock()
	if done {
		return
	}

	if err := os.MkdirAll(s.deps.imageDir, 0755); err != nil {
		s.log.WithError(err).Warn("Failed to create illustration directory")
		return
	}
	path := filepath.Join(s.deps.imageDir, fmt.Sprintf("page-%d.%s", index+1, img.Ext()))
	if err := os.WriteFile(path, img.Data, 0644); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("Failed to write illustration")
		return
	}

	s.mu.Lock()
	s.exported[index] = path
	s.mu.Unlock()
	s.log.WithField("path", path).Debug("Illustration written")
}

// wait blocks until background asset requests are done.
func (s *Session) wait() {
	s.loader.Wait()
}
