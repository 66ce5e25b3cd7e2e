package book

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wondertales/internal/domain/story"
)

var (
	ErrPagePending     = errors.New("book: next page is still being written")
	ErrStoryEnded      = errors.New("book: story has ended, no more choices")
	ErrNotAtLatestPage = errors.New("book: choices can only be made on the latest page")
	ErrFinished        = errors.New("book: session already finished")
	ErrUnknownChoice   = errors.New("book: not one of the page's choices")
)

type State int

const (
	Viewing State = iota
	AwaitingNextPage
	Ended
)

func (s State) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case AwaitingNextPage:
		return "awaiting_next_page"
	default:
		return "ended"
	}
}

// Continuer writes the page that follows a choice.
type Continuer interface {
	ContinueStory(ctx context.Context, previousText, choice string, pageCount int) (*story.Page, error)
}

// Result is emitted once when the reader leaves the story.
type Result struct {
	Pages           []story.Page
	DurationSeconds int
}

type Options struct {
	// EndingAfter is the page count from which continuations must close
	// the story. Defaults to 4.
	EndingAfter int
	OnExit      func(Result)
	Now         func() time.Time
	Log         *logrus.Entry
}

// Book is the page sequence of one reading session and the cursor over it.
// Pages are only ever appended and the cursor always names an existing page.
type Book struct {
	writer      Continuer
	endingAfter int
	onExit      func(Result)
	now         func() time.Time
	log         *logrus.Entry

	mu      sync.Mutex
	pages   []story.Page
	index   int
	state   State
	started time.Time
}

// New opens a session on its first page.
func New(first story.Page, writer Continuer, opts Options) *Book {
	if opts.EndingAfter <= 0 {
		opts.EndingAfter = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.WithField("component", "book")
	}
	first.UserRecording = nil

	return &Book{
		writer:      writer,
		endingAfter: opts.EndingAfter,
		onExit:      opts.OnExit,
		now:         opts.Now,
		log:         opts.Log,
		pages:       []story.Page{first},
		started:     opts.Now(),
	}
}

// SelectChoice asks for the next page and moves onto it. On failure nothing
// is appended and the cursor stays put. Only one request runs at a time.
func (b *Book) SelectChoice(ctx context.Context, choice string) (int, error) {
	b.mu.Lock()
	switch {
	case b.state == Ended:
		b.mu.Unlock()
		return b.index, ErrFinished
	case b.state == AwaitingNextPage:
		b.mu.Unlock()
		return b.index, ErrPagePending
	case b.index != len(b.pages)-1:
		b.mu.Unlock()
		return b.index, ErrNotAtLatestPage
	}

	current := b.pages[b.index]
	if current.IsEnding || len(current.Choices) == 0 {
		b.mu.Unlock()
		return b.index, ErrStoryEnded
	}
	choice, ok := matchChoice(current.Choices, choice)
	if !ok {
		b.mu.Unlock()
		return b.index, ErrUnknownChoice
	}

	from := b.index
	pageCount := from + 1
	b.state = AwaitingNextPage
	b.mu.Unlock()

	log := b.log.WithFields(logrus.Fields{"page": from, "choice": choice})
	log.Debug("Requesting next page")

	next, err := b.writer.ContinueStory(ctx, current.Text, choice, pageCount)
	if err == nil && next == nil {
		err = fmt.Errorf("no page returned")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Viewing

	if err != nil {
		log.WithError(err).Warn("Failed to continue story")
		var se *story.Error
		if !errors.As(err, &se) {
			err = story.GenerationError("continue story", err)
		}
		return b.index, err
	}

	page := *next
	page.UserRecording = nil
	if pageCount >= b.endingAfter {
		page.IsEnding = true
		page.Choices = nil
	}

	b.pages = append(b.pages, page)
	b.index = len(b.pages) - 1
	log.WithField("ending", page.IsEnding).Info("Turned to new page")
	return b.index, nil
}

// GoBack moves to the previous page. It is a no-op on the first page.
func (b *Book) GoBack() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.navigableLocked(); err != nil {
		return b.index, err
	}
	if b.index > 0 {
		b.index--
	}
	return b.index, nil
}

// GoForward moves towards the latest page. It is a no-op on the latest page.
func (b *Book) GoForward() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.navigableLocked(); err != nil {
		return b.index, err
	}
	if b.index < len(b.pages)-1 {
		b.index++
	}
	return b.index, nil
}

func (b *Book) navigableLocked() error {
	switch b.state {
	case Ended:
		return ErrFinished
	case AwaitingNextPage:
		return ErrPagePending
	}
	return nil
}

// Finish ends the session and emits the pages and whole seconds elapsed.
// The exit callback runs exactly once.
func (b *Book) Finish() (Result, error) {
	b.mu.Lock()
	if err := b.navigableLocked(); err != nil {
		b.mu.Unlock()
		return Result{}, err
	}

	b.state = Ended
	elapsed := b.now().Sub(b.started)
	if elapsed < 0 {
		elapsed = 0
	}
	res := Result{
		Pages:           b.copyPagesLocked(),
		DurationSeconds: int(elapsed / time.Second),
	}
	onExit := b.onExit
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{
		"pages":    len(res.Pages),
		"duration": res.DurationSeconds,
	}).Info("Story finished")

	if onExit != nil {
		onExit(res)
	}
	return res, nil
}

// AttachRecording stores the child's voice on the page it was recorded for,
// replacing any earlier recording.
func (b *Book) AttachRecording(rec *story.Recording) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Ended {
		return ErrFinished
	}
	if rec == nil || rec.PageIndex < 0 || rec.PageIndex >= len(b.pages) {
		return fmt.Errorf("recording does not belong to a page in this story")
	}
	b.pages[rec.PageIndex].UserRecording = rec
	return nil
}

func (b *Book) HasRecording(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.pages) {
		return false
	}
	return b.pages[index].HasRecording()
}

// Current returns the cursor and the page under it.
func (b *Book) Current() (int, story.Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index, b.pages[b.index]
}

func (b *Book) Pages() []story.Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyPagesLocked()
}

func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pages)
}

func (b *Book) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// AtLatest reports whether the cursor is on the newest page.
func (b *Book) AtLatest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index == len(b.pages)-1
}

func (b *Book) copyPagesLocked() []story.Page {
	out := make([]story.Page, len(b.pages))
	copy(out, b.pages)
	return out
}

// matchChoice finds choice among the page's choices, ignoring case and
// surrounding space, and returns the page's own wording.
func matchChoice(choices []string, choice string) (string, bool) {
	for _, c := range choices {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(choice)) {
			return c, true
		}
	}
	return "", false
}
