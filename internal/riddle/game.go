package riddle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"wondertales/internal/domain/library/generator"
	"wondertales/internal/domain/story"
	"wondertales/internal/story/audio"
)

var (
	ErrNoRound               = errors.New("riddle: no round in progress")
	ErrEmptyGuess            = errors.New("riddle: guess is empty")
	ErrVoiceInputUnavailable = errors.New("riddle: voice answers are not available, type the answer instead")
)

// Narrator turns text into speech. Every tts engine satisfies it.
type Narrator interface {
	Synthesize(ctx context.Context, text string) (*generator.Speech, error)
}

type Player interface {
	PlayNarration(clip *audio.Clip) error
	StopAll()
}

// Microphone is the part of the recording controller used for spoken
// answers.
type Microphone interface {
	Start(ctx context.Context, pageIndex int) error
	Stop() (*story.Recording, error)
}

// Outcome is the result of one guess. Prize is only set for a correct
// answer whose illustration could be drawn.
type Outcome struct {
	Verdict story.Verdict
	Prize   *story.Illustration
}

type Options struct {
	Illustrator generator.Illustrator
	Narrator    Narrator
	Player      Player
	Microphone  Microphone
	// Transcriber is optional. Without it voice answers fail closed.
	Transcriber generator.Transcriber
	Log         *logrus.Entry
}

// Game runs rounds of the riddle mini-game: a spoken clue, a typed or
// spoken guess, spoken feedback and a picture prize.
type Game struct {
	master      generator.RiddleMaster
	illustrator generator.Illustrator
	narrator    Narrator
	player      Player
	mic         Microphone
	transcriber generator.Transcriber
	log         *logrus.Entry

	mu     sync.Mutex
	round  *story.Riddle
	solved bool
}

func NewGame(master generator.RiddleMaster, opts Options) *Game {
	if opts.Log == nil {
		opts.Log = logrus.WithField("component", "riddle")
	}
	return &Game{
		master:      master,
		illustrator: opts.Illustrator,
		narrator:    opts.Narrator,
		player:      opts.Player,
		mic:         opts.Microphone,
		transcriber: opts.Transcriber,
		log:         opts.Log,
	}
}

// StartRound stops whatever is playing, fetches a new riddle and reads the
// clue aloud. A clue that cannot be spoken is still returned.
func (g *Game) StartRound(ctx context.Context) (*story.Riddle, error) {
	if g.player != nil {
		g.player.StopAll()
	}

	r, err := g.master.NewRiddle(ctx)
	if err != nil {
		return nil, err
	}
	if r == nil || strings.TrimSpace(r.Clue) == "" {
		return nil, story.GenerationError("new riddle", fmt.Errorf("no clue returned"))
	}

	g.mu.Lock()
	g.round = r
	g.solved = false
	g.mu.Unlock()

	g.log.WithField("answer_len", len(r.Answer)).Info("Riddle round started")
	g.speak(ctx, r.Clue)
	return r, nil
}

// RepeatClue reads the current clue again.
func (g *Game) RepeatClue(ctx context.Context) error {
	r, err := g.current()
	if err != nil {
		return err
	}
	g.speak(ctx, r.Clue)
	return nil
}

// Submit checks a guess against the current riddle.
func (g *Game) Submit(ctx context.Context, guess string) (*Outcome, error) {
	guess = strings.TrimSpace(guess)
	if guess == "" {
		return nil, ErrEmptyGuess
	}
	r, err := g.current()
	if err != nil {
		return nil, err
	}

	v, err := g.master.CheckAnswer(ctx, r.Answer, guess)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, story.GenerationError("check answer", fmt.Errorf("no verdict returned"))
	}

	out := &Outcome{Verdict: *v}
	g.log.WithField("correct", v.Correct).Debug("Guess checked")
	if v.Feedback != "" {
		g.speak(ctx, v.Feedback)
	}
	if !v.Correct {
		return out, nil
	}

	g.mu.Lock()
	g.solved = true
	g.mu.Unlock()

	if g.illustrator != nil && r.ImagePrompt != "" {
		img, err := g.illustrator.Illustrate(ctx, r.ImagePrompt)
		if err != nil {
			g.log.WithError(err).Warn("Prize illustration unavailable")
		} else {
			out.Prize = img
		}
	}
	return out, nil
}

// Solved reports whether the current round has been answered correctly.
func (g *Game) Solved() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.solved
}

// StartListening opens the microphone for a spoken answer.
func (g *Game) StartListening(ctx context.Context) error {
	if g.transcriber == nil || g.mic == nil {
		return ErrVoiceInputUnavailable
	}
	if _, err := g.current(); err != nil {
		return err
	}
	return g.mic.Start(ctx, -1)
}

// StopListening closes the microphone and returns what the child said.
func (g *Game) StopListening(ctx context.Context) (string, error) {
	if g.transcriber == nil || g.mic == nil {
		return "", ErrVoiceInputUnavailable
	}
	rec, err := g.mic.Stop()
	if err != nil {
		return "", err
	}

	text, err := g.transcriber.Transcribe(ctx, rec.Data, rec.MIMEType)
	if err != nil {
		g.log.WithError(err).Warn("Failed to transcribe spoken answer")
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// VoiceInput reports whether spoken answers are supported.
func (g *Game) VoiceInput() bool {
	return g.transcriber != nil && g.mic != nil
}

func (g *Game) current() (*story.Riddle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.round == nil {
		return nil, ErrNoRound
	}
	return g.round, nil
}

// speak is best effort: the game carries on silently when speech fails.
func (g *Game) speak(ctx context.Context, text string) {
	if g.narrator == nil || g.player == nil {
		return
	}
	speech, err := g.narrator.Synthesize(ctx, text)
	if err != nil {
		g.log.WithError(err).Warn("Speech unavailable")
		return
	}
	if speech == nil || len(speech.Data) == 0 {
		g.log.Warn("Speech unavailable: no audio returned")
		return
	}
	clip, err := audio.Decode(speech.Data, speech.MIMEType)
	if err != nil {
		g.log.WithError(err).Warn("Failed to decode speech")
		return
	}
	if err := g.player.PlayNarration(clip); err != nil {
		g.log.WithError(err).Warn("Failed to play speech")
	}
}
