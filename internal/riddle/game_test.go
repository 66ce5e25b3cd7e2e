package riddle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wondertales/internal/domain/library/generator"
	"wondertales/internal/domain/story"
	"wondertales/internal/story/audio"
)

type fakeMaster struct {
	riddle   *story.Riddle
	err      error
	checks   [][2]string
	checkErr error
}

func (m *fakeMaster) NewRiddle(ctx context.Context) (*story.Riddle, error) {
	return m.riddle, m.err
}

func (m *fakeMaster) CheckAnswer(ctx context.Context, answer, guess string) (*story.Verdict, error) {
	m.checks = append(m.checks, [2]string{answer, guess})
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	if answer == guess {
		return &story.Verdict{Correct: true, Feedback: "Yes! It was a " + answer}, nil
	}
	return &story.Verdict{Feedback: "Not quite!"}, nil
}

type fakeIllustrator struct {
	prompts []string
	err     error
}

func (f *fakeIllustrator) Illustrate(ctx context.Context, prompt string) (*story.Illustration, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &story.Illustration{Ref: prompt, MIMEType: "image/png"}, nil
}

type fakeNarrator struct {
	texts   []string
	err     error
	nothing bool
}

func (f *fakeNarrator) Synthesize(ctx context.Context, text string) (*generator.Speech, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.nothing {
		return nil, nil
	}
	return &generator.Speech{Data: make([]byte, 480), MIMEType: "audio/L16;codec=pcm;rate=24000"}, nil
}

type fakePlayer struct {
	plays int
	stops int
}

func (p *fakePlayer) PlayNarration(*audio.Clip) error { p.plays++; return nil }
func (p *fakePlayer) StopAll()                        { p.stops++ }

type fakeMic struct {
	started bool
	rec     *story.Recording
}

func (m *fakeMic) Start(ctx context.Context, pageIndex int) error {
	m.started = true
	return nil
}

func (m *fakeMic) Stop() (*story.Recording, error) {
	m.started = false
	return m.rec, nil
}

type fakeTranscriber struct{ text string }

func (f fakeTranscriber) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	return f.text, nil
}

type harness struct {
	game     *Game
	master   *fakeMaster
	artist   *fakeIllustrator
	narrator *fakeNarrator
	player   *fakePlayer
}

func newHarness(opts Options) *harness {
	h := &harness{
		master:   &fakeMaster{riddle: &story.Riddle{Answer: "cat", Clue: "I purr and chase mice.", ImagePrompt: "a cartoon cat"}},
		artist:   &fakeIllustrator{},
		narrator: &fakeNarrator{},
		player:   &fakePlayer{},
	}
	opts.Illustrator = h.artist
	opts.Narrator = h.narrator
	opts.Player = h.player
	h.game = NewGame(h.master, opts)
	return h
}

func TestStartRoundSpeaksClue(t *testing.T) {
	h := newHarness(Options{})

	r, err := h.game.StartRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cat", r.Answer)
	assert.Equal(t, 1, h.player.stops)
	assert.Equal(t, []string{"I purr and chase mice."}, h.narrator.texts)
	assert.Equal(t, 1, h.player.plays)

	require.NoError(t, h.game.RepeatClue(context.Background()))
	assert.Equal(t, 2, h.player.plays)
}

func TestStartRoundSpeechFailureIsNotFatal(t *testing.T) {
	h := newHarness(Options{})
	h.narrator.err = errors.New("tts down")

	r, err := h.game.StartRound(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, r)
	assert.Zero(t, h.player.plays)
}

func TestStartRoundWithoutSpeechIsNotFatal(t *testing.T) {
	h := newHarness(Options{})
	h.narrator.nothing = true

	r, err := h.game.StartRound(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, r)
	assert.Zero(t, h.player.plays)
}

func TestStartRoundProviderFailure(t *testing.T) {
	h := newHarness(Options{})
	h.master.err = story.GenerationError("new riddle", errors.New("boom"))

	_, err := h.game.StartRound(context.Background())
	require.ErrorIs(t, err, story.ErrGeneration)

	_, err = h.game.Submit(context.Background(), "cat")
	require.ErrorIs(t, err, ErrNoRound)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	_, err := h.game.StartRound(ctx)
	require.NoError(t, err)

	_, err = h.game.Submit(ctx, "   ")
	require.ErrorIs(t, err, ErrEmptyGuess)
	assert.Empty(t, h.master.checks)

	out, err := h.game.Submit(ctx, "dog")
	require.NoError(t, err)
	assert.False(t, out.Verdict.Correct)
	assert.Nil(t, out.Prize)
	assert.Empty(t, h.artist.prompts)
	assert.False(t, h.game.Solved())

	out, err = h.game.Submit(ctx, " cat ")
	require.NoError(t, err)
	assert.True(t, out.Verdict.Correct)
	require.NotNil(t, out.Prize)
	assert.Equal(t, "a cartoon cat", out.Prize.Ref)
	assert.True(t, h.game.Solved())
	assert.Equal(t, [2]string{"cat", "cat"}, h.master.checks[1])
	assert.Contains(t, h.narrator.texts, "Yes! It was a cat")
}

func TestSubmitPrizeFailureDegrades(t *testing.T) {
	ctx := context.Background()
	h := newHarness(Options{})
	h.artist.err = story.MediaUnavailable("illustrate", errors.New("no images today"))
	_, err := h.game.StartRound(ctx)
	require.NoError(t, err)

	out, err := h.game.Submit(ctx, "cat")
	require.NoError(t, err)
	assert.True(t, out.Verdict.Correct)
	assert.Nil(t, out.Prize)
}

func TestVoiceInputFailsClosedWithoutTranscriber(t *testing.T) {
	ctx := context.Background()
	mic := &fakeMic{}
	h := newHarness(Options{Microphone: mic})
	_, err := h.game.StartRound(ctx)
	require.NoError(t, err)

	assert.False(t, h.game.VoiceInput())
	require.ErrorIs(t, h.game.StartListening(ctx), ErrVoiceInputUnavailable)
	assert.False(t, mic.started)

	_, err = h.game.StopListening(ctx)
	require.ErrorIs(t, err, ErrVoiceInputUnavailable)
}

func TestVoiceInputTranscribes(t *testing.T) {
	ctx := context.Background()
	mic := &fakeMic{rec: &story.Recording{Data: []byte{1, 2}, MIMEType: "audio/wav"}}
	h := newHarness(Options{Microphone: mic, Transcriber: fakeTranscriber{text: " cat \n"}})

	require.ErrorIs(t, h.game.StartListening(ctx), ErrNoRound)

	_, err := h.game.StartRound(ctx)
	require.NoError(t, err)
	require.NoError(t, h.game.StartListening(ctx))
	assert.True(t, mic.started)

	text, err := h.game.StopListening(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cat", text)
}
