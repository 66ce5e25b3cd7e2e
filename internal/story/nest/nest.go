package nest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"wondertales/internal/cli/scheme/colours"
	"wondertales/internal/config"
	"wondertales/internal/domain/library"
	"wondertales/internal/domain/library/generator"
	"wondertales/internal/story/audio"
	"wondertales/internal/story/favorites"
	"wondertales/internal/story/recorder"
	"wondertales/internal/story/tts"
)

// Nest is the application: every collaborator built once from config and
// the terminal screens that drive them.
type Nest struct {
	cfg      *config.Config
	provider generator.Provider
	library  library.Library
	Tts      tts.Engine
	playback *audio.Controller
	recorder *recorder.Controller
	gate     *favorites.Gate

	in  *bufio.Reader
	out io.Writer
	log *logrus.Entry

	ctx    context.Context
	Cancel context.CancelFunc
}

type Option func(*options)

type options struct {
	in     io.Reader
	out    io.Writer
	output audio.Output
	mic    recorder.Microphone
	lib    library.Library
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
	}
}

// WithAudioOutput replaces the system speaker.
func WithAudioOutput(out audio.Output) Option {
	return func(o *options) { o.output = out }
}

// WithMicrophone replaces the recorder process.
func WithMicrophone(mic recorder.Microphone) Option {
	return func(o *options) { o.mic = mic }
}

// WithLibrary replaces the store selected by config.
func WithLibrary(lib library.Library) Option {
	return func(o *options) { o.lib = lib }
}

func New(cfg *config.Config, opts ...Option) (*Nest, error) {
	o := options{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	log := logrus.WithField("component", "nest")

	provider, err := generator.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create story provider: %w", err)
	}
	log.WithField("provider", provider.Name()).Debug("Story provider ready")

	engine, err := tts.NewEngine(tts.Config{
		Type:      cfg.TTS.Type,
		Speed:     cfg.TTS.Speed,
		Volume:    cfg.TTS.Volume,
		Voice:     cfg.TTS.Voice,
		CachePath: cfg.TTS.CachePath,
	}, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create tts engine: %w", err)
	}
	log.WithField("engine", engine.Name()).Debug("Narration engine ready")

	lib := o.lib
	if lib == nil {
		if lib, err = library.Open(cfg); err != nil {
			return nil, fmt.Errorf("failed to open library: %w", err)
		}
	}

	output := o.output
	if output == nil {
		output = audio.NewSpeakerOutput(0)
	}
	playback := audio.NewController(output, nil)

	mic := o.mic
	if mic == nil {
		mic = recorder.NewCommandMicrophone(cfg.Recorder.Command, cfg.Recorder.SampleRate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Nest{
		cfg:      cfg,
		provider: provider,
		library:  lib,
		Tts:      engine,
		playback: playback,
		recorder: recorder.NewController(mic, playback, nil),
		gate:     favorites.NewGate(lib, cfg.Favorites.AllowRemove, nil),
		in:       bufio.NewReader(o.in),
		out:      o.out,
		log:      log,
		ctx:      ctx,
		Cancel:   cancel,
	}, nil
}

// Stop silences any audio. Safe to call from a signal handler.
func (n *Nest) Stop() {
	n.Cancel()
	n.playback.StopAll()
}

func (n *Nest) Close() error {
	n.Stop()
	if c, ok := n.Tts.(io.Closer); ok {
		if err := c.Close(); err != nil {
			n.log.WithError(err).Warn("Failed to close tts engine")
		}
	}
	return n.library.Close()
}

func (n *Nest) ShowWelcome() {
	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "🌟 Welcome to WonderTales! 🌟")
	fmt.Fprintln(n.out)
	colours.Info.Fprintln(n.out, "📚 Available commands:")
	fmt.Fprintln(n.out, "  • wondertales read [topic]   - Make up a new story together")
	fmt.Fprintln(n.out, "  • wondertales riddle         - Play the riddle game")
	fmt.Fprintln(n.out, "  • wondertales chat           - Talk to Sparkle")
	fmt.Fprintln(n.out, "  • wondertales dashboard      - Parents area")
	fmt.Fprintln(n.out, "  • wondertales favorites      - Manage favorite pictures")
	fmt.Fprintln(n.out, "  • wondertales settings       - Show voice settings")
	fmt.Fprintln(n.out)
	colours.Prompt.Fprintln(n.out, "✨ Ready for a magical story adventure? ✨")
}

func (n *Nest) sessionDeps() sessionDeps {
	return sessionDeps{
		writer:      n.provider,
		illustrator: n.provider,
		narrator:    n.Tts,
		player:      n.playback,
		recorder:    n.recorder,
		gate:        n.gate,
		saver:       n.library,
		endingAfter: n.cfg.Story.EndingAfter,
		imageDir:    n.cfg.Story.ImageDir,
		log:         logrus.WithField("component", "session"),
	}
}

// readLine prompts and returns the trimmed answer. ok is false at end of
// input or once the app is shutting down.
func (n *Nest) readLine(prompt string) (string, bool) {
	if n.ctx.Err() != nil {
		return "", false
	}
	if prompt != "" {
		colours.Prompt.Fprint(n.out, prompt)
	}
	line, err := n.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}
