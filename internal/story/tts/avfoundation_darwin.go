//go:build darwin

package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"wondertales/internal/domain/library/generator"
)

// AVFoundationEngine narrates with the macOS speech synthesizer through the
// built-in 'say' command, rendering to a WAV file.
type AVFoundationEngine struct {
	config Config
}

// newAVFoundationEngine creates a new macOS AVFoundation TTS engine
func newAVFoundationEngine(config Config) (Engine, error) {
	if _, err := exec.LookPath("say"); err != nil {
		return nil, fmt.Errorf("say command not found: %w", err)
	}
	return &AVFoundationEngine{config: config}, nil
}

func (av *AVFoundationEngine) Name() string {
	return EngineTypeAVFoundation.String()
}

func (av *AVFoundationEngine) Synthesize(ctx context.Context, text string) (*generator.Speech, error) {
	dir, err := os.MkdirTemp("", "wondertales-say")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "narration.wav")

	args := []string{"--file-format=WAVE", "--data-format=LEI16@22050", "-o", out}

	// Set voice if specified
	if av.config.Voice != "" && av.config.Voice != "default" {
		args = append(args, "-v", av.config.Voice)
	}

	// Set rate (words per minute, default is ~175)
	speed := av.config.Speed
	if speed <= 0 {
		speed = 1.0
	}
	args = append(args, "-r", fmt.Sprintf("%.0f", 175*speed), "--", text)

	if output, err := exec.CommandContext(ctx, "say", args...).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("say failed: %w: %s", err, output)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read narration: %w", err)
	}
	return &generator.Speech{Data: data, MIMEType: "audio/wav"}, nil
}
