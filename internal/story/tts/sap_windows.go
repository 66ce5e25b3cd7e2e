//go:build windows

package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"wondertales/internal/domain/library/generator"
)

// SAPIEngine implements Windows SAPI TTS through System.Speech, rendering
// to a WAV file instead of the default audio device.
type SAPIEngine struct {
	config Config
}

// newSAPIEngine creates a new Windows SAPI TTS engine
func newSAPIEngine(config Config) (Engine, error) {
	if _, err := exec.LookPath("powershell"); err != nil {
		return nil, fmt.Errorf("powershell not found: %w", err)
	}
	return &SAPIEngine{config: config}, nil
}

func (s *SAPIEngine) Name() string {
	return EngineTypeSAPI.String()
}

func (s *SAPIEngine) Synthesize(ctx context.Context, text string) (*generator.Speech, error) {
	dir, err := os.MkdirTemp("", "wondertales-sapi")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "narration.wav")

	speed := s.config.Speed
	if speed <= 0 {
		speed = 1.0
	}
	volume := s.config.Volume
	if volume <= 0 {
		volume = 1.0
	}

	script := fmt.Sprintf(`Add-Type -AssemblyName System.Speech;
$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer;
$synth.Rate = %d;
$synth.Volume = %d;
$synth.SetOutputToWaveFile('%s');
$synth.Speak('%s');
$synth.Dispose()`,
		clampInt(int(speed*10)-10, -10, 10), // Convert to SAPI range (-10 to 10)
		clampInt(int(volume*100), 0, 100),   // Convert to SAPI range (0 to 100)
		psQuote(out),
		psQuote(text))

	if output, err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("SAPI failed: %w: %s", err, output)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read narration: %w", err)
	}
	return &generator.Speech{Data: data, MIMEType: "audio/wav"}, nil
}

// psQuote escapes a value for a single-quoted PowerShell string.
func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
