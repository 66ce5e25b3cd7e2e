package tts

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/texttospeech/apiv1"
	"github.com/sirupsen/logrus"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"wondertales/internal/domain/library/generator"
)

const defaultGoogleVoice = "en-US-Chirp3-HD-Charon"

// GoogleClassicTTSEngine synthesizes MP3 narration with Google Cloud
// Text-to-Speech and keeps every chunk on disk keyed by text and voice.
type GoogleClassicTTSEngine struct {
	client       *texttospeech.Client
	voice        string
	speed        float64
	volume       float64
	cacheRootDir string
	log          *logrus.Entry
}

func newGoogleClassicTTSEngine(config Config) (*GoogleClassicTTSEngine, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	cacheDir := filepath.Join(config.CachePath, "google_classic")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	voice := config.Voice
	if voice == "" || voice == "default" {
		voice = defaultGoogleVoice
	}

	return &GoogleClassicTTSEngine{
		client:       client,
		voice:        voice,
		speed:        config.Speed,
		volume:       config.Volume,
		cacheRootDir: cacheDir,
		log:          logrus.WithField("engine", EngineTypeGoogleClassic.String()),
	}, nil
}

func (g *GoogleClassicTTSEngine) Name() string {
	return EngineTypeGoogleClassic.String()
}

func (g *GoogleClassicTTSEngine) Synthesize(ctx context.Context, text string) (*generator.Speech, error) {
	// Create a unique identifier for this specific text + voice combination
	contentHash := md5Sum(text + g.voice)[:12]

	chunks := splitIntoChunks(text, 4800) // a little under 5000 to be safe

	var out bytes.Buffer
	for i, chunk := range chunks {
		chunkPath := filepath.Join(g.cacheRootDir, fmt.Sprintf("%s_%d.mp3", contentHash, i))

		if data, err := os.ReadFile(chunkPath); err == nil {
			g.log.WithField("file", chunkPath).Debug("Using cached audio chunk")
			out.Write(data)
			continue
		}

		data, err := g.synthesizeChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d: %w", i, err)
		}

		if err := os.WriteFile(chunkPath, data, 0644); err != nil {
			g.log.WithError(err).WithField("file", chunkPath).Warn("Failed to cache audio chunk")
		} else {
			g.log.WithFields(logrus.Fields{
				"chunk": fmt.Sprintf("%d/%d", i+1, len(chunks)),
				"file":  chunkPath,
			}).Debug("Cached audio chunk")
		}
		out.Write(data)
	}

	// MP3 frames concatenate into a valid stream
	return &generator.Speech{Data: out.Bytes(), MIMEType: "audio/mpeg"}, nil
}

func (g *GoogleClassicTTSEngine) synthesizeChunk(ctx context.Context, chunk string) ([]byte, error) {
	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}

	// Chirp voices often don't support speakingRate/pitch/SSML, skip them
	if !strings.Contains(strings.ToLower(g.voice), "chirp") {
		audioCfg.SpeakingRate = g.speed
		audioCfg.VolumeGainDb = g.volume
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageCode(g.voice),
			Name:         g.voice,
		},
		AudioConfig: audioCfg,
	}

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.AudioContent, nil
}

func (g *GoogleClassicTTSEngine) GetAvailableVoices(ctx context.Context) ([]string, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, err
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

// GetCacheStats returns cache statistics for the current engine
func (g *GoogleClassicTTSEngine) GetCacheStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalFiles int64
	var totalSize int64

	err := filepath.Walk(g.cacheRootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Continue walking despite errors
		}

		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".mp3") {
			totalFiles++
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		return stats, err
	}

	stats["cache_directory"] = g.cacheRootDir
	stats["cached_files"] = totalFiles
	stats["total_size_mb"] = float64(totalSize) / (1024 * 1024)

	return stats, nil
}

// ClearCache removes all cached files
func (g *GoogleClassicTTSEngine) ClearCache() error {
	if err := os.RemoveAll(g.cacheRootDir); err != nil {
		return err
	}
	return os.MkdirAll(g.cacheRootDir, 0755)
}

func (g *GoogleClassicTTSEngine) Close() error {
	return g.client.Close()
}

// languageCode derives "en-US" from a voice name like "en-US-Chirp3-HD-Charon".
func languageCode(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
