package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"wondertales/internal/config"
	"wondertales/internal/domain/story"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		"usage":   map[string]any{"total_tokens": 12},
	})
	return string(b)
}

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(config.ProviderConfig{
		APIKey:             "sk-test",
		BaseURL:            srv.URL + "/v1",
		TextModel:          "gpt-test",
		ChatModel:          "gpt-chat",
		ImageModel:         "dall-e-3",
		TTSModel:           "tts-1",
		Voice:              "fable",
		TranscriptionModel: "whisper-1",
	}, Options{})
}

func TestOpenAIContinueStory(t *testing.T) {
	var body map[string]any
	c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion(`{"text":"Next.","imagePrompt":"p","choices":["a","b"],"isEnding":false}`)))
	})

	page, err := c.ContinueStory(context.Background(), "prev", "a", 1)
	require.NoError(t, err)
	require.Equal(t, "Next.", page.Text)
	require.Len(t, page.Choices, 2)

	require.Equal(t, "gpt-test", body["model"])
	format := body["response_format"].(map[string]any)
	require.Equal(t, "json_object", format["type"])
}

func TestOpenAIStartStoryError(t *testing.T) {
	c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	})

	_, err := c.StartStory(context.Background(), "pirates")
	require.ErrorIs(t, err, story.ErrGeneration)
}

func TestOpenAIIllustrate(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G', 1}
	c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/images/generations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(img) + `"}]}`))
	})

	got, err := c.Illustrate(context.Background(), "a castle")
	require.NoError(t, err)
	require.Equal(t, img, got.Data)
	require.Equal(t, "image/png", got.MIMEType)
}

func TestOpenAIGenerateSpeech(t *testing.T) {
	mp3 := []byte("ID3fake-mp3")
	c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/speech", r.URL.Path)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(mp3)
	})

	speech, err := c.GenerateSpeech(context.Background(), "Hello there")
	require.NoError(t, err)
	require.Equal(t, mp3, speech.Data)
	require.Equal(t, "audio/mpeg", speech.MIMEType)
}

func TestOpenAIChatMapsRoles(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("Hello!")))
	})

	reply, err := c.Chat(context.Background(), Persona, []story.ChatMessage{
		{Role: story.RoleUser, Text: "hi"},
		{Role: story.RoleModel, Text: "hello"},
		{Role: story.RoleUser, Text: "what is a star?"},
	})
	require.NoError(t, err)
	require.Equal(t, "Hello!", reply)

	require.Len(t, body.Messages, 4)
	require.Equal(t, "system", body.Messages[0].Role)
	require.Equal(t, "assistant", body.Messages[2].Role)
}

func TestOpenAITranscribe(t *testing.T) {
	c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" rainbow "}`))
	})

	var _ Transcriber = c
	text, err := c.Transcribe(context.Background(), []byte("RIFF...."), "audio/wav")
	require.NoError(t, err)
	require.Equal(t, "rainbow", text)
}
