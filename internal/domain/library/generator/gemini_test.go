package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"wondertales/internal/config"
	"wondertales/internal/domain/story"
)

// geminiServer answers generateContent/predict calls and records the
// decoded request bodies by path.
type geminiServer struct {
	*httptest.Server
	requests map[string][]map[string]any
	reply    func(path string, body map[string]any) (int, string)
}

func newGeminiServer(t *testing.T, reply func(path string, body map[string]any) (int, string)) *geminiServer {
	s := &geminiServer{requests: map[string][]map[string]any{}, reply: reply}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		s.requests[r.URL.Path] = append(s.requests[r.URL.Path], body)

		status, out := s.reply(r.URL.Path, body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(out))
	}))
	t.Cleanup(s.Close)
	return s
}

func textReply(text string) string {
	b, _ := json.Marshal(GeminiResponse{Candidates: []*GeminiCandidate{{
		Content: &GeminiContent{Parts: []*GeminiPart{{Text: text}}, Role: "model"},
	}}})
	return string(b)
}

func newTestGemini(url string) *GeminiClient {
	return NewGeminiClient(config.ProviderConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		TextModel:  "text-model",
		ChatModel:  "chat-model",
		ImageModel: "image-model",
		TTSModel:   "tts-model",
		Voice:      "Puck",
	}, Options{})
}

func TestGeminiStartStory(t *testing.T) {
	srv := newGeminiServer(t, func(path string, body map[string]any) (int, string) {
		return http.StatusOK, textReply(`{"text":"A bunny in space.","imagePrompt":"bunny astronaut","choices":["Land on the moon","Visit Mars"],"isEnding":false}`)
	})
	g := newTestGemini(srv.URL)

	page, err := g.StartStory(context.Background(), "a brave astronaut bunny")
	require.NoError(t, err)
	require.Equal(t, "A bunny in space.", page.Text)
	require.Len(t, page.Choices, 2)

	reqs := srv.requests["/v1beta/models/text-model:generateContent"]
	require.Len(t, reqs, 1)
	cfg := reqs[0]["generationConfig"].(map[string]any)
	require.Equal(t, "application/json", cfg["responseMimeType"])
	require.NotNil(t, cfg["responseSchema"])

	raw, _ := json.Marshal(reqs[0]["contents"])
	require.Contains(t, string(raw), "a brave astronaut bunny")
}

func TestGeminiContinueStoryRequestsEnding(t *testing.T) {
	srv := newGeminiServer(t, func(path string, body map[string]any) (int, string) {
		// the model ignores the instruction and still offers a choice
		return http.StatusOK, textReply(`{"text":"Home again.","imagePrompt":"p","choices":["More"],"isEnding":false}`)
	})
	g := newTestGemini(srv.URL)

	page, err := g.ContinueStory(context.Background(), "prev", "Visit Mars", 4)
	require.NoError(t, err)
	require.True(t, page.IsEnding)
	require.Empty(t, page.Choices)

	raw, _ := json.Marshal(srv.requests["/v1beta/models/text-model:generateContent"][0]["contents"])
	require.Contains(t, string(raw), "final page")
}

func TestGeminiStartStoryFailures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := newGeminiServer(t, func(string, map[string]any) (int, string) {
			return http.StatusInternalServerError, `{"error":"boom"}`
		})
		_, err := newTestGemini(srv.URL).StartStory(context.Background(), "dragons")
		require.ErrorIs(t, err, story.ErrGeneration)
		require.NotErrorIs(t, err, story.ErrParse)
	})

	t.Run("malformed", func(t *testing.T) {
		srv := newGeminiServer(t, func(string, map[string]any) (int, string) {
			return http.StatusOK, textReply("not json at all")
		})
		_, err := newTestGemini(srv.URL).StartStory(context.Background(), "dragons")
		require.ErrorIs(t, err, story.ErrParse)
	})

	t.Run("no candidates", func(t *testing.T) {
		srv := newGeminiServer(t, func(string, map[string]any) (int, string) {
			return http.StatusOK, `{"candidates":[]}`
		})
		_, err := newTestGemini(srv.URL).StartStory(context.Background(), "dragons")
		require.ErrorIs(t, err, story.ErrGeneration)
	})

	t.Run("blank topic", func(t *testing.T) {
		srv := newGeminiServer(t, func(string, map[string]any) (int, string) {
			return http.StatusOK, textReply(`{}`)
		})
		_, err := newTestGemini(srv.URL).StartStory(context.Background(), "   ")
		require.ErrorIs(t, err, story.ErrGeneration)
		require.Empty(t, srv.requests)
	})
}

func TestGeminiIllustrate(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	srv := newGeminiServer(t, func(path string, body map[string]any) (int, string) {
		return http.StatusOK, `{"predictions":[{"bytesBase64Encoded":"` + base64.StdEncoding.EncodeToString(png) + `","mimeType":"image/png"}]}`
	})
	g := newTestGemini(srv.URL)

	img, err := g.Illustrate(context.Background(), "a moon")
	require.NoError(t, err)
	require.Equal(t, png, img.Data)
	require.NotEmpty(t, img.Ref)

	body := srv.requests["/v1beta/models/image-model:predict"][0]
	instance := body["instances"].([]any)[0].(map[string]any)
	require.True(t, strings.HasPrefix(instance["prompt"].(string), DefaultStyle+": "))
	require.True(t, strings.HasSuffix(instance["prompt"].(string), "a moon"))
}

func TestGeminiIllustrateFailureIsMediaUnavailable(t *testing.T) {
	srv := newGeminiServer(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, `{"predictions":[]}`
	})
	_, err := newTestGemini(srv.URL).Illustrate(context.Background(), "a moon")
	require.ErrorIs(t, err, story.ErrMediaUnavailable)
}

func TestGeminiGenerateSpeech(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	srv := newGeminiServer(t, func(path string, body map[string]any) (int, string) {
		b, _ := json.Marshal(GeminiResponse{Candidates: []*GeminiCandidate{{Content: &GeminiContent{Parts: []*GeminiPart{{
			InlineData: &GeminiInlineData{MimeType: "audio/L16;codec=pcm;rate=24000", Data: base64.StdEncoding.EncodeToString(pcm)},
		}}}}}})
		return http.StatusOK, string(b)
	})
	g := newTestGemini(srv.URL)

	speech, err := g.GenerateSpeech(context.Background(), "Hello")
	require.NoError(t, err)
	require.Equal(t, pcm, speech.Data)
	require.Equal(t, "audio/L16;codec=pcm;rate=24000", speech.MIMEType)

	body := srv.requests["/v1beta/models/tts-model:generateContent"][0]
	raw, _ := json.Marshal(body["generationConfig"])
	require.Contains(t, string(raw), `"responseModalities":["AUDIO"]`)
	require.Contains(t, string(raw), `"voiceName":"Puck"`)
}

func TestGeminiChatSendsPersonaAndHistory(t *testing.T) {
	srv := newGeminiServer(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, textReply(" Hi friend! ")
	})
	g := newTestGemini(srv.URL)

	reply, err := g.Chat(context.Background(), Persona, []story.ChatMessage{
		{Role: story.RoleUser, Text: "hello"},
		{Role: story.RoleModel, Text: "hi"},
		{Role: story.RoleUser, Text: "tell me a joke"},
	})
	require.NoError(t, err)
	require.Equal(t, "Hi friend!", reply)

	body := srv.requests["/v1beta/models/chat-model:generateContent"][0]
	require.Len(t, body["contents"], 3)
	raw, _ := json.Marshal(body["systemInstruction"])
	require.Contains(t, string(raw), "Sparkle")
}

func TestGeminiRiddleRound(t *testing.T) {
	calls := 0
	srv := newGeminiServer(t, func(string, map[string]any) (int, string) {
		calls++
		if calls == 1 {
			return http.StatusOK, textReply(`{"answer":"cat","clue":"I purr","imagePrompt":"a cat"}`)
		}
		return http.StatusOK, textReply(`{"correct":true,"feedback":"Yes!"}`)
	})
	g := newTestGemini(srv.URL)

	r, err := g.NewRiddle(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cat", r.Answer)

	v, err := g.CheckAnswer(context.Background(), r.Answer, "a kitty cat")
	require.NoError(t, err)
	require.True(t, v.Correct)
	require.Equal(t, "Yes!", v.Feedback)
}

func TestGeminiTranscribe(t *testing.T) {
	srv := newGeminiServer(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, textReply("banana\n")
	})
	g := newTestGemini(srv.URL)

	var _ Transcriber = g
	text, err := g.Transcribe(context.Background(), []byte("RIFF"), "audio/wav")
	require.NoError(t, err)
	require.Equal(t, "banana", text)
}
