package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"wondertales/internal/config"
	"wondertales/internal/domain/story"
)

type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inlineData,omitempty"`
}

type GeminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type GeminiContent struct {
	Parts []*GeminiPart `json:"parts"`
	Role  string        `json:"role,omitempty"`
}

type GeminiSpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type GeminiGenerationConfig struct {
	ResponseMimeType   string              `json:"responseMimeType,omitempty"`
	ResponseSchema     any                 `json:"responseSchema,omitempty"`
	ResponseModalities []string            `json:"responseModalities,omitempty"`
	SpeechConfig       *GeminiSpeechConfig `json:"speechConfig,omitempty"`
}

type GeminiRequest struct {
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	Contents          []*GeminiContent        `json:"contents"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiCandidate struct {
	Content *GeminiContent `json:"content"`
}

type GeminiResponse struct {
	Candidates []*GeminiCandidate `json:"candidates"`
}

// firstPart returns the first part of the first candidate, if any.
func (r *GeminiResponse) firstPart() *GeminiPart {
	if len(r.Candidates) == 0 || r.Candidates[0].Content == nil || len(r.Candidates[0].Content.Parts) == 0 {
		return nil
	}
	return r.Candidates[0].Content.Parts[0]
}

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio"`
}

type imagenResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

// GeminiClient talks to the Gemini and Imagen REST endpoints.
type GeminiClient struct {
	cfg    config.ProviderConfig
	opts   Options
	client *http.Client
	log    *logrus.Entry
}

func NewGeminiClient(cfg config.ProviderConfig, opts Options) *GeminiClient {
	opts = opts.withDefaults()
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	return &GeminiClient{
		cfg:    cfg,
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		log:    logrus.WithField("provider", "gemini"),
	}
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) StartStory(ctx context.Context, topic string) (*story.Page, error) {
	if blank(topic) {
		return nil, story.GenerationError("start story", fmt.Errorf("topic is empty"))
	}
	text, err := g.generateJSON(ctx, g.cfg.TextModel, startPrompt(topic), pageSchema)
	if err != nil {
		return nil, story.GenerationError("start story", err)
	}
	return parsePage("start story", text, false)
}

func (g *GeminiClient) ContinueStory(ctx context.Context, previousText, choice string, pageCount int) (*story.Page, error) {
	final := isFinalPage(pageCount, g.opts.EndingAfter)
	text, err := g.generateJSON(ctx, g.cfg.TextModel, continuePrompt(previousText, choice, final), pageSchema)
	if err != nil {
		return nil, story.GenerationError("continue story", err)
	}
	return parsePage("continue story", text, final)
}

func (g *GeminiClient) Illustrate(ctx context.Context, prompt string) (*story.Illustration, error) {
	payload := imagenRequest{
		Instances:  []imagenInstance{{Prompt: illustrationPrompt(g.opts.Style, prompt)}},
		Parameters: imagenParameters{SampleCount: 1, AspectRatio: "1:1"},
	}

	var res imagenResponse
	if err := g.post(ctx, g.cfg.ImageModel, "predict", payload, &res); err != nil {
		return nil, story.MediaUnavailable("illustrate", err)
	}
	if len(res.Predictions) == 0 || res.Predictions[0].BytesBase64Encoded == "" {
		return nil, story.MediaUnavailable("illustrate", fmt.Errorf("no image returned"))
	}

	data, err := base64.StdEncoding.DecodeString(res.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, story.MediaUnavailable("illustrate", fmt.Errorf("failed to decode image: %w", err))
	}
	return NewIllustration(data, res.Predictions[0].MimeType), nil
}

func (g *GeminiClient) GenerateSpeech(ctx context.Context, text string) (*Speech, error) {
	speechCfg := &GeminiSpeechConfig{}
	speechCfg.VoiceConfig.PrebuiltVoiceConfig.VoiceName = g.cfg.Voice

	payload := GeminiRequest{
		Contents: []*GeminiContent{{Parts: []*GeminiPart{{Text: text}}}},
		GenerationConfig: &GeminiGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       speechCfg,
		},
	}

	var res GeminiResponse
	if err := g.post(ctx, g.cfg.TTSModel, "generateContent", payload, &res); err != nil {
		return nil, story.MediaUnavailable("generate speech", err)
	}
	part := res.firstPart()
	if part == nil || part.InlineData == nil || part.InlineData.Data == "" {
		return nil, story.MediaUnavailable("generate speech", fmt.Errorf("no audio returned"))
	}

	data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
	if err != nil {
		return nil, story.MediaUnavailable("generate speech", fmt.Errorf("failed to decode audio: %w", err))
	}
	return &Speech{Data: data, MIMEType: part.InlineData.MimeType}, nil
}

func (g *GeminiClient) Chat(ctx context.Context, persona string, history []story.ChatMessage) (string, error) {
	contents := make([]*GeminiContent, 0, len(history))
	for _, msg := range history {
		contents = append(contents, &GeminiContent{
			Parts: []*GeminiPart{{Text: msg.Text}},
			Role:  msg.Role,
		})
	}

	payload := GeminiRequest{Contents: contents}
	if persona != "" {
		payload.SystemInstruction = &GeminiContent{Parts: []*GeminiPart{{Text: persona}}}
	}

	var res GeminiResponse
	if err := g.post(ctx, g.cfg.ChatModel, "generateContent", payload, &res); err != nil {
		return "", err
	}
	if part := res.firstPart(); part != nil {
		return strings.TrimSpace(part.Text), nil
	}
	return "", nil
}

func (g *GeminiClient) NewRiddle(ctx context.Context) (*story.Riddle, error) {
	text, err := g.generateJSON(ctx, g.cfg.TextModel, riddlePrompt, riddleSchema)
	if err != nil {
		return nil, story.GenerationError("new riddle", err)
	}
	return parseRiddle(text)
}

func (g *GeminiClient) CheckAnswer(ctx context.Context, answer, guess string) (*story.Verdict, error) {
	text, err := g.generateJSON(ctx, g.cfg.TextModel, checkPrompt(answer, guess), verdictSchema)
	if err != nil {
		return nil, story.GenerationError("check answer", err)
	}
	return parseVerdict(text)
}

// Transcribe sends the recorded answer inline and asks for the words spoken.
func (g *GeminiClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	payload := GeminiRequest{
		Contents: []*GeminiContent{{
			Role: "user",
			Parts: []*GeminiPart{
				{Text: transcribePrompt},
				{InlineData: &GeminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(audio)}},
			},
		}},
	}

	var res GeminiResponse
	if err := g.post(ctx, g.cfg.TextModel, "generateContent", payload, &res); err != nil {
		return "", fmt.Errorf("failed to transcribe: %w", err)
	}
	part := res.firstPart()
	if part == nil {
		return "", nil
	}
	return strings.TrimSpace(part.Text), nil
}

// generateJSON runs a single-turn prompt with structured output.
func (g *GeminiClient) generateJSON(ctx context.Context, model, prompt string, schema any) (string, error) {
	payload := GeminiRequest{
		Contents: []*GeminiContent{{Parts: []*GeminiPart{{Text: prompt}}, Role: "user"}},
		GenerationConfig: &GeminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}

	var res GeminiResponse
	if err := g.post(ctx, model, "generateContent", payload, &res); err != nil {
		return "", err
	}
	part := res.firstPart()
	if part == nil {
		return "", fmt.Errorf("response has no candidates")
	}
	return part.Text, nil
}

func (g *GeminiClient) post(ctx context.Context, model, method string, payload, out any) error {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:%s", strings.TrimRight(g.cfg.BaseURL, "/"), model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadJson))
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}

	g.log.WithFields(logrus.Fields{
		"model":  model,
		"method": method,
		"bytes":  len(resBody),
	}).Debug("Gemini request completed")

	return json.Unmarshal(resBody, out)
}
