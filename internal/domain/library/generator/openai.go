package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"wondertales/internal/config"
	"wondertales/internal/domain/story"
)

// OpenAIClient serves every collaborator through an OpenAI-compatible API.
type OpenAIClient struct {
	client *openai.Client
	cfg    config.ProviderConfig
	opts   Options
	log    *logrus.Entry
}

func NewOpenAIClient(cfg config.ProviderConfig, opts Options) *OpenAIClient {
	opts = opts.withDefaults()

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		opts:   opts,
		log:    logrus.WithField("provider", "openai"),
	}
}

func (o *OpenAIClient) Name() string { return "openai" }

func (o *OpenAIClient) StartStory(ctx context.Context, topic string) (*story.Page, error) {
	if blank(topic) {
		return nil, story.GenerationError("start story", fmt.Errorf("topic is empty"))
	}
	text, err := o.completeJSON(ctx, startPrompt(topic)+"\n"+pageFormat)
	if err != nil {
		return nil, story.GenerationError("start story", err)
	}
	return parsePage("start story", text, false)
}

func (o *OpenAIClient) ContinueStory(ctx context.Context, previousText, choice string, pageCount int) (*story.Page, error) {
	final := isFinalPage(pageCount, o.opts.EndingAfter)
	text, err := o.completeJSON(ctx, continuePrompt(previousText, choice, final)+"\n"+pageFormat)
	if err != nil {
		return nil, story.GenerationError("continue story", err)
	}
	return parsePage("continue story", text, final)
}

func (o *OpenAIClient) Illustrate(ctx context.Context, prompt string) (*story.Illustration, error) {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         illustrationPrompt(o.opts.Style, prompt),
		Model:          o.cfg.ImageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, story.MediaUnavailable("illustrate", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, story.MediaUnavailable("illustrate", fmt.Errorf("no image returned"))
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, story.MediaUnavailable("illustrate", fmt.Errorf("failed to decode image: %w", err))
	}
	return NewIllustration(data, "image/png"), nil
}

func (o *OpenAIClient) GenerateSpeech(ctx context.Context, text string) (*Speech, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.cfg.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(o.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, story.MediaUnavailable("generate speech", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, story.MediaUnavailable("generate speech", fmt.Errorf("failed to read audio: %w", err))
	}
	if len(data) == 0 {
		return nil, story.MediaUnavailable("generate speech", fmt.Errorf("no audio returned"))
	}
	return &Speech{Data: data, MIMEType: "audio/mpeg"}, nil
}

func (o *OpenAIClient) Chat(ctx context.Context, persona string, history []story.ChatMessage) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if persona != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: persona})
	}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == story.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Text})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.cfg.ChatModel,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAIClient) NewRiddle(ctx context.Context) (*story.Riddle, error) {
	text, err := o.completeJSON(ctx, riddlePrompt+"\n"+riddleFormat)
	if err != nil {
		return nil, story.GenerationError("new riddle", err)
	}
	return parseRiddle(text)
}

func (o *OpenAIClient) CheckAnswer(ctx context.Context, answer, guess string) (*story.Verdict, error) {
	text, err := o.completeJSON(ctx, checkPrompt(answer, guess)+"\n"+verdictFormat)
	if err != nil {
		return nil, story.GenerationError("check answer", err)
	}
	return parseVerdict(text)
}

func (o *OpenAIClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.cfg.TranscriptionModel,
		FilePath: "answer.wav",
		Reader:   bytes.NewReader(audio),
		Language: "en",
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (o *OpenAIClient) completeJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.TextModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}

	o.log.WithFields(logrus.Fields{
		"model":  o.cfg.TextModel,
		"tokens": resp.Usage.TotalTokens,
	}).Debug("OpenAI completion finished")
	return resp.Choices[0].Message.Content, nil
}
