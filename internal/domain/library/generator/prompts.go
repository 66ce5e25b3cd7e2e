package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wondertales/internal/domain/story"
)

const (
	DefaultStyle       = "children's book illustration, cute, vibrant colors, whimsical style, high quality"
	DefaultEndingAfter = 4

	// Persona is the system instruction for the chat companion.
	Persona = "You are a magical, friendly storybook companion named 'Sparkle'. " +
		"You talk to children in a supportive, encouraging, and simple way. Keep answers relatively short."

	maxChoices = 3
)

// Options carries provider-independent tuning.
type Options struct {
	Style       string
	EndingAfter int
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Style == "" {
		o.Style = DefaultStyle
	}
	if o.EndingAfter <= 0 {
		o.EndingAfter = DefaultEndingAfter
	}
	if o.Timeout <= 0 {
		o.Timeout = 90 * time.Second
	}
	return o
}

func startPrompt(topic string) string {
	return fmt.Sprintf(`Start a children's story about: %s.
Write the first page. Keep it simple and engaging.
Provide 2 distinct choices for what the character should do next.`, topic)
}

func continuePrompt(previousText, choice string, final bool) string {
	next := "Provide 2 choices for what happens next."
	if final {
		next = "This should be the final page. Wrap up the story nicely. Do NOT provide choices."
	}
	return fmt.Sprintf(`Here is the last part of the story: %q.
The user chose: %q.
Write the next page of the story based on this choice.
%s`, previousText, choice, next)
}

func illustrationPrompt(style, prompt string) string {
	return style + ": " + prompt
}

const riddlePrompt = `Let's play a guessing game with a young child.
Think of one simple thing a child knows well, like an animal, a fruit, a toy or a vehicle.
Write a short, playful riddle clue about it without saying its name.
Also write a detailed prompt for an image generator showing the answer.`

func checkPrompt(answer, guess string) string {
	return fmt.Sprintf(`In a guessing game the secret answer is %q and the child guessed %q.
Decide whether the guess is correct. Accept synonyms, plurals and small spelling mistakes.
Write one short, encouraging sentence of feedback. If the guess is wrong give a gentle hint without revealing the answer.`, answer, guess)
}

const transcribePrompt = "Transcribe this child's spoken answer. Reply with only the words spoken, no punctuation or commentary."

// JSON shapes for providers that only accept a format hint rather than a schema.
const (
	pageFormat    = `Respond with JSON only: {"text": "2-3 sentences", "imagePrompt": "detailed image prompt", "choices": ["..."], "isEnding": false}`
	riddleFormat  = `Respond with JSON only: {"answer": "...", "clue": "...", "imagePrompt": "..."}`
	verdictFormat = `Respond with JSON only: {"correct": true, "feedback": "..."}`
)

// Response schemas in the Gemini structured-output dialect.
var (
	pageSchema = map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"text":        map[string]any{"type": "STRING", "description": "The story text for this page (2-3 sentences)."},
			"imagePrompt": map[string]any{"type": "STRING", "description": "A detailed prompt for an image generator for this page."},
			"choices": map[string]any{
				"type":        "ARRAY",
				"items":       map[string]any{"type": "STRING"},
				"description": "2 or 3 short choices for what happens next. If this is the end of the story, return an empty array.",
			},
			"isEnding": map[string]any{"type": "BOOLEAN", "description": "True if this is the final page of the story."},
		},
		"required": []string{"text", "imagePrompt", "choices", "isEnding"},
	}

	riddleSchema = map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"answer":      map[string]any{"type": "STRING"},
			"clue":        map[string]any{"type": "STRING"},
			"imagePrompt": map[string]any{"type": "STRING"},
		},
		"required": []string{"answer", "clue", "imagePrompt"},
	}

	verdictSchema = map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"correct":  map[string]any{"type": "BOOLEAN"},
			"feedback": map[string]any{"type": "STRING"},
		},
		"required": []string{"correct", "feedback"},
	}
)

// decodeJSON unmarshals a model reply, tolerating markdown code fences.
func decodeJSON(raw string, v any) error {
	b := bytes.TrimSpace([]byte(raw))
	b = bytes.TrimPrefix(b, []byte("```json"))
	b = bytes.TrimPrefix(b, []byte("```"))
	b = bytes.TrimSuffix(b, []byte("```"))
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty response")
	}
	return json.Unmarshal(b, v)
}

// parsePage decodes and normalises a page. A final page never carries
// choices, and a page without choices is always an ending.
func parsePage(op, raw string, final bool) (*story.Page, error) {
	var page story.Page
	if err := decodeJSON(raw, &page); err != nil {
		return nil, story.ParseError(op, err)
	}
	page.Text = strings.TrimSpace(page.Text)
	if page.Text == "" {
		return nil, story.ParseError(op, fmt.Errorf("page has no text"))
	}

	choices := make([]string, 0, len(page.Choices))
	for _, c := range page.Choices {
		if c = strings.TrimSpace(c); c != "" && len(choices) < maxChoices {
			choices = append(choices, c)
		}
	}
	page.Choices = choices

	if final {
		page.IsEnding = true
	}
	if page.IsEnding || len(page.Choices) == 0 {
		page.IsEnding = true
		page.Choices = nil
	}
	return &page, nil
}

func parseRiddle(raw string) (*story.Riddle, error) {
	var r story.Riddle
	if err := decodeJSON(raw, &r); err != nil {
		return nil, story.ParseError("new riddle", err)
	}
	if blank(r.Answer) || blank(r.Clue) {
		return nil, story.ParseError("new riddle", fmt.Errorf("riddle is missing answer or clue"))
	}
	r.Answer = strings.TrimSpace(r.Answer)
	r.Clue = strings.TrimSpace(r.Clue)
	return &r, nil
}

func parseVerdict(raw string) (*story.Verdict, error) {
	var v story.Verdict
	if err := decodeJSON(raw, &v); err != nil {
		return nil, story.ParseError("check answer", err)
	}
	v.Feedback = strings.TrimSpace(v.Feedback)
	return &v, nil
}
