package generator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"wondertales/internal/domain/story"
)

func TestParsePage(t *testing.T) {
	page, err := parsePage("start story", `{"text":" Hi. ","imagePrompt":"a bunny","choices":["Fly"," ","Hop"],"isEnding":false}`, false)
	require.NoError(t, err)
	require.Equal(t, "Hi.", page.Text)
	require.Equal(t, []string{"Fly", "Hop"}, page.Choices)
	require.False(t, page.IsEnding)
}

func TestParsePageStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"text\":\"Hi\",\"imagePrompt\":\"p\",\"choices\":[\"a\",\"b\"],\"isEnding\":false}\n```"
	page, err := parsePage("start story", raw, false)
	require.NoError(t, err)
	require.Len(t, page.Choices, 2)
}

func TestParsePageFinalDropsChoices(t *testing.T) {
	page, err := parsePage("continue story", `{"text":"The end","imagePrompt":"p","choices":["again"],"isEnding":false}`, true)
	require.NoError(t, err)
	require.True(t, page.IsEnding)
	require.Empty(t, page.Choices)
}

func TestParsePageWithoutChoicesIsEnding(t *testing.T) {
	page, err := parsePage("continue story", `{"text":"Done","imagePrompt":"p","choices":[],"isEnding":false}`, false)
	require.NoError(t, err)
	require.True(t, page.IsEnding)
}

func TestParsePageCapsChoices(t *testing.T) {
	page, err := parsePage("start story", `{"text":"x","choices":["a","b","c","d"]}`, false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, page.Choices)
}

func TestParsePageErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "once upon a time"},
		{"no text", `{"imagePrompt":"p","choices":["a"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parsePage("start story", tc.raw, false)
			require.ErrorIs(t, err, story.ErrParse)
			require.ErrorIs(t, err, story.ErrGeneration)
		})
	}
}

func TestContinuePrompt(t *testing.T) {
	require.Contains(t, continuePrompt("prev", "hop", true), "Do NOT provide choices")
	require.Contains(t, continuePrompt("prev", "hop", false), "Provide 2 choices")
}

func TestParseRiddle(t *testing.T) {
	r, err := parseRiddle(`{"answer":" cat ","clue":"purrs","imagePrompt":"a cat"}`)
	require.NoError(t, err)
	require.Equal(t, "cat", r.Answer)

	_, err = parseRiddle(`{"answer":"","clue":"purrs"}`)
	require.ErrorIs(t, err, story.ErrParse)
}

func TestIsFinalPage(t *testing.T) {
	require.False(t, isFinalPage(3, 4))
	require.True(t, isFinalPage(4, 4))
	require.True(t, isFinalPage(5, 4))
}
