package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	SetDefaults()
	cfg := Load()

	require.Equal(t, "mock", cfg.Provider)
	require.Equal(t, 4, cfg.Story.EndingAfter)
	require.Equal(t, "gemini-2.5-flash", cfg.Gemini.TextModel)
	require.Equal(t, "Puck", cfg.Gemini.Voice)
	require.Equal(t, 90*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, "file", cfg.Library.Type)
	require.False(t, cfg.Favorites.AllowRemove)
}

func TestLoadDetectsProviderFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	t.Setenv("OPENAI_API_KEY", " sk-test ")

	SetDefaults()
	cfg := Load()

	require.Equal(t, "openai", cfg.Provider)
	require.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestLoadExplicitProviderWins(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("GEMINI_API_KEY", "g-key")

	SetDefaults()
	viper.Set("provider", "mock")
	viper.Set("story.ending_after", 2)

	cfg := Load()
	require.Equal(t, "mock", cfg.Provider)
	require.Equal(t, "g-key", cfg.Gemini.APIKey)
	require.Equal(t, 2, cfg.Story.EndingAfter)
}
