package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the explicit configuration handed to every constructor that
// needs credentials or tuning. Nothing reads provider settings from globals.
type Config struct {
	Provider string
	Gemini   ProviderConfig
	OpenAI   ProviderConfig
	HTTP     HTTPConfig

	TTS       TTSConfig
	Library   LibraryConfig
	Redis     RedisConfig
	Recorder  RecorderConfig
	Story     StoryConfig
	Favorites FavoritesConfig
	LogLevel  string
}

type ProviderConfig struct {
	APIKey             string
	BaseURL            string
	TextModel          string
	ChatModel          string
	ImageModel         string
	TTSModel           string
	Voice              string
	TranscriptionModel string
}

type HTTPConfig struct {
	Timeout time.Duration
}

type TTSConfig struct {
	Type      string
	Voice     string
	Speed     float64
	Volume    float64
	CachePath string
}

type LibraryConfig struct {
	Type string
	Path string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type RecorderConfig struct {
	Command    string
	SampleRate int
}

type StoryConfig struct {
	// EndingAfter is the page count at which continuation requests ask
	// for a closing page without choices.
	EndingAfter int
	ImageDir    string
	Style       string
}

type FavoritesConfig struct {
	AllowRemove bool
}

// SetDefaults registers default values on the global viper instance.
func SetDefaults() {
	viper.SetDefault("provider", "auto")

	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("gemini.text_model", "gemini-2.5-flash")
	viper.SetDefault("gemini.chat_model", "gemini-2.5-flash")
	viper.SetDefault("gemini.image_model", "imagen-4.0-generate-001")
	viper.SetDefault("gemini.tts_model", "gemini-2.5-flash-preview-tts")
	viper.SetDefault("gemini.voice", "Puck")

	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.text_model", "gpt-4o-mini")
	viper.SetDefault("openai.chat_model", "gpt-4o-mini")
	viper.SetDefault("openai.image_model", "dall-e-3")
	viper.SetDefault("openai.tts_model", "tts-1")
	viper.SetDefault("openai.voice", "fable")
	viper.SetDefault("openai.transcription_model", "whisper-1")

	viper.SetDefault("http.timeout", 90*time.Second)

	viper.SetDefault("tts.type", "auto") // Auto-select best engine
	viper.SetDefault("tts.voice", "default")
	viper.SetDefault("tts.speed", 1.0)
	viper.SetDefault("tts.volume", 0.8)
	viper.SetDefault("tts.cache_path", defaultDataPath("tts-cache"))

	viper.SetDefault("library.type", "file")
	viper.SetDefault("library.path", defaultDataPath("library"))
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "wondertales")

	viper.SetDefault("recorder.command", "arecord")
	viper.SetDefault("recorder.sample_rate", 16000)

	viper.SetDefault("story.ending_after", 4)
	viper.SetDefault("story.image_dir", "illustrations")
	viper.SetDefault("story.style", "children's book illustration, cute, vibrant colors, whimsical style, high quality")

	viper.SetDefault("favorites.allow_remove", false)
	viper.SetDefault("log.level", "info")
}

// Init wires the config file search path, .env and environment overrides.
func Init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	viper.SetConfigName("wondertales")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.wondertales")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("wondertales")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.WithError(err).Warn("Failed to read config file")
		}
	}
}

// Load snapshots the current viper state into a Config.
func Load() *Config {
	cfg := &Config{
		Provider: viper.GetString("provider"),
		Gemini: ProviderConfig{
			APIKey:     firstNonEmpty(viper.GetString("gemini.api_key"), os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY")),
			BaseURL:    viper.GetString("gemini.base_url"),
			TextModel:  viper.GetString("gemini.text_model"),
			ChatModel:  viper.GetString("gemini.chat_model"),
			ImageModel: viper.GetString("gemini.image_model"),
			TTSModel:   viper.GetString("gemini.tts_model"),
			Voice:      viper.GetString("gemini.voice"),
		},
		OpenAI: ProviderConfig{
			APIKey:             firstNonEmpty(viper.GetString("openai.api_key"), os.Getenv("OPENAI_API_KEY")),
			BaseURL:            viper.GetString("openai.base_url"),
			TextModel:          viper.GetString("openai.text_model"),
			ChatModel:          viper.GetString("openai.chat_model"),
			ImageModel:         viper.GetString("openai.image_model"),
			TTSModel:           viper.GetString("openai.tts_model"),
			Voice:              viper.GetString("openai.voice"),
			TranscriptionModel: viper.GetString("openai.transcription_model"),
		},
		HTTP: HTTPConfig{Timeout: viper.GetDuration("http.timeout")},
		TTS: TTSConfig{
			Type:      viper.GetString("tts.type"),
			Voice:     viper.GetString("tts.voice"),
			Speed:     viper.GetFloat64("tts.speed"),
			Volume:    viper.GetFloat64("tts.volume"),
			CachePath: viper.GetString("tts.cache_path"),
		},
		Library: LibraryConfig{
			Type: viper.GetString("library.type"),
			Path: viper.GetString("library.path"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			Prefix:   viper.GetString("redis.prefix"),
		},
		Recorder: RecorderConfig{
			Command:    viper.GetString("recorder.command"),
			SampleRate: viper.GetInt("recorder.sample_rate"),
		},
		Story: StoryConfig{
			EndingAfter: viper.GetInt("story.ending_after"),
			ImageDir:    viper.GetString("story.image_dir"),
			Style:       viper.GetString("story.style"),
		},
		Favorites: FavoritesConfig{AllowRemove: viper.GetBool("favorites.allow_remove")},
		LogLevel:  viper.GetString("log.level"),
	}

	if cfg.Provider == "" || cfg.Provider == "auto" {
		cfg.Provider = cfg.detectProvider()
	}
	return cfg
}

// detectProvider picks the first provider with credentials, falling back
// to the offline mock.
func (c *Config) detectProvider() string {
	switch {
	case c.Gemini.APIKey != "":
		return "gemini"
	case c.OpenAI.APIKey != "":
		return "openai"
	default:
		return "mock"
	}
}

// defaultDataPath returns a per-user location for persisted data.
func defaultDataPath(name string) string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + string(os.PathSeparator) + "wondertales" + string(os.PathSeparator) + name
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home + string(os.PathSeparator) + ".wondertales" + string(os.PathSeparator) + name
	}
	return name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
