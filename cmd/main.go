package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wondertales/internal/cli/scheme/colours"
	"wondertales/internal/config"
	"wondertales/internal/story/nest"
)

func main() {

	config.Init()

	var app *nest.Nest

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		if app != nil {
			app.Stop()
		}
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye! Sweet dreams! 🌙"))
		os.Exit(0)
	}()

	rootCmd := &cobra.Command{
		Use:   "wondertales",
		Short: "🪄 Make-your-own bedtime stories",
		Long: `
┌─────────────────────────────────────┐
│  📚 Welcome to WonderTales! 🪄      │
│  Stories you choose as you go       │
│  Read aloud for kids 👶✨           │
└─────────────────────────────────────┘

WonderTales writes a brand new picture story with your child, one page at
a time. Every page is illustrated and read aloud, and little readers can
record their own voice too. Perfect for bedtime! 🌙
		`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg.LogLevel, viper.GetBool("verbose"))

			var err error
			app, err = nest.New(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if err := app.Close(); err != nil {
					logrus.WithError(err).Warn("Failed to close library")
				}
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}

	// Read command
	readCmd := &cobra.Command{
		Use:   "read [topic]",
		Short: "📖 Make up a new story",
		Long:  "Start a new interactive story about any topic and read it together",
		Run:   func(cmd *cobra.Command, args []string) { app.ReadStory(cmd, args) },
	}

	// Riddle command
	riddleCmd := &cobra.Command{
		Use:   "riddle",
		Short: "🧩 Play the riddle game",
		Long:  "Listen to a spoken clue and guess what it is to win a picture",
		Run:   func(cmd *cobra.Command, args []string) { app.PlayRiddles(cmd, args) },
	}

	// Chat command
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "💬 Talk to Sparkle",
		Long:  "Have a friendly chat with Sparkle the Story Bot",
		Run:   func(cmd *cobra.Command, args []string) { app.Chat(cmd, args) },
	}

	// Dashboard command
	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "👨‍👩‍👧 Parents area",
		Long:  "Show reading stats, story history and favorite pictures",
		Run:   func(cmd *cobra.Command, args []string) { app.ShowDashboard(cmd, args) },
	}

	// Favorites command
	favoritesCmd := &cobra.Command{
		Use:   "favorites",
		Short: "❤️ List favorite pictures",
		Long:  "List the pictures hearted while reading",
		Run:   func(cmd *cobra.Command, args []string) { app.ListFavorites(cmd, args) },
	}

	removeFavoriteCmd := &cobra.Command{
		Use:   "remove <id>...",
		Short: "🗑️ Remove favorite pictures",
		Args:  cobra.MinimumNArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { app.RemoveFavorite(cmd, args) },
	}
	favoritesCmd.AddCommand(removeFavoriteCmd)

	// Settings command
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show voice and provider settings",
		Long:  "Show the story provider, narration engine, voices and cache",
		Run:   func(cmd *cobra.Command, args []string) { app.ConfigureSettings(cmd, args) },
	}

	// Add flags
	rootCmd.PersistentFlags().BoolP("verbose", "V", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("provider", "p", "", "Story provider: gemini, openai or mock")
	readCmd.Flags().StringP("voice", "v", "", "Optional voice to use for reading. See settings for options")
	readCmd.Flags().Int("ending-after", 0, "Number of pages before the story wraps up")
	settingsCmd.Flags().Bool("clear-cache", false, "Clear the cached narration clips")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("tts.voice", readCmd.Flags().Lookup("voice"))
	viper.BindPFlag("story.ending_after", readCmd.Flags().Lookup("ending-after"))

	rootCmd.AddCommand(readCmd, riddleCmd, chatCmd, dashboardCmd, favoritesCmd, settingsCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging applies log.level, or debug when --verbose is set.
func setupLogging(level string, verbose bool) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithError(err).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	if verbose {
		lvl = logrus.DebugLevel
	}
	logrus.SetLevel(lvl)
}
