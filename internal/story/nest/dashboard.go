package nest

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"wondertales/internal/cli/scheme/colours"
	"wondertales/internal/domain/library"
	"wondertales/internal/story/tts"
)

const dateLayout = "Jan 2, 2006 15:04"

// ShowDashboard prints reading stats, the story history and favorites.
func (n *Nest) ShowDashboard(cmd *cobra.Command, args []string) {
	stories, err := n.library.Stories(n.ctx)
	if err != nil {
		n.printError("Could not read the story history", err)
		return
	}
	stats := library.Stats(stories)

	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "👨‍👩‍👧 Parents Area 👨‍👩‍👧")
	fmt.Fprintln(n.out)
	colours.Info.Fprintf(n.out, "📚 Stories read: %d\n", stats.TotalStories)
	colours.Info.Fprintf(n.out, "⏱️  Reading time: %d minutes\n", stats.TotalTimeMinutes)
	fmt.Fprintln(n.out)

	colours.Title.Fprintln(n.out, "📖 Reading History")
	if len(stories) == 0 {
		colours.Warning.Fprintln(n.out, "  No stories read yet.")
	}
	for _, s := range stories {
		fmt.Fprint(n.out, "  • ")
		colours.Highlight.Fprint(n.out, s.Title)
		fmt.Fprintf(n.out, "  %s · %d pages · %s\n", s.Date.Local().Format(dateLayout), len(s.Pages), formatDuration(s.DurationSeconds))
	}
	fmt.Fprintln(n.out)

	n.ListFavorites(cmd, args)
}

// ListFavorites prints every hearted picture, newest first.
func (n *Nest) ListFavorites(cmd *cobra.Command, args []string) {
	favs, err := n.library.Favorites(n.ctx)
	if err != nil {
		n.printError("Could not read favorites", err)
		return
	}

	colours.Title.Fprintln(n.out, "❤️  Favorite Pictures")
	if len(favs) == 0 {
		colours.Warning.Fprintln(n.out, "  No favorites yet. Heart a picture while reading!")
		return
	}
	for _, f := range favs {
		fmt.Fprint(n.out, "  • ")
		colours.Highlight.Fprint(n.out, f.Prompt)
		fmt.Fprintf(n.out, "  %s\n", f.Date.Local().Format(dateLayout))
		if f.ImagePath != "" {
			fmt.Fprintf(n.out, "     🖼️  %s\n", f.ImagePath)
		}
		colours.Info.Fprintf(n.out, "     ID: %s\n", f.ID)
	}
}

// RemoveFavorite deletes a favorite by ID. This is the dashboard's removal
// path and ignores favorites.allow_remove.
func (n *Nest) RemoveFavorite(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		colours.Error.Fprintln(n.out, "❌ Which favorite? Pass its ID (see 'wondertales favorites').")
		return
	}
	for _, id := range args {
		err := n.library.RemoveFavorite(n.ctx, id)
		switch {
		case errors.Is(err, library.ErrFavoriteNotFound):
			colours.Warning.Fprintf(n.out, "🔍 No favorite with ID '%s'\n", id)
		case err != nil:
			n.printError("Could not remove favorite", err)
		default:
			colours.Success.Fprintf(n.out, "🗑️  Removed favorite %s\n", id)
		}
	}
}

// ConfigureSettings shows the provider and voice configuration.
func (n *Nest) ConfigureSettings(cmd *cobra.Command, args []string) {
	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "⚙️ Settings ⚙️")
	fmt.Fprintln(n.out)

	colours.Prompt.Fprintln(n.out, "🪄 Story provider:")
	fmt.Fprintf(n.out, "  • Provider: %s\n", n.provider.Name())
	fmt.Fprintf(n.out, "  • Stories end after page: %d\n", n.cfg.Story.EndingAfter+1)
	fmt.Fprintf(n.out, "  • Pictures saved in: %s\n", n.cfg.Story.ImageDir)
	fmt.Fprintf(n.out, "  • Library: %s\n", n.libraryLocation())
	fmt.Fprintln(n.out)

	colours.Prompt.Fprintln(n.out, "🎤 Voice Settings:")
	fmt.Fprintf(n.out, "  • Engine: %s\n", n.Tts.Name())
	fmt.Fprintf(n.out, "  • Voice: %s\n", n.cfg.TTS.Voice)
	fmt.Fprintf(n.out, "  • Speed: %.1fx\n", n.cfg.TTS.Speed)
	fmt.Fprintf(n.out, "  • Volume: %.0f%%\n", n.cfg.TTS.Volume*100)

	if c, ok := n.Tts.(tts.CacheableEngine); ok {
		if wipe, _ := cmd.Flags().GetBool("clear-cache"); wipe {
			if err := c.ClearCache(); err != nil {
				n.printError("Could not clear the voice cache", err)
			} else {
				colours.Success.Fprintln(n.out, "  🧹 Voice cache cleared")
			}
		}
		if stats, err := c.GetCacheStats(); err == nil {
			fmt.Fprintf(n.out, "  • Cached clips: %v (%.1f MB)\n", stats["cached_files"], stats["total_size_mb"])
		}
	}
	fmt.Fprintln(n.out)

	engines := tts.GetAvailableEngines(n.provider)
	colours.Info.Fprintln(n.out, "🔊 Engines available on this machine:")
	for _, e := range engines {
		fmt.Fprintf(n.out, "  • %s\n", e)
	}

	if lister, ok := n.Tts.(tts.VoiceLister); ok {
		voices, err := lister.GetAvailableVoices(n.ctx)
		if err != nil {
			n.log.WithError(err).Debug("Failed to list voices")
			return
		}
		fmt.Fprintln(n.out)
		colours.Info.Fprintf(n.out, "🗣️  %d voices available, set one with 'tts.voice' or --voice\n", len(voices))
		for i, v := range voices {
			if i == 10 {
				fmt.Fprintf(n.out, "  … and %d more\n", len(voices)-i)
				break
			}
			fmt.Fprintf(n.out, "  • %s\n", v)
		}
	}
}

func (n *Nest) libraryLocation() string {
	if n.cfg.Library.Type == "redis" {
		return "redis://" + n.cfg.Redis.Addr
	}
	return n.cfg.Library.Path
}
