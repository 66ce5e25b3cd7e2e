package nest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"wondertales/internal/cli/scheme/colours"
	"wondertales/internal/domain/story"
	"wondertales/internal/story/audio"
	"wondertales/internal/story/book"
	"wondertales/internal/story/loader"
)

// ReadStory runs the story wizard and then the reading view.
func (n *Nest) ReadStory(cmd *cobra.Command, args []string) {
	topic := strings.Join(args, " ")

	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "🪄 Let's make a story! 🪄")
	for strings.TrimSpace(topic) == "" {
		var ok bool
		topic, ok = n.readLine("🌟 What should the story be about? (a space bunny, a brave dragon...): ")
		if !ok {
			return
		}
	}

	colours.Info.Fprintln(n.out, "✍️  Writing the first page...")
	sess, err := startSession(n.ctx, n.sessionDeps(), topic)
	if err != nil {
		n.printError("Could not start the story", err)
		return
	}

	sess.OnView(func(v loader.View) { n.printView(sess, v) })
	sess.Open(n.ctx)
	n.readingLoop(sess)
}

func (n *Nest) readingLoop(sess *Session) {
	n.printPage(sess)

	for {
		input, ok := n.readLine("\n📖 > ")
		if !ok {
			n.finish(sess)
			return
		}

		var err error
		switch strings.ToLower(input) {
		case "":
			continue
		case "q", "quit", "exit", "done":
			n.finish(sess)
			return
		case "b", "back":
			if err = sess.Back(n.ctx); err == nil {
				n.printPage(sess)
			}
		case "f", "forward", "next":
			if err = sess.Forward(n.ctx); err == nil {
				n.printPage(sess)
			}
		case "r", "replay":
			err = sess.ReplayNarration()
		case "p", "pause":
			if sess.TogglePause() {
				colours.Warning.Fprintln(n.out, "⏸️  Paused")
			} else {
				colours.Success.Fprintln(n.out, "▶️  Playing")
			}
		case "h", "heart":
			var on bool
			if on, err = sess.ToggleFavorite(n.ctx); err == nil && on {
				colours.Success.Fprintln(n.out, "❤️  Saved to favorites!")
			} else if err == nil {
				colours.Info.Fprintln(n.out, "🤍 Removed from favorites")
			}
		case "v", "voice", "record":
			err = n.toggleRecording(sess)
		case "m", "me", "my voice":
			err = sess.PlayMyVoice()
		case "?", "help":
			n.printReadingHelp()
		default:
			err = n.choose(sess, input)
		}

		if err != nil {
			n.printReadingError(err)
		}
	}
}

func (n *Nest) choose(sess *Session, input string) error {
	_, page := sess.Page()
	choice := input
	if i, err := strconv.Atoi(input); err == nil && i >= 1 && i <= len(page.Choices) {
		choice = page.Choices[i-1]
	}

	colours.Info.Fprintln(n.out, "✨ Turning the page...")
	if err := sess.Choose(n.ctx, choice); err != nil {
		return err
	}
	n.printPage(sess)
	return nil
}

func (n *Nest) toggleRecording(sess *Session) error {
	if sess.IsRecording() {
		rec, err := sess.StopRecording()
		if err != nil {
			return err
		}
		colours.Success.Fprintf(n.out, "🎙️  Got it! Your voice is saved on page %d. Type 'm' to hear it.\n", rec.PageIndex+1)
		return nil
	}
	if err := sess.StartRecording(n.ctx); err != nil {
		return err
	}
	colours.Warning.Fprintln(n.out, "🔴 Recording... read the page out loud, then type 'v' again to stop.")
	return nil
}

func (n *Nest) finish(sess *Session) {
	res, err := sess.Finish(n.ctx)
	if errors.Is(err, book.ErrFinished) {
		return
	}
	if errors.Is(err, book.ErrPagePending) {
		// the page being written is lost; the reader is leaving anyway
		colours.Warning.Fprintln(n.out, "⏳ Still writing the next page, leaving without saving.")
		return
	}

	fmt.Fprintln(n.out)
	colours.Success.Fprintf(n.out, "✅ The End! You read %d pages in %s 🌟\n", len(res.Pages), formatDuration(res.DurationSeconds))
	if err != nil {
		n.printError("Could not save the story", err)
	}
	colours.Prompt.Fprintln(n.out, "😴 Sleep tight! 🌙")
}

func (n *Nest) printPage(sess *Session) {
	idx, page := sess.Page()

	fmt.Fprintln(n.out)
	colours.Title.Fprintf(n.out, "📖 %s · page %d of %d\n", sess.Title(), idx+1, sess.Book().Len())
	fmt.Fprintln(n.out)
	fmt.Fprintln(n.out, page.Text)
	fmt.Fprintln(n.out)

	switch {
	case page.IsEnding || len(page.Choices) == 0:
		colours.Success.Fprintln(n.out, "🌈 The End. Type 'q' to close the book.")
	case !sess.Book().AtLatest():
		colours.Info.Fprintln(n.out, "👉 Type 'f' to go forward.")
	default:
		colours.Prompt.Fprintln(n.out, "🤔 What happens next?")
		for i, c := range page.Choices {
			fmt.Fprintf(n.out, "  %d. ", i+1)
			colours.Highlight.Fprintln(n.out, c)
		}
	}

	if page.HasRecording() {
		colours.Info.Fprintln(n.out, "🎙️  You recorded this page. Type 'm' to hear yourself.")
	}
	colours.Info.Fprintln(n.out, "💡 b back · f forward · r replay · p pause · v record · h heart · ? help · q quit")
}

// printView reports asset changes for the page in view. It runs on loader
// goroutines.
func (n *Nest) printView(sess *Session, v loader.View) {
	switch v.Image {
	case loader.Ready:
		path := ""
		if p, ok := sess.ExportedImage(v.Index); ok {
			path = fmt.Sprintf(" (%s)", p)
		}
		colours.Success.Fprintf(n.out, "🖼️  Picture for page %d is ready%s\n", v.Index+1, path)
	case loader.Unavailable:
		colours.Warning.Fprintf(n.out, "🖼️  No picture for page %d this time\n", v.Index+1)
	}
	if v.Narration == loader.Unavailable {
		colours.Warning.Fprintln(n.out, "🔇 The narrator lost their voice, you'll have to read this one!")
	}
}

func (n *Nest) printReadingHelp() {
	colours.Info.Fprintln(n.out, "📚 Reading commands:")
	fmt.Fprintln(n.out, "  • 1, 2, 3 or the words of a choice - pick what happens next")
	fmt.Fprintln(n.out, "  • b / f  - go back / forward")
	fmt.Fprintln(n.out, "  • r      - hear the page again")
	fmt.Fprintln(n.out, "  • p      - pause / resume")
	fmt.Fprintln(n.out, "  • v      - start / stop recording your voice")
	fmt.Fprintln(n.out, "  • m      - play your recording")
	fmt.Fprintln(n.out, "  • h      - heart the picture")
	fmt.Fprintln(n.out, "  • q      - finish the story")
}

func (n *Nest) printReadingError(err error) {
	switch {
	case errors.Is(err, book.ErrPagePending):
		colours.Warning.Fprintln(n.out, "⏳ Hold on, the next page is still being written!")
	case errors.Is(err, book.ErrStoryEnded):
		colours.Info.Fprintln(n.out, "🌈 This story has ended. Type 'q' to close the book.")
	case errors.Is(err, book.ErrNotAtLatestPage):
		colours.Info.Fprintln(n.out, "👉 Go forward to the newest page to choose what happens next.")
	case errors.Is(err, book.ErrUnknownChoice):
		colours.Warning.Fprintln(n.out, "🤔 That's not one of the choices. Type ? for help.")
	case errors.Is(err, audio.ErrNoRecording):
		colours.Info.Fprintln(n.out, "🎙️  You haven't recorded this page yet. Type 'v' to record.")
	case errors.Is(err, loader.ErrNarrationNotReady):
		colours.Info.Fprintln(n.out, "🔈 The narration isn't ready yet.")
	case errors.Is(err, story.ErrPermissionDenied):
		colours.Error.Fprintln(n.out, "🎙️  I'm not allowed to use the microphone. Ask a grown-up to check the settings.")
	case errors.Is(err, story.ErrDeviceUnavailable):
		colours.Error.Fprintln(n.out, "🎙️  I can't find a microphone.")
	case errors.Is(err, story.ErrGeneration):
		n.printError("The story got stuck, try again", err)
	default:
		n.printError("Something went wrong", err)
	}
}

func (n *Nest) printError(msg string, err error) {
	n.log.WithError(err).Debug(msg)
	colours.Error.Fprintf(n.out, "❌ %s: %v\n", msg, err)
}

// formatDuration renders whole seconds as "Xm Ys".
func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
