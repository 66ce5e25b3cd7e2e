package nest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wondertales/internal/chat"
	"wondertales/internal/cli/scheme/colours"
	"wondertales/internal/domain/library/generator"
	"wondertales/internal/domain/story"
	"wondertales/internal/riddle"
)

func (n *Nest) newRiddleGame() *riddle.Game {
	transcriber, _ := n.provider.(generator.Transcriber)
	return riddle.NewGame(n.provider, riddle.Options{
		Illustrator: n.provider,
		Narrator:    n.Tts,
		Player:      n.playback,
		Microphone:  n.recorder,
		Transcriber: transcriber,
		Log:         logrus.WithField("component", "riddle"),
	})
}

// PlayRiddles runs the riddle game until the child quits.
func (n *Nest) PlayRiddles(cmd *cobra.Command, args []string) {
	game := n.newRiddleGame()
	defer n.playback.StopAll()

	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "🧩 Riddle Time! 🧩")
	if !n.startRound(game) {
		return
	}

	for {
		input, ok := n.readLine("\n🤔 Your guess: ")
		if !ok {
			return
		}

		switch strings.ToLower(input) {
		case "":
			continue
		case "q", "quit", "exit":
			colours.Warning.Fprintln(n.out, "👋 Bye! Come back for more riddles!")
			return
		case "n", "next", "new":
			if !n.startRound(game) {
				return
			}
		case "?", "again", "repeat":
			if err := game.RepeatClue(n.ctx); err != nil {
				n.printError("No riddle yet", err)
			}
		case "v", "voice":
			guess, err := n.listen(game)
			if err != nil {
				if errors.Is(err, riddle.ErrVoiceInputUnavailable) {
					colours.Warning.Fprintln(n.out, "🎙️  I can't hear answers right now. Please type your answer.")
				} else {
					n.printReadingError(err)
				}
				continue
			}
			colours.Info.Fprintf(n.out, "👂 I heard: %q\n", guess)
			n.guess(game, guess)
		default:
			n.guess(game, input)
		}
	}
}

func (n *Nest) startRound(game *riddle.Game) bool {
	colours.Info.Fprintln(n.out, "🔮 Thinking of something...")
	r, err := game.StartRound(n.ctx)
	if err != nil {
		n.printError("Oops, couldn't start the game. Try again", err)
		return false
	}
	fmt.Fprintln(n.out)
	colours.Prompt.Fprintln(n.out, r.Clue)
	colours.Info.Fprintln(n.out, "💡 type a guess · v say it · ? hear the clue again · n new riddle · q quit")
	return true
}

func (n *Nest) listen(game *riddle.Game) (string, error) {
	if err := game.StartListening(n.ctx); err != nil {
		return "", err
	}
	colours.Warning.Fprintln(n.out, "🔴 Listening... say your answer, then press Enter.")
	n.readLine("")
	return game.StopListening(n.ctx)
}

func (n *Nest) guess(game *riddle.Game, guess string) {
	out, err := game.Submit(n.ctx, guess)
	if err != nil {
		if !errors.Is(err, riddle.ErrEmptyGuess) {
			n.printError("I got confused. Try again", err)
		}
		return
	}

	if !out.Verdict.Correct {
		colours.Warning.Fprintf(n.out, "🙈 %s\n", out.Verdict.Feedback)
		return
	}

	colours.Success.Fprintf(n.out, "🏆 %s\n", out.Verdict.Feedback)
	if out.Prize != nil {
		if path, err := n.savePrize(out.Prize); err == nil {
			colours.Success.Fprintf(n.out, "🖼️  Your prize picture: %s\n", path)
		} else {
			n.log.WithError(err).Warn("Failed to write prize picture")
		}
	}
	colours.Info.Fprintln(n.out, "🎉 Type 'n' for another riddle!")
}

func (n *Nest) savePrize(img *story.Illustration) (string, error) {
	if err := os.MkdirAll(n.cfg.Story.ImageDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(n.cfg.Story.ImageDir, fmt.Sprintf("riddle-%s.%s", shortRef(img.Ref), img.Ext()))
	return path, os.WriteFile(path, img.Data, 0644)
}

// Chat talks to Sparkle until the child says goodbye.
func (n *Nest) Chat(cmd *cobra.Command, args []string) {
	buddy := chat.NewBuddy(n.provider, logrus.WithField("component", "chat"))

	fmt.Fprintln(n.out)
	colours.Title.Fprintln(n.out, "💬 Chat with Sparkle 💬")
	colours.Info.Fprintln(n.out, "💡 Type 'bye' to leave")
	fmt.Fprintln(n.out)
	n.printChat(buddy.Transcript()[0])

	for {
		input, ok := n.readLine("\n🧒 You: ")
		if !ok {
			return
		}
		switch strings.ToLower(input) {
		case "":
			continue
		case "bye", "q", "quit", "exit":
			colours.Warning.Fprintln(n.out, "👋 Bye bye, friend!")
			return
		}

		reply, err := buddy.Send(n.ctx, input)
		if err != nil {
			continue
		}
		n.printChat(story.ChatMessage{Role: story.RoleModel, Text: reply})
	}
}

func (n *Nest) printChat(m story.ChatMessage) {
	if m.Role == story.RoleModel {
		colours.Sparkle.Fprint(n.out, "✨ Sparkle: ")
	}
	fmt.Fprintln(n.out, m.Text)
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	if ref == "" {
		return "prize"
	}
	return ref
}
