package story

import "time"

// Page is one unit of narrative content. Only UserRecording changes after
// the page has been generated.
type Page struct {
	Text          string     `json:"text"`
	ImagePrompt   string     `json:"imagePrompt"`
	Choices       []string   `json:"choices"`
	IsEnding      bool       `json:"isEnding"`
	UserRecording *Recording `json:"-"`
}

// HasRecording reports whether the child recorded their voice for this page.
func (p Page) HasRecording() bool {
	return p.UserRecording != nil && len(p.UserRecording.Data) > 0
}

// Story is the persisted record of a finished reading session.
type Story struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Date            time.Time `json:"date"`
	Pages           []Page    `json:"pages"`
	DurationSeconds int       `json:"durationSeconds"`
}

// Favorite is an illustration the child hearted.
type Favorite struct {
	ID       string    `json:"id"`
	ImageRef string    `json:"imageRef"`
	Prompt   string    `json:"prompt"`
	Date     time.Time `json:"date"`

	// Image carries the picture bytes on insert; stores that keep files
	// write it out and record the location in ImagePath.
	Image     *Illustration `json:"-"`
	ImagePath string        `json:"imagePath,omitempty"`
}

// Illustration is an opaque generated image.
type Illustration struct {
	Ref      string
	MIMEType string
	Data     []byte
}

// Ext returns a file extension matching the image MIME type.
func (i *Illustration) Ext() string {
	switch i.MIMEType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

// Recording is a voice clip captured for one page.
type Recording struct {
	PageIndex int
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
}

// ChatMessage is one line of the companion transcript.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Riddle is one round of the guessing game.
type Riddle struct {
	Answer      string `json:"answer"`
	Clue        string `json:"clue"`
	ImagePrompt string `json:"imagePrompt"`
}

// Verdict is the outcome of checking a riddle guess.
type Verdict struct {
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
}
