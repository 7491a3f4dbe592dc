package resend

import (
	"context"
	"unicode/utf8"

	"github.com/teemow/resender/internal/message"
)

// PreviewLength is the number of body characters shown before asking.
const PreviewLength = 200

// Choice is the per-message answer of a Decider.
type Choice int

const (
	ChoiceAccept Choice = iota
	ChoiceSkip
	ChoiceExclude
	ChoiceQuit
)

func (c Choice) String() string {
	switch c {
	case ChoiceAccept:
		return "accept"
	case ChoiceSkip:
		return "skip"
	case ChoiceExclude:
		return "exclude"
	case ChoiceQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Candidate is what a Decider is shown for an eligible message.
type Candidate struct {
	Index   int
	Total   int
	Message *message.Extracted
	Preview string
}

// Decider confirms each eligible message before it is resent.
type Decider interface {
	Decide(ctx context.Context, c Candidate) (Choice, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, c Candidate) (Choice, error)

// Decide calls f.
func (f DeciderFunc) Decide(ctx context.Context, c Candidate) (Choice, error) {
	return f(ctx, c)
}

// AlwaysAccept is the Decider of non-interactive runs.
var AlwaysAccept Decider = DeciderFunc(func(context.Context, Candidate) (Choice, error) {
	return ChoiceAccept, nil
})

// Preview returns the first PreviewLength characters of body, with "..."
// appended when it was cut.
func Preview(body string) string {
	if utf8.RuneCountInString(body) <= PreviewLength {
		return body
	}
	return string([]rune(body)[:PreviewLength]) + "..."
}
