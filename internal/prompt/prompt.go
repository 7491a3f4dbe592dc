package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/teemow/resender/internal/resend"
)

const question = "Resend this email? (y)es / (n)o / (e)xclude recipient / (q)uit: "

// Terminal asks the user about each eligible message on a line based
// terminal. It implements resend.Decider.
type Terminal struct {
	lines <-chan string
	out   io.Writer
}

// NewTerminal reads answers from in and writes prompts to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{lines: readLines(in), out: out}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// readLines feeds the lines of r into a channel that is closed at EOF, so
// Decide can stop waiting when its context is canceled.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if line != "" || err == nil {
				ch <- strings.TrimSpace(line)
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// Decide shows the candidate and waits for y, n, e or q. Unrecognised
// answers are asked again. End of input is treated as quit.
func (t *Terminal) Decide(ctx context.Context, c resend.Candidate) (resend.Choice, error) {
	t.show(c)

	for {
		fmt.Fprint(t.out, question)

		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return resend.ChoiceQuit, ctx.Err()
		case line, ok := <-t.lines:
			if !ok {
				fmt.Fprintln(t.out)
				return resend.ChoiceQuit, nil
			}
			if choice, valid := ParseAnswer(line); valid {
				return choice, nil
			}
			fmt.Fprintln(t.out, "Please answer y, n, e or q.")
		}
	}
}

func (t *Terminal) show(c resend.Candidate) {
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, strings.Repeat("-", 50))
	if c.Total > 0 {
		fmt.Fprintf(t.out, "Email %d of %d\n", c.Index, c.Total)
	}
	if ex := c.Message; ex != nil {
		fmt.Fprintf(t.out, "To: %s\n", ex.To)
		fmt.Fprintf(t.out, "Subject: %s\n", ex.Subject)
		fmt.Fprintf(t.out, "Date: %s\n", ex.Date)
	}
	fmt.Fprintf(t.out, "Preview: %s\n", c.Preview)
	fmt.Fprintln(t.out, strings.Repeat("-", 50))
}

// ParseAnswer maps a typed answer to a choice.
func ParseAnswer(s string) (resend.Choice, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return resend.ChoiceAccept, true
	case "n", "no":
		return resend.ChoiceSkip, true
	case "e", "exclude":
		return resend.ChoiceExclude, true
	case "q", "quit":
		return resend.ChoiceQuit, true
	default:
		return 0, false
	}
}
