package resend

import (
	"fmt"
	"io"
	"strings"
)

// Status is the per-message result.
type Status string

const (
	StatusResent  Status = "resent"
	StatusSkipped Status = "skipped"
	StatusErrored Status = "errored"
)

// Outcome records what happened to one candidate message.
type Outcome struct {
	MessageID string
	To        string
	Subject   string
	Status    Status
	Decision  Decision
	Choice    Choice
	// DeliveryID is the sent message id or, in draft modes, the draft id.
	DeliveryID string
	Err        error
}

// Summary aggregates a run.
type Summary struct {
	Mode    Mode
	DryRun  bool
	Found   int
	Resent  int
	Skipped int
	Errored int
	Quit    bool

	// Delivered and DeliveryErrors count scheduled drafts sent after the batch.
	Delivered      int
	DeliveryErrors int

	Outcomes []Outcome
}

func (s *Summary) record(o Outcome) {
	switch o.Status {
	case StatusResent:
		s.Resent++
	case StatusSkipped:
		s.Skipped++
	case StatusErrored:
		s.Errored++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// Processed returns how many candidates reached a final status.
func (s Summary) Processed() int {
	return s.Resent + s.Skipped + s.Errored
}

// Print writes the human readable summary.
func (s Summary) Print(w io.Writer) {
	rule := strings.Repeat("=", 50)

	title := "RESEND SUMMARY"
	resentLabel := "Messages resent"
	if s.Mode == ModeDrafts {
		title = "DRAFT CREATION SUMMARY"
		resentLabel = "Drafts created"
	} else if s.Mode == ModeScheduled {
		resentLabel = "Drafts scheduled"
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total messages found: %d\n", s.Found)
	fmt.Fprintf(w, "%s: %d\n", resentLabel, s.Resent)
	fmt.Fprintf(w, "Messages skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "Errors encountered: %d\n", s.Errored)

	if s.Mode == ModeScheduled && !s.DryRun {
		fmt.Fprintf(w, "Scheduled drafts delivered: %d (failed: %d)\n", s.Delivered, s.DeliveryErrors)
	}
	if s.Quit {
		fmt.Fprintf(w, "\nStopped early after %d of %d messages.\n", s.Processed(), s.Found)
	}
	if s.Mode == ModeDrafts && !s.DryRun && s.Resent > 0 {
		fmt.Fprintln(w, "\nOpen the drafts in Gmail and use 'Schedule send' to deliver them.")
	}
	if s.DryRun {
		fmt.Fprintln(w, "\nThis was a DRY RUN - no emails were actually sent")
		fmt.Fprintln(w, "Set DRY_RUN=false to actually send emails")
	}
}
