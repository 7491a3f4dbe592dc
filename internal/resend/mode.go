package resend

import (
	"fmt"
	"strings"
)

// Mode selects how accepted resends are delivered.
type Mode string

const (
	// ModeImmediate sends each resend right away.
	ModeImmediate Mode = "immediate"

	// ModeDrafts only creates drafts; the user schedules them in Gmail.
	ModeDrafts Mode = "drafts"

	// ModeScheduled creates drafts now and sends them at Options.SendAt.
	ModeScheduled Mode = "scheduled"
)

// ParseMode parses a mode name. Empty means immediate.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeImmediate:
		return ModeImmediate, nil
	case ModeDrafts, "draft":
		return ModeDrafts, nil
	case ModeScheduled:
		return ModeScheduled, nil
	default:
		return "", fmt.Errorf("invalid mode %q, must be one of: immediate, drafts, scheduled", s)
	}
}

// CreatesDrafts reports whether the mode dispatches through drafts.
func (m Mode) CreatesDrafts() bool {
	return m == ModeDrafts || m == ModeScheduled
}
