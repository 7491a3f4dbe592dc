package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	clockLayout    = "15:04"
	dateTimeLayout = "2006-01-02 15:04"
)

// ParseTime parses a delivery time relative to now, in now's location.
//
// "HH:MM" means today at that time, or tomorrow when it has already passed.
// "YYYY-MM-DD HH:MM" must lie in the future.
func ParseTime(s string, now time.Time) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	if t, err := time.ParseInLocation(clockLayout, s, now.Location()); err == nil {
		at := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil
	}

	at, err := time.ParseInLocation(dateTimeLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use HH:MM or YYYY-MM-DD HH:MM (24-hour)", s)
	}
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("scheduled time %s must be in the future", at.Format(dateTimeLayout))
	}
	return at, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitUntil blocks until at or until ctx is done. A time in the past
// returns immediately.
func WaitUntil(ctx context.Context, at time.Time) error {
	return Sleep(ctx, time.Until(at))
}
