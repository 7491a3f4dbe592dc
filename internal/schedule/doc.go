// Package schedule handles delivery times for scheduled resends.
//
// ParseTime accepts "HH:MM" (today, or tomorrow once passed) and
// "YYYY-MM-DD HH:MM" (must be in the future). WaitUntil and Sleep are
// the context-aware waits used between sends and before scheduled draft
// delivery. TaskScheduler registers a one-shot OS task (schtasks on
// Windows, at elsewhere) that re-runs the resend command later.
package schedule
