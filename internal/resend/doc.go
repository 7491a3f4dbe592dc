// Package resend drives a batch of sent messages through the resend
// pipeline.
//
// For each candidate id the Orchestrator fetches the full message,
// extracts it, asks the Gate whether it is eligible, asks the Decider
// (interactive or scripted) whether to go ahead, composes the resend and
// dispatches it according to the run Mode. Per-message failures become
// counter increments on the Summary; only failures before the loop starts
// (authentication, the initial search) are fatal.
package resend
