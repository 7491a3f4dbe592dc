// Package logging provides structured logging utilities for resender.
//
// Everything logs through the standard library's slog. Setup wires the
// process-wide handler (stdout plus the run log file), and the attribute
// helpers keep key names consistent between the batch run, the Gmail
// client and the MCP tools.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "resend")
//	logger.Info("resent application",
//	    logging.MessageID(id),
//	    logging.Recipient(to))
//
// # Security Considerations
//
// Recipient addresses are hashed by Recipient and UserHash so log lines can
// be correlated without writing addresses in the clear. OAuth tokens are
// only ever logged through SanitizeToken.
package logging
