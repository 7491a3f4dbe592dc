// Package prompt implements the interactive confirmation step of a resend
// run: each eligible message is shown with a short body preview and the
// user answers yes, no, exclude or quit.
package prompt
