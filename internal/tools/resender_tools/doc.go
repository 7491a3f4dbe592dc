// Package resender_tools exposes the resend pipeline as MCP tools.
//
//   - resender_preview runs a dry run and reports, per candidate message,
//     whether it would be resent or why it is skipped.
//   - resender_list_exclusions lists the exclusion file.
//   - resender_exclude adds a recipient to the exclusion file (not
//     registered in read-only mode).
package resender_tools
