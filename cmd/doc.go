// Package cmd implements the command-line interface for resender.
//
// This package provides the following commands:
//   - resend: Find job applications in the sent folder and resend them
//   - exclude: Add recipients to, or list, the exclusion file
//   - auth: Authorize Gmail access and store the OAuth token
//   - serve: Start the MCP server to provide tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The resend command is the default command when no subcommand is specified.
package cmd
