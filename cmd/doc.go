// Package cmd implements the command-line interface for inboxreply.
//
// This package provides the following commands:
//   - run: Check, draft, send and wait in a loop until stopped
//   - auth: Authorize Gmail access and store the token
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for the control tools
//
// The run command is the default command when no subcommand is specified.
package cmd
