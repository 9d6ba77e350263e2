// Package logging provides structured logging utilities for the inboxreply assistant.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Handler construction for the CLI (text or JSON, optional debug level)
//   - PII sanitization (sender and operator addresses are hashed)
//   - Consistent attribute naming (email_id, thread_id, cycle_id, state)
//   - Logger interface so the assistant loop can be tested with captured output
//
// # Usage Patterns
//
//	logger := logging.WithComponent(slog.Default(), "scheduler")
//	logger.Info("cycle finished",
//	    logging.CycleID(id),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("reply sent", logging.Sender(email.Sender))
//
// # Security Considerations
//
//   - Sender and operator addresses are hashed to prevent PII leakage while allowing correlation
//   - OAuth tokens are never logged directly
package logging
