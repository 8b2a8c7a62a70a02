// Package logging provides structured logging utilities for draftbox.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "oauth.exchange")
//	logger.Info("exchanged authorization code",
//	    logging.Status(logging.StatusSuccess))
//
// Mask secrets before logging:
//
//	logger.Debug("received callback",
//	    "code", logging.SanitizeToken(code))
//
// Access tokens, refresh tokens, authorization codes and PKCE verifiers are
// never logged in clear.
package logging
