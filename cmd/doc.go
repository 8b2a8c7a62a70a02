// Package cmd implements the command-line interface for draftbox.
//
// This package provides the following commands:
//   - serve: Start the MCP server on stdio (default)
//   - draft: Sign in through the browser and create one draft
//   - auth-url: Print a consent URL and PKCE verifier
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// Client credentials come from --client-id and --client-secret, then from
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET, which may be set in a .env file.
package cmd
