// Package common provides shared utilities for MCP tool implementations.
// InstrumentedToolHandler wraps a handler so every call is traced and
// counted in the tool invocation metrics.
package common
