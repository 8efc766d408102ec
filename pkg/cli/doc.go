// Package cli provides common utilities for the sitevoice command-line
// tool.
//
// This package includes:
//   - Configuration management (contexts, kubectl style)
//   - Output formatting (JSON, YAML, raw)
//   - Request file loading (YAML/JSON)
//   - Terminal UI components for the live session view
//
// Configuration is stored in ~/.sitevoice/, supporting multiple named
// contexts so one machine can switch between a direct Gemini connection
// and a site gateway.
package cli
