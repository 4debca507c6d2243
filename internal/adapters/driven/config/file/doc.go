// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML (or YAML) settings with .env and TRACEQ_* overlays
//   - PromptStore: user-editable prompt templates
package file
