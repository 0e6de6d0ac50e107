// Package config loads and validates pagewatch watch files.
//
// It provides functionality for:
//   - Loading watch files from YAML (.yaml, .yml) or JSON (.json)
//   - Expanding ${VAR} references from the environment
//   - Checking files against an embedded JSON schema
//   - Default values and CLI overrides
package config
