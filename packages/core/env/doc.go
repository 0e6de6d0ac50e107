// Package env handles process environment for pagewatch.
//
// It provides functionality for:
//   - Loading .env files so ${VAR} references in watch files resolve
//   - Reading process settings (store, logging, browser, webhooks) from
//     environment variables
package env
