// Package browser renders pages with a Chromium instance driven by go-rod and
// exposes them as extract.PageHandle values.
package browser
