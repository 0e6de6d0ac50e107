// Package output provides formatters for watch reports.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration, one test case per job
//   - TAP: Test Anything Protocol format
//
// Formatters that accumulate reports write them on Flush.
package output
