// Package cmd implements the pagewatch CLI commands using Cobra.
//
// Available commands:
//   - run: Check every job in a watch file once and print a report
//   - watch: Run jobs on their cron schedules until interrupted
//   - extract: Print the labeled value of a single page
//   - validate: Check a watch file without opening any page
//   - list: Display the jobs defined in a watch file
//   - history: Show recorded runs of a job
//   - init: Create an example watch file
//   - version: Show pagewatch version information
//
// Flags default to the PAGEWATCH_* environment variables. Watch files may
// reference ${VAR}, resolved from the environment and an optional .env file.
package cmd
