// Package ui provides terminal output components for the wifiprov CLI.
//
// Components render with Lipgloss and follow a "run once and exit" pattern:
//
//   - Header: command banner with the portal address and parameters
//   - RenderNetworks: scan results as a numbered table with signal bars
//   - Result: success, failure and warning boxes; failures carry
//     troubleshooting tips derived from the provisioning error
//
// Two small Bubble Tea programs cover the interactive parts:
// RunWithSpinner shows a spinner while a request is outstanding, and
// PromptPassword reads a masked network password. Both fall back to plain
// line-oriented I/O when stdin or stdout is not a terminal, so the CLI stays
// usable in scripts.
package ui
