// Package ui implements a terminal progress view for conversions using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [TransferView] : Spinner, progress bar and a scrolling log fed by [tasks.ProgressUpdate] events
//  2. [ResultView] : Per-service summary and a browsable list of every track outcome
//
// The (view) [Model] runs a [Job] in the background and receives its progress through a buffered channel,
// so a slow terminal never blocks resolution or download workers.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, tab, c, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
