// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a three-view workflow for playlist generation:
//  1. [ConfirmView] : Review the run settings and confirm
//  2. [RunView] : Monitor real-time pipeline progress
//  3. [ResultView] : Display the published playlist, counts, and a track preview
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the DiscoveryEngine, providing non-blocking status reporting during a run.
//
// Keyboard interaction uses single-key bindings (y/n, d, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
