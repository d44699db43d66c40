// Package ui implements an interactive terminal client of the rotation engine using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [QueueView] : the current track and a page of the pending sequence, with vote counts
//  2. [InputView] : a one-line prompt for adding tracks, announcements, settings and volume
//
// Every key press becomes an [actions.Action] run through the dispatcher, so the TUI goes through the
// same bridge as the HTTP API. Rotation events arrive on a bus subscription and trigger a refresh.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
