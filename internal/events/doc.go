// package events fans rotation events out to in-process subscribers (the websocket hub, the TUI) and,
// optionally, to a Redis channel.
//
// Publishing never blocks: a subscriber that falls behind loses events rather than stalling the scheduler.
package events
