// Package actions is the command layer shared by the HTTP server and the terminal UI.
//
// Every user intent is an [Action] tagged with a [Kind]. [Dispatcher.Do] looks the kind up in a
// fixed handler table and runs the handler through the scheduler bridge, so each action is applied
// atomically with respect to the rotation loop. Catalog lookups happen before the bridge call since
// they block on the network.
package actions
