// package player defines the playback [Device] the scheduler drives and its implementations:
// an mpv adapter speaking the JSON IPC protocol over a unix socket, and a clock-driven simulated device
// for running without audio output.
//
// It also contains the speech [Announcer] and the [Duck] helper that lowers volume around an announcement.
package player
