package events

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cskr/pubsub"
)

// Event channel names used for event Pubsub

// internal
const (
	Shutdown    = "shutdown"    // bool
	OsExit      = "osExit"      // bool
	DeviceError = "deviceError" // error
	Underrun    = "underrun"    // int64 (missing samples)
)

// playback state
const (
	StateChange = "stateChange" // player.PlaybackState
	TrackEnd    = "trackEnd"    // string (track path)
	TrackError  = "trackError"  // error
	Beat        = "beat"        // bool
)

// WatchSystemEvents publishes an OsExit event when the process receives
// an interrupt signal (CTRL-C) and a Shutdown event on SIGTERM.
func WatchSystemEvents(evPS *pubsub.PubSub) {

	osSignals := make(chan os.Signal, 1)

	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM)

	switch <-osSignals {
	case syscall.SIGTERM:
		evPS.Pub(true, Shutdown)
	default:
		evPS.Pub(true, OsExit)
	}
}
