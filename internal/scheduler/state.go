package scheduler

import (
	"github.com/desertthunder/crowdq/internal/playlist"
	"github.com/desertthunder/crowdq/internal/player"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Phase is the state of the playback slot.
type Phase int

const (
	Empty     Phase = iota // nothing is current
	Playing                // the current track is open on the device
	Advancing              // the slot is being refilled
)

func (p Phase) String() string {
	switch p {
	case Empty:
		return "empty"
	case Playing:
		return "playing"
	case Advancing:
		return "advancing"
	default:
		return "unknown"
	}
}

// State is everything an operation submitted through the bridge may touch.
//
// Operations must not retain pointers into the queue after they return; they hand back copies such
// as [models.TrackView].
type State struct {
	Queue    *playlist.Queue
	Device   player.Device
	Settings *shared.Settings

	phase    Phase
	announce func(text string, duck float64) error
}

// Phase returns the current slot phase.
func (s *State) Phase() Phase {
	return s.phase
}

// Set changes a named runtime setting and applies vote thresholds to the queue.
func (s *State) Set(field, value string) error {
	if err := s.Settings.Set(field, value); err != nil {
		return err
	}
	s.Queue.SetThresholds(s.Settings.LikeThreshold, s.Settings.DislikeThreshold)
	return nil
}

// Apply replaces all settings, as after a config reload.
func (s *State) Apply(settings shared.Settings) {
	*s.Settings = settings
	s.Queue.SetThresholds(settings.LikeThreshold, settings.DislikeThreshold)
}

// Announce speaks text in the background with the volume scaled by duck.
// It returns [ErrAnnouncing] while another announcement is running.
func (s *State) Announce(text string, duck float64) error {
	if s.announce == nil {
		return ErrNoAnnouncer
	}
	return s.announce(text, duck)
}
