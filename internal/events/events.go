package events

import (
	"time"

	"github.com/desertthunder/crowdq/internal/models"
)

// Type names a rotation event.
type Type string

const (
	TrackStarted    Type = "track_started"
	QueueChanged    Type = "queue_changed"
	Idle            Type = "idle"
	Announced       Type = "announced"
	SettingsChanged Type = "settings_changed"
)

// Event is one notification emitted by the scheduler.
type Event struct {
	Type    Type              `json:"type"`
	Track   *models.TrackView `json:"track,omitempty"`
	Pending int               `json:"pending"`
	Detail  string            `json:"detail,omitempty"`
	At      time.Time         `json:"at"`
}

// Publisher receives events. Implementations must not block.
type Publisher interface {
	Publish(e Event)
}

// New builds an [Event] stamped with the current time.
func New(t Type, track *models.TrackView, pending int) Event {
	return Event{Type: t, Track: track, Pending: pending, At: time.Now().UTC()}
}
