package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/crowdq/internal/models"
)

var _ list.Item = trackItem{}

// trackItem wraps [models.TrackView] to implement [list.Item].
type trackItem struct {
	track models.TrackView
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string       { return fmt.Sprintf("%d. %s", i.track.Position, i.track.Name) }
func (i trackItem) Description() string {
	desc := fmt.Sprintf("▲ %d  ▼ %d", i.track.Likes, i.track.Dislikes)
	switch {
	case i.track.Liked:
		desc += " • you liked"
	case i.track.Disliked:
		desc += " • you disliked"
	}
	if i.track.Resolved {
		desc += " • ready"
	}
	return desc
}

func trackItems(views []models.TrackView) []list.Item {
	items := make([]list.Item, len(views))
	for i, v := range views {
		items[i] = trackItem{track: v}
	}
	return items
}
