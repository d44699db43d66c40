package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crowdq/internal/actions"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgQueueLoaded MsgKind = iota
	MsgActionDone
	MsgEvent
	MsgEventsClosed
)

type queueLoaded struct {
	view *models.QueueView
	err  error
}

type actionDone struct {
	outcome actions.Outcome
	err     error
}

// queueLoadedMsg is the constructor for [MsgQueueLoaded]
func queueLoadedMsg(view *models.QueueView, err error) Msg {
	return Msg{kind: MsgQueueLoaded, data: queueLoaded{view, err}}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(outcome actions.Outcome, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionDone{outcome, err}}
}

// eventMsg is the constructor for [MsgEvent]
func eventMsg(e events.Event) Msg {
	return Msg{kind: MsgEvent, data: e}
}

// eventsClosedMsg is the constructor for [MsgEventsClosed]
func eventsClosedMsg() Msg {
	return Msg{kind: MsgEventsClosed}
}
