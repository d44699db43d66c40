package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crowdq/internal/actions"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueueView ViewState = iota
	InputView
)

// prompt selects what the input view submits.
type prompt int

const (
	promptAdd prompt = iota
	promptSay
	promptSet
	promptVolume
)

var promptLabels = map[prompt]string{
	promptAdd:    "Add tracks (ids or links)",
	promptSay:    "Announce (prefix with ! to keep the music loud)",
	promptSet:    "Set <field> <value>",
	promptVolume: "Volume 0-100 (empty toggles mute)",
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	dispatcher *actions.Dispatcher
	events     <-chan events.Event
	voter      string
	width      int
	height     int
	trackList  list.Model
	queue      *models.QueueView
	page       int
	prompt     prompt
	input      textinput.Model
	status     string
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a TUI model that acts as voter. sub may be nil, in which case the view only
// refreshes after the user's own actions.
func NewModel(ctx context.Context, d *actions.Dispatcher, sub <-chan events.Event, voter string) *Model {
	tracks := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	tracks.Title = "Queue"
	tracks.SetFilteringEnabled(false)
	tracks.SetShowHelp(false)

	input := textinput.New()
	input.CharLimit = 256

	return &Model{
		ctx:        ctx,
		view:       QueueView,
		dispatcher: d,
		events:     sub,
		voter:      voter,
		trackList:  tracks,
		page:       1,
		input:      input,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init loads the queue and starts listening for rotation events.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadQueue(), m.waitForEvent())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-10)
		m.input.Width = max(msg.Width-8, 10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case QueueView:
			return m.handleQueueKeys(msg)
		case InputView:
			return m.handleInputKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgQueueLoaded:
		data := msg.data.(queueLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.queue = data.view
		m.page = data.view.Page
		cmd := m.trackList.SetItems(trackItems(data.view.Pending))
		return m, cmd

	case MsgActionDone:
		data := msg.data.(actionDone)
		m.err = data.err
		if data.err == nil {
			m.status = describe(data.outcome)
		}
		return m, m.loadQueue()

	case MsgEvent:
		e := msg.data.(events.Event)
		if e.Type == events.TrackStarted && e.Track != nil {
			m.status = "now playing " + e.Track.Name
		}
		return m, tea.Batch(m.loadQueue(), m.waitForEvent())

	case MsgEventsClosed:
		m.events = nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case InputView:
		return m.renderInput()
	default:
		return m.renderQueue()
	}
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.err = nil
		return m, m.loadQueue()
	case key.Matches(msg, m.keys.prevPage):
		m.page = max(m.page-1, 1)
		return m, m.loadQueue()
	case key.Matches(msg, m.keys.nextPage):
		if m.queue != nil && m.page < m.queue.Pages {
			m.page++
		}
		return m, m.loadQueue()
	case key.Matches(msg, m.keys.like):
		return m, m.onSelected(actions.Like)
	case key.Matches(msg, m.keys.dislike):
		return m, m.onSelected(actions.Dislike)
	case key.Matches(msg, m.keys.remove):
		return m, m.onSelected(actions.Remove)
	case key.Matches(msg, m.keys.likeNow):
		return m, m.run(actions.Action{Kind: actions.Like, Voter: m.voter})
	case key.Matches(msg, m.keys.dislikeNow):
		return m, m.run(actions.Action{Kind: actions.Dislike, Voter: m.voter})
	case key.Matches(msg, m.keys.toggle):
		return m, m.run(actions.Action{Kind: actions.TogglePlayback, Voter: m.voter})
	case key.Matches(msg, m.keys.mute):
		return m, m.run(actions.Action{Kind: actions.SetVolume, Voter: m.voter})
	case key.Matches(msg, m.keys.add):
		return m, m.openPrompt(promptAdd)
	case key.Matches(msg, m.keys.say):
		return m, m.openPrompt(promptSay)
	case key.Matches(msg, m.keys.set):
		return m, m.openPrompt(promptSet)
	case key.Matches(msg, m.keys.volume):
		return m, m.openPrompt(promptVolume)
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.closePrompt()
		return m, nil
	case key.Matches(msg, m.keys.submit):
		value := m.input.Value()
		p := m.prompt
		m.closePrompt()
		return m, m.submit(p, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case QueueView:
		m.trackList, cmd = m.trackList.Update(msg)
	case InputView:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) openPrompt(p prompt) tea.Cmd {
	m.prompt = p
	m.view = InputView
	m.input.Reset()
	m.input.Placeholder = promptLabels[p]
	return m.input.Focus()
}

func (m *Model) closePrompt() {
	m.input.Blur()
	m.input.Reset()
	m.view = QueueView
}

func (m *Model) selected() (models.TrackView, bool) {
	item, ok := m.trackList.SelectedItem().(trackItem)
	if !ok {
		return models.TrackView{}, false
	}
	return item.track, true
}

func (m *Model) onSelected(kind actions.Kind) tea.Cmd {
	t, ok := m.selected()
	if !ok {
		return nil
	}
	return m.run(actions.Action{Kind: kind, Voter: m.voter, TrackID: t.ID})
}

func (m *Model) submit(p prompt, value string) tea.Cmd {
	switch p {
	case promptAdd:
		return m.enqueue(value)
	case promptSay:
		return m.run(actions.Action{Kind: actions.Announce, Voter: m.voter, Text: value})
	case promptSet:
		field, v, err := parseSetting(value)
		if err != nil {
			return fail(err)
		}
		return m.run(actions.Action{Kind: actions.Configure, Voter: m.voter, Field: field, Value: v})
	case promptVolume:
		volume, err := parseVolume(value)
		if err != nil {
			return fail(err)
		}
		return m.run(actions.Action{Kind: actions.SetVolume, Voter: m.voter, Volume: volume})
	}
	return nil
}

func fail(err error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(actions.Outcome{}, err)
	}
}

// parseSetting splits "field value".
func parseSetting(s string) (string, string, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: expected <field> <value>", shared.ErrMissingArgument)
	}
	return parts[0], parts[1], nil
}

// parseVolume returns nil for empty input, which toggles mute.
func parseVolume(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: volume must be a number", shared.ErrInvalidArgument)
	}
	return &v, nil
}

func (m *Model) run(a actions.Action) tea.Cmd {
	return func() tea.Msg {
		out, err := m.dispatcher.Do(m.ctx, a)
		return actionDoneMsg(out, err)
	}
}

func (m *Model) enqueue(text string) tea.Cmd {
	return func() tea.Msg {
		outs, err := m.dispatcher.EnqueueText(m.ctx, m.voter, text)
		if len(outs) == 0 {
			return actionDoneMsg(actions.Outcome{}, err)
		}
		return actionDoneMsg(outs[len(outs)-1], err)
	}
}

func (m *Model) loadQueue() tea.Cmd {
	page := m.page
	return func() tea.Msg {
		out, err := m.dispatcher.Do(m.ctx, actions.Action{Kind: actions.ShowQueue, Voter: m.voter, Page: page})
		return queueLoadedMsg(out.Queue, err)
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	sub := m.events
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-sub
		if !ok {
			return eventsClosedMsg()
		}
		return eventMsg(e)
	}
}

// describe summarises an outcome for the status line.
func describe(out actions.Outcome) string {
	switch out.Kind {
	case actions.Enqueue:
		if out.Track != nil {
			return fmt.Sprintf("queued %s at position %d", out.Track.Name, out.Position)
		}
		return fmt.Sprintf("queued at position %d", out.Position)
	case actions.Remove:
		return fmt.Sprintf("removed %d", out.Removed)
	case actions.Like, actions.Dislike:
		if out.Vote == nil || out.Vote.Matched == 0 {
			return "nothing to vote on"
		}
		switch {
		case out.Vote.Promoted:
			return out.Kind.String() + "d, track moved up"
		case out.Vote.Evicted > 0:
			return fmt.Sprintf("%sd, %d evicted", out.Kind, out.Vote.Evicted)
		}
		return out.Kind.String() + "d"
	case actions.TogglePlayback:
		if out.Playing != nil && *out.Playing {
			return "playing"
		}
		return "paused"
	case actions.SetVolume:
		if out.Volume != nil {
			return fmt.Sprintf("volume %d", *out.Volume)
		}
	case actions.Announce:
		return "announcing"
	case actions.Configure:
		return fmt.Sprintf("%s = %s", out.Setting, out.Value)
	}
	return ""
}

func (m *Model) renderQueue() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("crowdq"))
	b.WriteString("\n")

	if m.queue != nil && m.queue.Current != nil {
		c := m.queue.Current
		b.WriteString(styles.ok.Render("♪ " + c.Name))
		b.WriteString(fmt.Sprintf("  ▲ %d  ▼ %d", c.Likes, c.Dislikes))
	} else {
		b.WriteString(styles.help.Render("nothing playing"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.trackList.View())
	b.WriteString("\n")

	if m.queue != nil {
		b.WriteString(styles.help.Render(fmt.Sprintf("page %d/%d • %d pending", m.queue.Page, m.queue.Pages, m.queue.Total)))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render("Error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(styles.warn.Render(m.status))
	}
	b.WriteString("\n\n")

	b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	return b.String()
}

func (m *Model) renderInput() string {
	title := styles.title.Render(promptLabels[m.prompt])
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.input.View(), helpView)
}
