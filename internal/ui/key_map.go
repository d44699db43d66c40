package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up         key.Binding
	down       key.Binding
	prevPage   key.Binding
	nextPage   key.Binding
	like       key.Binding
	dislike    key.Binding
	likeNow    key.Binding
	dislikeNow key.Binding
	remove     key.Binding
	toggle     key.Binding
	mute       key.Binding
	add        key.Binding
	say        key.Binding
	set        key.Binding
	volume     key.Binding
	refresh    key.Binding
	submit     key.Binding
	back       key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		prevPage:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev page")),
		nextPage:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next page")),
		like:       key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "like")),
		dislike:    key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "dislike")),
		likeNow:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "like current")),
		dislikeNow: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "dislike current")),
		remove:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
		toggle:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		add:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		say:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "say")),
		set:        key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "set")),
		volume:     key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "volume")),
		refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.add, k.like, k.dislike, k.toggle, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.prevPage, k.nextPage},
		{k.like, k.dislike, k.likeNow, k.dislikeNow, k.remove},
		{k.toggle, k.mute, k.volume},
		{k.add, k.say, k.set, k.refresh, k.quit},
	}
}
