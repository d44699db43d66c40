package actions

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/catalog"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/player"
	"github.com/desertthunder/crowdq/internal/playlist"
	"github.com/desertthunder/crowdq/internal/scheduler"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Kind tags an [Action].
type Kind int

const (
	Enqueue Kind = iota + 1
	Remove
	Like
	Dislike
	TogglePlayback
	SetVolume
	Announce
	Configure
	ShowQueue
	ShowSettings
)

var kindNames = map[Kind]string{
	Enqueue:        "enqueue",
	Remove:         "remove",
	Like:           "like",
	Dislike:        "dislike",
	TogglePlayback: "toggle",
	SetVolume:      "volume",
	Announce:       "say",
	Configure:      "set",
	ShowQueue:      "queue",
	ShowSettings:   "settings",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the [Kind] named s.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown action %q", shared.ErrInvalidArgument, s)
}

// DefaultDuck is the volume factor used for ad-hoc announcements.
const DefaultDuck = 0.7

// Action is one user intent. Only the fields relevant to Kind are read.
type Action struct {
	Kind    Kind
	Voter   string
	TrackID string // Enqueue, Remove, Like, Dislike; empty votes target the current track
	Volume  *int   // SetVolume; nil toggles mute
	Text    string // Announce; a leading "!" disables ducking
	Field   string // Configure
	Value   string // Configure
	Page    int    // ShowQueue
}

// Outcome is what an action reports back. Only the fields relevant to the action's kind are set.
type Outcome struct {
	Kind     Kind              `json:"kind"`
	Track    *models.TrackView `json:"track,omitempty"`
	Position int               `json:"position,omitempty"`
	Removed  int               `json:"removed,omitempty"`
	Vote     *VoteOutcome      `json:"vote,omitempty"`
	Playing  *bool             `json:"playing,omitempty"`
	Volume   *int              `json:"volume,omitempty"`
	Queue    *models.QueueView `json:"queue,omitempty"`
	Setting  string            `json:"setting,omitempty"`
	Value    string            `json:"value,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
}

// VoteOutcome mirrors [playlist.VoteResult] for callers.
type VoteOutcome struct {
	Matched  int  `json:"matched"`
	Promoted bool `json:"promoted"`
	Evicted  int  `json:"evicted"`
}

func voteOutcome(r playlist.VoteResult) *VoteOutcome {
	return &VoteOutcome{Matched: r.Matched, Promoted: r.Promoted, Evicted: r.Evicted}
}

// Options configures a [Dispatcher].
type Options struct {
	PageSize  int
	Publisher events.Publisher
	Logger    *log.Logger
}

// Dispatcher runs actions against a scheduler.
type Dispatcher struct {
	sched     *scheduler.Scheduler
	catalog   catalog.Provider
	pageSize  int
	publisher events.Publisher
	logger    *log.Logger
}

// New creates a dispatcher. catalog may be nil, in which case [Enqueue] fails.
func New(sched *scheduler.Scheduler, provider catalog.Provider, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	if opts.PageSize < 1 {
		opts.PageSize = 15
	}

	return &Dispatcher{
		sched:     sched,
		catalog:   provider,
		pageSize:  opts.PageSize,
		publisher: opts.Publisher,
		logger:    shared.WithLogger(logger, "component", "actions"),
	}
}

type handler func(d *Dispatcher, ctx context.Context, a Action) (Outcome, error)

// handlers is the dispatch table.
var handlers = map[Kind]handler{
	Enqueue:        (*Dispatcher).enqueue,
	Remove:         (*Dispatcher).remove,
	Like:           (*Dispatcher).like,
	Dislike:        (*Dispatcher).dislike,
	TogglePlayback: (*Dispatcher).toggle,
	SetVolume:      (*Dispatcher).volume,
	Announce:       (*Dispatcher).announce,
	Configure:      (*Dispatcher).configure,
	ShowQueue:      (*Dispatcher).queue,
	ShowSettings:   (*Dispatcher).settings,
}

// Do runs a.
func (d *Dispatcher) Do(ctx context.Context, a Action) (Outcome, error) {
	h, ok := handlers[a.Kind]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: unknown action %s", shared.ErrInvalidArgument, a.Kind)
	}

	out, err := h(d, ctx, a)
	if err != nil {
		d.logger.Debug("action failed", "kind", a.Kind, "voter", a.Voter, "error", err)
		return out, err
	}
	out.Kind = a.Kind
	d.logger.Debug("action done", "kind", a.Kind, "voter", a.Voter)
	return out, nil
}

// EnqueueText queues every catalog id found in text and returns one outcome per queued track.
// Lookup failures are collected; the first one is returned alongside the tracks that made it.
func (d *Dispatcher) EnqueueText(ctx context.Context, voter, text string) ([]Outcome, error) {
	ids := catalog.ExtractIDs(text)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no track ids in %q", shared.ErrInvalidInput, text)
	}

	var outcomes []Outcome
	var firstErr error
	for _, id := range ids {
		out, err := d.Do(ctx, Action{Kind: Enqueue, Voter: voter, TrackID: id})
		if err != nil {
			d.logger.Warn("failed to enqueue", "id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, firstErr
}

func (d *Dispatcher) enqueue(ctx context.Context, a Action) (Outcome, error) {
	if d.catalog == nil {
		return Outcome{}, fmt.Errorf("%w: catalog", shared.ErrServiceUnavailable)
	}

	track, err := d.catalog.Lookup(ctx, a.TrackID)
	if err != nil {
		return Outcome{}, err
	}

	return scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		pos, err := s.Queue.Add(track)
		if err != nil {
			return Outcome{}, err
		}
		view := track.View(a.Voter, pos)
		return Outcome{Track: &view, Position: pos}, nil
	})
}

func (d *Dispatcher) remove(ctx context.Context, a Action) (Outcome, error) {
	if a.TrackID == "" {
		return Outcome{}, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	return scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		return Outcome{Removed: s.Queue.Remove(a.TrackID)}, nil
	})
}

func (d *Dispatcher) like(ctx context.Context, a Action) (Outcome, error) {
	return scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		r, err := s.Queue.Like(a.Voter, a.TrackID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Vote: voteOutcome(r)}, nil
	})
}

func (d *Dispatcher) dislike(ctx context.Context, a Action) (Outcome, error) {
	return scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		r, err := s.Queue.Dislike(a.Voter, a.TrackID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Vote: voteOutcome(r)}, nil
	})
}

func (d *Dispatcher) toggle(ctx context.Context, a Action) (Outcome, error) {
	return scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		playing, err := player.Toggle(ctx, s.Device)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Playing: &playing}, nil
	})
}

// volume sets an explicit level, or toggles between silence and full volume when none is given.
func (d *Dispatcher) volume(ctx context.Context, a Action) (Outcome, error) {
	return scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		var level int
		if a.Volume != nil {
			level = player.ClampVolume(*a.Volume)
		} else {
			current, err := s.Device.Volume(ctx)
			if err != nil {
				return Outcome{}, err
			}
			if current == 0 {
				level = 100
			}
		}

		if err := s.Device.SetVolume(ctx, level); err != nil {
			return Outcome{}, err
		}
		return Outcome{Volume: &level}, nil
	})
}

func (d *Dispatcher) announce(ctx context.Context, a Action) (Outcome, error) {
	text, duck := ParseAnnouncement(a.Text)
	if text == "" {
		return Outcome{}, fmt.Errorf("%w: announcement text", shared.ErrMissingArgument)
	}
	return scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		return Outcome{}, s.Announce(text, duck)
	})
}

// ParseAnnouncement strips a leading "!" from text. Such announcements play at full volume,
// everything else ducks the music by [DefaultDuck].
func ParseAnnouncement(text string) (string, float64) {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "!"); ok {
		return strings.TrimSpace(rest), 1
	}
	return text, DefaultDuck
}

func (d *Dispatcher) configure(ctx context.Context, a Action) (Outcome, error) {
	out, err := scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		if err := s.Set(a.Field, a.Value); err != nil {
			return Outcome{}, err
		}
		value, err := s.Settings.Get(a.Field)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Setting: strings.ToLower(strings.TrimSpace(a.Field)), Value: value}, nil
	})
	if err != nil {
		return out, err
	}

	d.logger.Info("setting changed", "field", out.Setting, "value", out.Value, "voter", a.Voter)
	if d.publisher != nil {
		d.publisher.Publish(events.Event{
			Type:   events.SettingsChanged,
			Detail: out.Setting + "=" + out.Value,
			At:     time.Now().UTC(),
		})
	}
	return out, nil
}

func (d *Dispatcher) queue(ctx context.Context, a Action) (Outcome, error) {
	return scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		view := s.Queue.View(a.Voter, a.Page, d.pageSize)
		return Outcome{Queue: &view}, nil
	})
}

func (d *Dispatcher) settings(ctx context.Context, a Action) (Outcome, error) {
	return scheduler.Call(ctx, d.sched, func(s *scheduler.State) (Outcome, error) {
		values := make(map[string]string)
		for _, name := range shared.SettingNames() {
			v, err := s.Settings.Get(name)
			if err != nil {
				return Outcome{}, err
			}
			values[name] = v
		}
		return Outcome{Settings: values}, nil
	})
}
