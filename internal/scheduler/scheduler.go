package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/player"
	"github.com/desertthunder/crowdq/internal/playlist"
	"github.com/desertthunder/crowdq/internal/resolver"
	"github.com/desertthunder/crowdq/internal/shared"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNoAnnouncer    = errors.New("no announcer configured")
	ErrAnnouncing     = errors.New("an announcement is already playing")
)

// Store persists the pending sequence.
type Store interface {
	Save(ctx context.Context, entries []models.SnapshotEntry) error
	Load(ctx context.Context) ([]models.SnapshotEntry, error)
}

// Options holds loop timing.
type Options struct {
	TickInterval time.Duration
	SettleDelay  time.Duration // SettleDelay is how long after opening a track completion is not sampled
	EndPosition  float64       // EndPosition is the position at which a track counts as finished
}

// Deps are the collaborators the scheduler drives. Device and Resolver are required.
type Deps struct {
	Device    player.Device
	Resolver  *resolver.Resolver
	Settings  *shared.Settings
	Announcer player.Announcer
	Store     Store
	Publisher events.Publisher
	Logger    *log.Logger
}

// Scheduler advances playback through the queue and serializes every mutation.
type Scheduler struct {
	opts      Options
	state     *State
	resolver  *resolver.Resolver
	announcer player.Announcer
	store     Store
	publisher events.Publisher
	logger    *log.Logger

	requests  chan request
	jobs      chan resolver.Job
	results   chan resolver.Result
	snapshots chan []models.SnapshotEntry

	running atomic.Bool
	done    chan struct{}

	// owned by the Run goroutine
	dirty    bool
	openedAt time.Time
	inflight map[string]bool
	awaiting string

	announcing atomic.Bool
	wg         sync.WaitGroup
}

// New wires a scheduler. The queue is created here so its change and release hooks feed the loop.
func New(opts Options, deps Deps) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.EndPosition <= 0 || opts.EndPosition > 1 {
		opts.EndPosition = 0.997
	}

	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	settings := deps.Settings
	if settings == nil {
		settings = &shared.Settings{LikeThreshold: 2, DislikeThreshold: 2, DuckFactor: 0.6}
	}

	s := &Scheduler{
		opts:      opts,
		resolver:  deps.Resolver,
		announcer: deps.Announcer,
		store:     deps.Store,
		publisher: deps.Publisher,
		logger:    shared.WithLogger(logger, "component", "scheduler"),
		requests:  make(chan request),
		jobs:      make(chan resolver.Job, 4),
		results:   make(chan resolver.Result, 4),
		snapshots: make(chan []models.SnapshotEntry, 1),
		done:      make(chan struct{}),
		inflight:  make(map[string]bool),
	}

	queue := playlist.New(playlist.Options{
		LikeThreshold:    settings.LikeThreshold,
		DislikeThreshold: settings.DislikeThreshold,
		Logger:           logger,
		OnChange:         func() { s.dirty = true },
		OnRelease:        deps.Resolver.Release,
	})

	s.state = &State{Queue: queue, Device: deps.Device, Settings: settings}
	if s.announcer != nil {
		s.state.announce = s.startAnnouncement
	}
	return s
}

// Done is closed when Run has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run restores the last snapshot and loops until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)

	s.restore(ctx)

	workCtx, cancel := context.WithCancel(ctx)
	s.wg.Add(2)
	go s.worker(workCtx)
	go s.persister(workCtx)

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "tick", s.opts.TickInterval, "pending", s.state.Queue.Len())
	s.guard("tick", func() error { return s.tick(ctx) })
	s.flush()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(cancel)
			return nil
		case <-ticker.C:
			s.guard("tick", func() error { return s.tick(ctx) })
		case req := <-s.requests:
			s.serve(req)
		case res := <-s.results:
			s.guard("resolve", func() error { return s.applyResult(ctx, res) })
		}
		s.flush()
	}
}

// guard runs fn, turning errors and panics into log lines so one bad step never stops the loop.
func (s *Scheduler) guard(step string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("recovered from panic", "step", step, "panic", p)
		}
	}()

	if err := fn(); err != nil {
		s.logger.Error("step failed", "step", step, "error", err)
	}
}

func (s *Scheduler) restore(ctx context.Context) {
	if s.store == nil {
		return
	}

	entries, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("could not restore queue", "error", err)
		return
	}
	s.state.Queue.Restore(entries)
}

// tick samples the slot once. Skip requests and completion both lead to an advance.
func (s *Scheduler) tick(ctx context.Context) error {
	s.preload()

	q := s.state.Queue
	switch s.state.phase {
	case Empty:
		if q.Head() != nil {
			return s.advance(ctx)
		}
	case Playing:
		if q.SkipRequested() {
			s.logger.Info("skip requested")
			return s.advance(ctx)
		}
		if time.Since(s.openedAt) < s.opts.SettleDelay {
			return nil
		}
		position, err := s.state.Device.Position(ctx)
		if err != nil {
			return fmt.Errorf("failed to read position: %w", err)
		}
		if player.Finished(position, s.opts.EndPosition) {
			return s.advance(ctx)
		}
	case Advancing:
		c := q.Current()
		switch {
		case c == nil:
			return s.advance(ctx)
		case s.awaiting == "":
			return s.startResolve(ctx, c)
		case !s.inflight[s.awaiting]:
			s.dispatch(resolver.JobFor(c, false))
		}
	}
	return nil
}

// advance stops and releases the outgoing track and moves the next pending one into the slot.
func (s *Scheduler) advance(ctx context.Context) error {
	q := s.state.Queue
	if prev := q.Outgoing(); prev != nil {
		if err := s.state.Device.Stop(ctx); err != nil {
			s.logger.Warn("failed to stop device", "error", err)
		}
		s.logger.Info("track finished", "track", prev.Name)
	}

	s.awaiting = ""
	next := q.Advance()
	if next == nil {
		s.state.phase = Empty
		s.emit(events.New(events.Idle, nil, 0))
		return nil
	}

	s.state.phase = Advancing
	return s.startResolve(ctx, next)
}

func (s *Scheduler) startResolve(ctx context.Context, t *models.Track) error {
	if !resolver.NeedsFetch(t) {
		return s.play(ctx, t)
	}

	s.awaiting = t.EntryID
	if !s.inflight[t.EntryID] {
		s.dispatch(resolver.JobFor(t, false))
	}
	return nil
}

// preload hands the pending head to the worker while it is idle.
func (s *Scheduler) preload() {
	if len(s.inflight) > 0 {
		return
	}
	if job, ok := s.resolver.Preload(s.state.Queue); ok {
		s.dispatch(job)
	}
}

func (s *Scheduler) dispatch(job resolver.Job) {
	select {
	case s.jobs <- job:
		s.inflight[job.EntryID] = true
	default:
		s.logger.Warn("download worker busy, retrying next tick", "track", job.Name)
	}
}

func (s *Scheduler) applyResult(ctx context.Context, res resolver.Result) error {
	delete(s.inflight, res.EntryID)

	waited := res.EntryID == s.awaiting
	if waited {
		res.Preload = false
	}

	t := s.resolver.Apply(s.state.Queue, res)
	if !waited {
		return nil
	}

	s.awaiting = ""
	if t == nil || s.state.Queue.Current() != t {
		return s.advance(ctx)
	}
	return s.play(ctx, t)
}

func (s *Scheduler) play(ctx context.Context, t *models.Track) error {
	device := s.state.Device
	if err := device.Open(ctx, t.Resource); err != nil {
		return fmt.Errorf("failed to open %s: %w", t.Name, err)
	}
	if err := device.Play(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", t.Name, err)
	}

	s.state.phase = Playing
	s.openedAt = time.Now()
	s.logger.Info("now playing", "track", t.Name, "id", t.ID, "pending", s.state.Queue.Len())

	view := t.View("", 0)
	s.emit(events.New(events.TrackStarted, &view, s.state.Queue.Len()))

	if s.state.Settings.SayNames && s.announcer != nil {
		if err := s.startAnnouncement(t.Name, s.state.Settings.DuckFactor); err != nil {
			s.logger.Debug("announcement skipped", "error", err)
		}
	}
	return nil
}

// startAnnouncement runs one announcement at a time in the background.
func (s *Scheduler) startAnnouncement(text string, duck float64) error {
	if s.announcer == nil {
		return ErrNoAnnouncer
	}
	if !s.announcing.CompareAndSwap(false, true) {
		return ErrAnnouncing
	}

	device := s.state.Device
	go func() {
		defer s.announcing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		err := player.Duck(ctx, device, duck, func() error {
			return s.announcer.Announce(ctx, text)
		})
		if err != nil {
			s.logger.Warn("announcement failed", "text", text, "error", err)
			return
		}
		s.emit(events.Event{Type: events.Announced, Detail: text, At: time.Now().UTC()})
	}()
	return nil
}

func (s *Scheduler) emit(e events.Event) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}

// flush hands the latest snapshot to the persister when the queue changed.
func (s *Scheduler) flush() {
	if !s.dirty {
		return
	}
	s.dirty = false

	snapshot := s.state.Queue.Snapshot()
	select {
	case <-s.snapshots:
	default:
	}
	s.snapshots <- snapshot

	var current *models.TrackView
	if c := s.state.Queue.Current(); c != nil {
		v := c.View("", 0)
		current = &v
	}
	s.emit(events.New(events.QueueChanged, current, len(snapshot)))
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			res := s.resolver.Fetch(ctx, job)
			select {
			case s.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Scheduler) persister(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot := <-s.snapshots:
			s.save(ctx, snapshot)
		}
	}
}

func (s *Scheduler) save(ctx context.Context, snapshot []models.SnapshotEntry) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, snapshot); err != nil {
		s.logger.Error("failed to save snapshot", "entries", len(snapshot), "error", err)
	}
}

// shutdown stops the helpers, writes the final snapshot, and silences the device.
func (s *Scheduler) shutdown(cancel context.CancelFunc) {
	cancel()
	s.wg.Wait()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()

	// the persister's in-flight save may have been cancelled with workCtx
	select {
	case <-s.snapshots:
	default:
	}
	s.save(ctx, s.state.Queue.Snapshot())

	if err := s.state.Device.Stop(ctx); err != nil {
		s.logger.Warn("failed to stop device", "error", err)
	}
	clear(s.inflight)
	s.logger.Info("scheduler stopped", "pending", s.state.Queue.Len())
}
