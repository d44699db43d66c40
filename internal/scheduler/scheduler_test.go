package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/playlist"
	"github.com/desertthunder/crowdq/internal/resolver"
	"github.com/desertthunder/crowdq/internal/shared"
	tu "github.com/desertthunder/crowdq/internal/testing"
)

const waitFor = 3 * time.Second

type harness struct {
	sched    *Scheduler
	device   *tu.FakeDevice
	fetcher  *tu.FakeFetcher
	store    *tu.MemoryStore
	speaker  *tu.FakeAnnouncer
	bus      *events.Bus
	settings *shared.Settings
}

type setupOpts struct {
	tick     time.Duration
	sayNames bool
	store    *tu.MemoryStore
}

func setup(t *testing.T, o setupOpts) *harness {
	t.Helper()

	if o.tick == 0 {
		o.tick = 10 * time.Millisecond
	}
	if o.store == nil {
		o.store = &tu.MemoryStore{}
	}

	h := &harness{
		device:   tu.NewFakeDevice(50),
		fetcher:  tu.NewFakeFetcher(),
		store:    o.store,
		speaker:  &tu.FakeAnnouncer{},
		bus:      events.NewBus(),
		settings: &shared.Settings{LikeThreshold: 2, DislikeThreshold: 2, SayNames: o.sayNames, DuckFactor: 0.6},
	}

	r, err := resolver.New(h.fetcher, resolver.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("resolver.New() error = %v", err)
	}

	h.sched = New(Options{TickInterval: o.tick, EndPosition: 0.997}, Deps{
		Device:    h.device,
		Resolver:  r,
		Settings:  h.settings,
		Announcer: h.speaker,
		Store:     h.store,
		Publisher: h.bus,
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.sched.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.sched.Done()
	})
}

func newTrack(id string, urls ...string) *models.Track {
	if len(urls) == 0 {
		urls = []string{"ok-" + id}
	}
	candidates := make([]models.Candidate, 0, len(urls))
	for _, u := range urls {
		candidates = append(candidates, models.Candidate{URL: u, Codec: "mp3", Bitrate: 320})
	}
	return models.NewTrack(shared.GenerateID(), id, "track "+id, candidates)
}

func (h *harness) add(t *testing.T, tr *models.Track) int {
	t.Helper()
	pos, err := Call(context.Background(), h.sched, func(s *State) (int, error) {
		return s.Queue.Add(tr)
	})
	if err != nil {
		t.Fatalf("add %s: %v", tr.ID, err)
	}
	return pos
}

type slot struct {
	phase   Phase
	current string
	pending []string
}

func (h *harness) slot(t *testing.T) slot {
	t.Helper()
	got, err := Call(context.Background(), h.sched, func(s *State) (slot, error) {
		out := slot{phase: s.Phase()}
		if c := s.Queue.Current(); c != nil {
			out.current = c.ID
		}
		for _, p := range s.Queue.Pending() {
			out.pending = append(out.pending, p.ID)
		}
		return out, nil
	})
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	return got
}

func (h *harness) waitPlaying(t *testing.T, id string) {
	t.Helper()
	tu.Eventually(t, waitFor, func() bool {
		s := h.slot(t)
		return s.phase == Playing && s.current == id
	}, "track "+id+" playing")
}

func TestBridge(t *testing.T) {
	t.Run("add returns positions", func(t *testing.T) {
		h := setup(t, setupOpts{tick: time.Hour})
		h.start(t)

		if pos := h.add(t, newTrack("1")); pos != 1 {
			t.Errorf("first add = %d, want 1", pos)
		}
		if pos := h.add(t, newTrack("2")); pos != 2 {
			t.Errorf("second add = %d, want 2", pos)
		}
	})

	t.Run("concurrent submits never interleave", func(t *testing.T) {
		h := setup(t, setupOpts{tick: time.Hour})
		h.start(t)

		const n = 64
		counter := 0
		positions := make([]int, n)

		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pos, err := Call(context.Background(), h.sched, func(s *State) (int, error) {
					v := counter
					time.Sleep(100 * time.Microsecond)
					counter = v + 1
					return s.Queue.Add(newTrack(fmt.Sprint(i)))
				})
				if err != nil {
					t.Errorf("Call() error = %v", err)
				}
				positions[i] = pos
			}()
		}
		wg.Wait()

		if counter != n {
			t.Errorf("lost updates: counter = %d, want %d", counter, n)
		}
		sort.Ints(positions)
		for i, p := range positions {
			if p != i+1 {
				t.Fatalf("positions not a permutation of 1..%d: %v", n, positions)
			}
		}
	})

	t.Run("concurrent votes match a serial order", func(t *testing.T) {
		h := setup(t, setupOpts{tick: time.Hour})
		h.start(t)
		for _, id := range []string{"1", "2", "3"} {
			h.add(t, newTrack(id))
		}

		var wg sync.WaitGroup
		for _, voter := range []string{"A", "B", "C", "D"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				Call(context.Background(), h.sched, func(s *State) (playlist.VoteResult, error) {
					return s.Queue.Dislike(voter, "2")
				})
			}()
		}
		wg.Wait()

		got := h.slot(t)
		if !slices.Equal(got.pending, []string{"1", "3"}) {
			t.Errorf("pending = %v, want [1 3]", got.pending)
		}
	})

	t.Run("operation errors propagate", func(t *testing.T) {
		h := setup(t, setupOpts{tick: time.Hour})
		h.start(t)

		_, err := Call(context.Background(), h.sched, func(s *State) (any, error) {
			return s.Queue.Like("", "1")
		})
		if !errors.Is(err, shared.ErrMissingVoter) {
			t.Errorf("expected ErrMissingVoter, got %v", err)
		}
	})

	t.Run("panics become errors", func(t *testing.T) {
		h := setup(t, setupOpts{tick: time.Hour})
		h.start(t)

		_, err := h.sched.Submit(context.Background(), func(s *State) (any, error) {
			panic("boom")
		})
		if !errors.Is(err, ErrOperationPanicked) {
			t.Errorf("expected ErrOperationPanicked, got %v", err)
		}
		if pos := h.add(t, newTrack("1")); pos != 1 {
			t.Error("loop should keep serving after a panic")
		}
	})

	t.Run("caller cancellation", func(t *testing.T) {
		h := setup(t, setupOpts{tick: time.Hour})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		if _, err := h.sched.Submit(ctx, func(*State) (any, error) { return nil, nil }); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded before Run, got %v", err)
		}
	})

	t.Run("stopped scheduler", func(t *testing.T) {
		h := setup(t, setupOpts{tick: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		go h.sched.Run(ctx)
		cancel()
		<-h.sched.Done()

		if _, err := h.sched.Submit(context.Background(), func(*State) (any, error) { return nil, nil }); !errors.Is(err, ErrStopped) {
			t.Errorf("expected ErrStopped, got %v", err)
		}
		if err := h.sched.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("expected ErrAlreadyRunning, got %v", err)
		}
	})
}

func TestRotation(t *testing.T) {
	t.Run("plays head and advances on completion", func(t *testing.T) {
		h := setup(t, setupOpts{})
		h.start(t)
		h.add(t, newTrack("1"))
		h.add(t, newTrack("2"))

		h.waitPlaying(t, "1")
		first := h.device.Loaded()
		h.device.SetPosition(0.998)

		h.waitPlaying(t, "2")
		tu.AssertFileMissing(t, first)
	})

	t.Run("empties when the queue runs out", func(t *testing.T) {
		h := setup(t, setupOpts{})
		h.start(t)
		h.add(t, newTrack("1"))
		h.waitPlaying(t, "1")

		h.device.Stop(context.Background())
		tu.Eventually(t, waitFor, func() bool { return h.slot(t).phase == Empty }, "empty slot")

		h.add(t, newTrack("2"))
		h.waitPlaying(t, "2")
	})

	t.Run("disliked current track is skipped", func(t *testing.T) {
		h := setup(t, setupOpts{})
		h.start(t)
		h.add(t, newTrack("5"))
		h.add(t, newTrack("6"))
		h.waitPlaying(t, "5")

		for _, voter := range []string{"A", "B"} {
			if _, err := Call(context.Background(), h.sched, func(s *State) (playlist.VoteResult, error) {
				return s.Queue.Dislike(voter, "5")
			}); err != nil {
				t.Fatal(err)
			}
		}

		found, _ := Call(context.Background(), h.sched, func(s *State) (int, error) {
			return len(s.Queue.FindAll("5")), nil
		})
		if found != 0 {
			t.Errorf("FindAll(5) returned %d tracks", found)
		}

		h.waitPlaying(t, "6")
		if h.device.Stops() == 0 {
			t.Error("device should be stopped before advancing")
		}
	})

	t.Run("unresolvable tracks are skipped", func(t *testing.T) {
		h := setup(t, setupOpts{})
		h.fetcher.SetFail("bad-1", true)
		h.fetcher.SetFail("bad-2", true)
		h.start(t)

		h.add(t, newTrack("1", "bad-1", "bad-2"))
		h.add(t, newTrack("2"))

		h.waitPlaying(t, "2")
		if got := h.slot(t).pending; len(got) != 0 {
			t.Errorf("pending = %v", got)
		}
	})

	t.Run("survives a panicking tick", func(t *testing.T) {
		h := setup(t, setupOpts{})
		h.start(t)
		h.add(t, newTrack("1"))
		h.add(t, newTrack("2"))
		h.waitPlaying(t, "1")

		h.device.SetPanic()
		time.Sleep(50 * time.Millisecond)
		h.device.SetPosition(1)

		h.waitPlaying(t, "2")
	})

	t.Run("announces with ducking", func(t *testing.T) {
		h := setup(t, setupOpts{sayNames: true})
		h.start(t)
		h.add(t, newTrack("1"))
		h.waitPlaying(t, "1")

		tu.Eventually(t, waitFor, func() bool {
			return slices.Equal(h.speaker.Texts(), []string{"track 1"}) && len(h.device.Volumes()) == 2
		}, "announcement")

		if got := h.device.Volumes(); !slices.Equal(got, []int{30, 50}) {
			t.Errorf("volumes = %v, want [30 50]", got)
		}
	})

	t.Run("emits track events", func(t *testing.T) {
		h := setup(t, setupOpts{})
		ch, cancel := h.bus.Subscribe(32)
		defer cancel()
		h.start(t)
		h.add(t, newTrack("9"))

		deadline := time.After(waitFor)
		for {
			select {
			case e := <-ch:
				if e.Type == events.TrackStarted && e.Track != nil && e.Track.ID == "9" {
					return
				}
			case <-deadline:
				t.Fatal("no track_started event")
			}
		}
	})
}

func TestPersistence(t *testing.T) {
	t.Run("saves the pending sequence", func(t *testing.T) {
		h := setup(t, setupOpts{tick: time.Hour})
		h.start(t)
		h.add(t, newTrack("1"))
		h.add(t, newTrack("2"))

		tu.Eventually(t, waitFor, func() bool {
			entries, _ := h.store.Load(context.Background())
			return len(entries) == 2
		}, "snapshot with two entries")
	})

	t.Run("final snapshot survives shutdown", func(t *testing.T) {
		store := &tu.MemoryStore{Delay: 20 * time.Millisecond}
		h := setup(t, setupOpts{tick: time.Hour, store: store})

		ctx, cancel := context.WithCancel(context.Background())
		go h.sched.Run(ctx)

		h.add(t, newTrack("1"))
		h.add(t, newTrack("2"))
		time.Sleep(5 * time.Millisecond)
		cancel()

		select {
		case <-h.sched.Done():
		case <-time.After(waitFor):
			t.Fatal("scheduler did not stop")
		}

		entries, _ := store.Load(context.Background())
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.TrackID)
		}
		if !slices.Equal(ids, []string{"1", "2"}) {
			t.Errorf("saved entries = %v, want [1 2]", ids)
		}
	})

	t.Run("restores on start", func(t *testing.T) {
		store := &tu.MemoryStore{}
		store.Save(context.Background(), []models.SnapshotEntry{
			newTrack("7").Snapshot(1),
			newTrack("8").Snapshot(2),
		})

		h := setup(t, setupOpts{store: store})
		h.start(t)

		h.waitPlaying(t, "7")
		if got := h.slot(t).pending; !slices.Equal(got, []string{"8"}) {
			t.Errorf("pending = %v", got)
		}
	})
}

func TestStateSet(t *testing.T) {
	h := setup(t, setupOpts{tick: time.Hour})
	h.start(t)

	like, err := Call(context.Background(), h.sched, func(s *State) (int, error) {
		if err := s.Set("like_threshold", "4"); err != nil {
			return 0, err
		}
		l, _ := s.Queue.Thresholds()
		return l, nil
	})
	if err != nil || like != 4 {
		t.Errorf("threshold = %d, %v; want 4", like, err)
	}

	_, err = Call(context.Background(), h.sched, func(s *State) (any, error) {
		return nil, s.Set("bogus", "1")
	})
	if !errors.Is(err, shared.ErrUnknownSetting) {
		t.Errorf("expected ErrUnknownSetting, got %v", err)
	}
}
