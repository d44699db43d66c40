package playlist

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

func track(id string) *models.Track {
	return models.NewTrack(shared.GenerateID(), id, "track "+id, []models.Candidate{{URL: "http://example.com/" + id, Bitrate: 320}})
}

func ids(tracks []*models.Track) []string {
	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.ID)
	}
	return out
}

type recorder struct {
	changes  int
	released []string
}

func newQueue(like, dislike int) (*Queue, *recorder) {
	rec := &recorder{}
	q := New(Options{
		LikeThreshold:    like,
		DislikeThreshold: dislike,
		OnChange:         func() { rec.changes++ },
		OnRelease:        func(t *models.Track) { rec.released = append(rec.released, t.EntryID) },
	})
	return q, rec
}

// fill adds tracks with the given ids and advances the first into the current slot when playing is set.
func fill(t *testing.T, q *Queue, playing bool, trackIDs ...string) {
	t.Helper()
	for _, id := range trackIDs {
		if _, err := q.Add(track(id)); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}
	if playing {
		q.Advance()
	}
}

func TestQueueAdd(t *testing.T) {
	t.Run("returns one-based positions", func(t *testing.T) {
		q, rec := newQueue(2, 2)

		first, err := q.Add(track("1"))
		if err != nil || first != 1 {
			t.Fatalf("first Add() = %d, %v; want 1", first, err)
		}

		second, err := q.Add(track("2"))
		if err != nil || second != 2 {
			t.Fatalf("second Add() = %d, %v; want 2", second, err)
		}

		if rec.changes != 2 {
			t.Errorf("expected 2 change notifications, got %d", rec.changes)
		}
	})

	t.Run("rejects invalid tracks", func(t *testing.T) {
		q, _ := newQueue(2, 2)
		if _, err := q.Add(nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("Add(nil) error = %v", err)
		}
		if _, err := q.Add(models.NewTrack("", "1", "x", nil)); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("Add(no entry id) error = %v", err)
		}
		if q.Len() != 0 {
			t.Errorf("invalid tracks should not be queued, len = %d", q.Len())
		}
	})

	t.Run("duplicates are tracked independently", func(t *testing.T) {
		q, _ := newQueue(2, 2)
		fill(t, q, false, "9", "9")

		matches := q.FindAll("9")
		if len(matches) != 2 || matches[0].EntryID == matches[1].EntryID {
			t.Fatalf("expected two distinct instances, got %v", matches)
		}
	})
}

func TestQueueRemove(t *testing.T) {
	t.Run("removes every pending match", func(t *testing.T) {
		q, rec := newQueue(2, 2)
		fill(t, q, false, "1", "2", "1", "3")

		if n := q.Remove("1"); n != 2 {
			t.Errorf("Remove() = %d, want 2", n)
		}
		if got := ids(q.Pending()); !slices.Equal(got, []string{"2", "3"}) {
			t.Errorf("pending = %v", got)
		}
		if len(rec.released) != 2 {
			t.Errorf("expected 2 releases, got %d", len(rec.released))
		}
	})

	t.Run("current match requests skip", func(t *testing.T) {
		q, rec := newQueue(2, 2)
		fill(t, q, true, "5", "6")
		released := len(rec.released)

		if n := q.Remove("5"); n != 1 {
			t.Errorf("Remove() = %d, want 1", n)
		}
		if !q.SkipRequested() {
			t.Error("expected skip to be requested")
		}
		if q.Current() != nil {
			t.Error("removed current should be hidden")
		}
		if q.Outgoing() == nil || q.Outgoing().ID != "5" {
			t.Error("outgoing track should stay in the slot until advance")
		}
		if len(rec.released) != released {
			t.Error("current track must not be released before advance")
		}
		if q.Len() != 1 {
			t.Errorf("pending should be untouched, len = %d", q.Len())
		}
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		q, rec := newQueue(2, 2)
		fill(t, q, true, "1", "2")
		changes := rec.changes

		if n := q.Remove("404"); n != 0 {
			t.Errorf("Remove() = %d, want 0", n)
		}
		if rec.changes != changes {
			t.Error("no-op removal should not trigger persistence")
		}
		if q.SkipRequested() {
			t.Error("no-op removal should not request skip")
		}
	})

	t.Run("RemoveEntry removes a single instance", func(t *testing.T) {
		q, _ := newQueue(2, 2)
		fill(t, q, false, "1", "1")
		target := q.Pending()[1]

		if !q.RemoveEntry(target.EntryID) {
			t.Fatal("RemoveEntry() = false")
		}
		if q.Len() != 1 || q.Head().EntryID == target.EntryID {
			t.Error("wrong instance removed")
		}
		if q.RemoveEntry(target.EntryID) {
			t.Error("second RemoveEntry() should report false")
		}
	})
}

func TestQueueFindAll(t *testing.T) {
	q, _ := newQueue(2, 2)
	fill(t, q, true, "1", "2", "1", "1")

	matches := q.FindAll("1")
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0] != q.Current() {
		t.Error("current track should come first")
	}
	pending := q.Pending()
	if matches[1] != pending[1] || matches[2] != pending[2] {
		t.Error("pending matches should follow queue order")
	}
}

func TestQueueLike(t *testing.T) {
	t.Run("promotes after threshold and resets likers", func(t *testing.T) {
		q, _ := newQueue(2, 2)
		fill(t, q, false, "5", "6", "7")
		target := q.Pending()[2]
		target.Dislike("E")

		if res, err := q.Like("C", "7"); err != nil || res.Promoted {
			t.Fatalf("first Like() = %+v, %v; want no promotion", res, err)
		}

		res, err := q.Like("D", "7")
		if err != nil {
			t.Fatalf("Like() error = %v", err)
		}
		if !res.Promoted {
			t.Error("expected promotion")
		}
		if got := ids(q.Pending()); !slices.Equal(got, []string{"5", "7", "6"}) {
			t.Errorf("pending = %v, want [5 7 6]", got)
		}
		if target.Likes() != 0 {
			t.Errorf("likers should be reset, got %d", target.Likes())
		}
		if !target.DislikedBy("E") {
			t.Error("dislikers must be unaffected by promotion")
		}
	})

	t.Run("one position per vote", func(t *testing.T) {
		q, _ := newQueue(1, 2)
		fill(t, q, false, "1", "2", "3")

		q.Like("A", "3")
		if got := ids(q.Pending()); !slices.Equal(got, []string{"1", "3", "2"}) {
			t.Errorf("pending = %v, want [1 3 2]", got)
		}
	})

	t.Run("head cannot be promoted", func(t *testing.T) {
		q, _ := newQueue(1, 2)
		fill(t, q, false, "1", "2")

		res, _ := q.Like("A", "1")
		if res.Promoted {
			t.Error("head should not be promoted")
		}
		if got := ids(q.Pending()); !slices.Equal(got, []string{"1", "2"}) {
			t.Errorf("pending = %v", got)
		}
		if q.Head().Likes() != 1 {
			t.Error("likers of the head are kept")
		}
	})

	t.Run("current track is never promoted", func(t *testing.T) {
		q, _ := newQueue(1, 2)
		fill(t, q, true, "1", "2", "1")

		res, _ := q.Like("A", "1")
		if res.Matched != 2 || res.Promoted {
			t.Errorf("Like() = %+v; want 2 matches without promotion", res)
		}
		if got := ids(q.Pending()); !slices.Equal(got, []string{"2", "1"}) {
			t.Errorf("pending = %v", got)
		}
	})

	t.Run("only the first match is promoted", func(t *testing.T) {
		q, _ := newQueue(1, 2)
		fill(t, q, false, "1", "9", "2", "9")

		q.Like("A", "9")
		if got := ids(q.Pending()); !slices.Equal(got, []string{"9", "1", "2", "9"}) {
			t.Errorf("pending = %v", got)
		}
		last := q.Pending()[3]
		if !last.LikedBy("A") {
			t.Error("vote should be recorded on every match")
		}
	})

	t.Run("like clears dislike", func(t *testing.T) {
		q, _ := newQueue(5, 5)
		fill(t, q, true, "1")

		q.Dislike("A", "")
		q.Like("A", "")
		c := q.Current()
		if !c.LikedBy("A") || c.DislikedBy("A") {
			t.Error("voter must be in at most one set")
		}
	})

	t.Run("defaults to current", func(t *testing.T) {
		q, _ := newQueue(5, 5)
		fill(t, q, true, "1", "2")

		res, err := q.Like("A", "")
		if err != nil || res.Matched != 1 {
			t.Fatalf("Like() = %+v, %v", res, err)
		}
		if !q.Current().LikedBy("A") {
			t.Error("current should receive the like")
		}
	})

	t.Run("no current and no id is a no-op", func(t *testing.T) {
		q, rec := newQueue(5, 5)
		fill(t, q, false, "1")
		changes := rec.changes

		res, err := q.Like("A", "")
		if err != nil || res.Matched != 0 {
			t.Errorf("Like() = %+v, %v", res, err)
		}
		if rec.changes != changes {
			t.Error("no-op vote should not trigger persistence")
		}
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		q, _ := newQueue(5, 5)
		fill(t, q, false, "1")

		res, err := q.Like("A", "404")
		if err != nil || res.Matched != 0 {
			t.Errorf("Like() = %+v, %v", res, err)
		}
	})

	t.Run("missing voter", func(t *testing.T) {
		q, _ := newQueue(5, 5)
		fill(t, q, true, "1")

		if _, err := q.Like("", "1"); !errors.Is(err, shared.ErrMissingVoter) {
			t.Errorf("expected ErrMissingVoter, got %v", err)
		}
	})
}

func TestQueueDislike(t *testing.T) {
	t.Run("current track evicted by two voters", func(t *testing.T) {
		q, _ := newQueue(2, 2)
		fill(t, q, true, "5", "6")

		q.Dislike("A", "5")
		if len(q.FindAll("5")) != 1 {
			t.Fatal("one dislike should not evict")
		}

		res, err := q.Dislike("B", "5")
		if err != nil || res.Evicted != 1 {
			t.Fatalf("Dislike() = %+v, %v", res, err)
		}
		if len(q.FindAll("5")) != 0 {
			t.Error("evicted track should not be found")
		}
		if !q.SkipRequested() {
			t.Error("expected skip request")
		}

		next := q.Advance()
		if next == nil || next.ID != "6" {
			t.Errorf("advance should pull the next pending track, got %v", next)
		}
	})

	t.Run("pending track evicted and released", func(t *testing.T) {
		q, rec := newQueue(2, 2)
		fill(t, q, false, "1", "2", "3")
		target := q.Pending()[1]
		target.Resource = "/tmp/2.mp3"

		q.Dislike("A", "2")
		q.Dislike("B", "2")

		if got := ids(q.Pending()); !slices.Equal(got, []string{"1", "3"}) {
			t.Errorf("pending = %v", got)
		}
		if !slices.Contains(rec.released, target.EntryID) {
			t.Error("evicted track should be released")
		}
		if target.Resource != "" {
			t.Error("resource should be cleared")
		}
	})

	t.Run("each instance judged by its own count", func(t *testing.T) {
		q, _ := newQueue(2, 2)
		fill(t, q, false, "9")
		q.Dislike("A", "9")
		fill(t, q, false, "9")

		res, _ := q.Dislike("B", "9")
		if res.Matched != 2 || res.Evicted != 1 {
			t.Errorf("Dislike() = %+v; want 2 matched, 1 evicted", res)
		}
		remaining := q.FindAll("9")
		if len(remaining) != 1 || remaining[0].Dislikes() != 1 {
			t.Errorf("expected the newer instance to survive with one dislike")
		}
	})

	t.Run("every instance over threshold is evicted", func(t *testing.T) {
		q, _ := newQueue(1, 1)
		fill(t, q, true, "9", "9", "1", "9")

		res, _ := q.Dislike("A", "9")
		if res.Evicted != 3 {
			t.Errorf("Evicted = %d, want 3", res.Evicted)
		}
		if got := ids(q.Pending()); !slices.Equal(got, []string{"1"}) {
			t.Errorf("pending = %v", got)
		}
		if q.Current() != nil {
			t.Error("current should be outgoing")
		}
	})

	t.Run("dislike clears like", func(t *testing.T) {
		q, _ := newQueue(5, 5)
		fill(t, q, false, "1", "2")

		q.Like("A", "2")
		q.Dislike("A", "2")
		tr := q.FindAll("2")[0]
		if tr.LikedBy("A") || !tr.DislikedBy("A") {
			t.Error("voter must be in at most one set")
		}
	})
}

func TestQueueAdvance(t *testing.T) {
	q, rec := newQueue(2, 2)
	fill(t, q, false, "1", "2")

	first := q.Advance()
	first.Resource = "/tmp/1.mp3"
	if first.ID != "1" || q.Len() != 1 {
		t.Fatalf("Advance() = %v, len %d", first.ID, q.Len())
	}

	second := q.Advance()
	if second.ID != "2" {
		t.Errorf("Advance() = %v", second.ID)
	}
	if !slices.Contains(rec.released, first.EntryID) {
		t.Error("previous current should be released")
	}

	if q.Advance() != nil {
		t.Error("advance on empty queue should return nil")
	}
	if q.Current() != nil || q.SkipRequested() {
		t.Error("slot should be empty")
	}
}

func TestQueueView(t *testing.T) {
	q, _ := newQueue(5, 5)
	for i := range 20 {
		if _, err := q.Add(track(fmt.Sprint(i))); err != nil {
			t.Fatal(err)
		}
	}
	q.Advance()
	q.Like("V", "3")

	tests := []struct {
		name      string
		page      int
		wantPage  int
		wantCount int
		wantFirst int
	}{
		{name: "first page", page: 1, wantPage: 1, wantCount: 15, wantFirst: 1},
		{name: "second page", page: 2, wantPage: 2, wantCount: 4, wantFirst: 16},
		{name: "clamped high", page: 9, wantPage: 2, wantCount: 4, wantFirst: 16},
		{name: "clamped low", page: 0, wantPage: 1, wantCount: 15, wantFirst: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := q.View("V", tt.page, 15)
			if view.Page != tt.wantPage || view.Pages != 2 || view.Total != 19 {
				t.Errorf("page %d/%d total %d", view.Page, view.Pages, view.Total)
			}
			if len(view.Pending) != tt.wantCount {
				t.Fatalf("expected %d entries, got %d", tt.wantCount, len(view.Pending))
			}
			if view.Pending[0].Position != tt.wantFirst {
				t.Errorf("first position = %d, want %d", view.Pending[0].Position, tt.wantFirst)
			}
			if view.Current == nil || view.Current.ID != "0" {
				t.Error("current should be included")
			}
		})
	}

	view := q.View("V", 1, 15)
	if !view.Pending[2].Liked || view.Pending[2].Likes != 1 {
		t.Errorf("vote membership not reported: %+v", view.Pending[2])
	}
}

func TestQueueSnapshotRestore(t *testing.T) {
	q, _ := newQueue(5, 5)
	fill(t, q, true, "1", "2", "3")
	q.Like("A", "3")
	q.Pending()[0].Resource = "/tmp/2.mp3"

	entries := q.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("snapshot should only hold pending tracks, got %d", len(entries))
	}

	restored, _ := newQueue(5, 5)
	slices.Reverse(entries)
	if n := restored.Restore(entries); n != 2 {
		t.Fatalf("Restore() = %d", n)
	}

	pending := restored.Pending()
	if got := ids(pending); !slices.Equal(got, []string{"2", "3"}) {
		t.Errorf("restored order = %v", got)
	}
	if pending[0].Resource != "" {
		t.Error("restored tracks must not carry resources")
	}
	if !pending[1].LikedBy("A") {
		t.Error("vote state should survive restore")
	}
}
