// package models defines the data model for the rotation queue
package models

import (
	"fmt"
	"sort"
	"strings"
)

// Candidate is one ranked way of turning a [Track] into a local file.
//
// Candidates are plain descriptors so they survive a snapshot; the resolver's fetcher executes them.
type Candidate struct {
	URL     string `json:"url"`
	Codec   string `json:"codec"`
	Bitrate int    `json:"bitrate_kbps"`
}

// Label returns a short human-readable description used in logs.
func (c Candidate) Label() string {
	if c.Codec == "" {
		return fmt.Sprintf("%dkbps", c.Bitrate)
	}
	return fmt.Sprintf("%s@%dkbps", c.Codec, c.Bitrate)
}

// Track is one queued or playing item together with its vote ledger.
//
// A voter identity appears in at most one of the liker and disliker sets.
type Track struct {
	EntryID    string      // EntryID identifies this queued instance; duplicates of ID get distinct entries
	ID         string      // ID is the external catalog identifier, not unique within the queue
	Name       string      // Name is the display name ("artists - title")
	Candidates []Candidate // Candidates are ranked best-first
	Resource   string      // Resource is the resolved local file, empty until resolved

	likers    map[string]struct{}
	dislikers map[string]struct{}
}

// NewTrack creates a [Track] with empty vote sets.
func NewTrack(entryID, id, name string, candidates []Candidate) *Track {
	return &Track{
		EntryID:    entryID,
		ID:         id,
		Name:       name,
		Candidates: candidates,
		likers:     make(map[string]struct{}),
		dislikers:  make(map[string]struct{}),
	}
}

func (t *Track) ensureLedger() {
	if t.likers == nil {
		t.likers = make(map[string]struct{})
	}
	if t.dislikers == nil {
		t.dislikers = make(map[string]struct{})
	}
}

// Like records a like from voter and withdraws any dislike from the same voter.
func (t *Track) Like(voter string) {
	t.ensureLedger()
	t.likers[voter] = struct{}{}
	delete(t.dislikers, voter)
}

// Dislike records a dislike from voter and withdraws any like from the same voter.
func (t *Track) Dislike(voter string) {
	t.ensureLedger()
	t.dislikers[voter] = struct{}{}
	delete(t.likers, voter)
}

// ResetLikes empties the liker set. Dislikers are untouched.
func (t *Track) ResetLikes() {
	t.likers = make(map[string]struct{})
}

// Likes returns the number of distinct likers.
func (t *Track) Likes() int { return len(t.likers) }

// Dislikes returns the number of distinct dislikers.
func (t *Track) Dislikes() int { return len(t.dislikers) }

// LikedBy reports whether voter is in the liker set.
func (t *Track) LikedBy(voter string) bool {
	_, ok := t.likers[voter]
	return ok
}

// DislikedBy reports whether voter is in the disliker set.
func (t *Track) DislikedBy(voter string) bool {
	_, ok := t.dislikers[voter]
	return ok
}

// Likers returns the liker identities in sorted order.
func (t *Track) Likers() []string { return sortedKeys(t.likers) }

// Dislikers returns the disliker identities in sorted order.
func (t *Track) Dislikers() []string { return sortedKeys(t.dislikers) }

// View copies the track into a [TrackView] for voter at the given 1-based position (0 for the current slot).
func (t *Track) View(voter string, position int) TrackView {
	return TrackView{
		EntryID:  t.EntryID,
		ID:       t.ID,
		Name:     t.Name,
		Position: position,
		Likes:    t.Likes(),
		Dislikes: t.Dislikes(),
		Liked:    voter != "" && t.LikedBy(voter),
		Disliked: voter != "" && t.DislikedBy(voter),
		Resolved: t.Resource != "",
	}
}

// Snapshot copies the persistable part of the track. The resource is deliberately dropped.
func (t *Track) Snapshot(position int) SnapshotEntry {
	candidates := make([]Candidate, len(t.Candidates))
	copy(candidates, t.Candidates)
	return SnapshotEntry{
		Position:   position,
		EntryID:    t.EntryID,
		TrackID:    t.ID,
		Name:       t.Name,
		Candidates: candidates,
		Likers:     t.Likers(),
		Dislikers:  t.Dislikers(),
	}
}

// Validate checks the fields required for a track to be queued.
func (t *Track) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("track id is required")
	}
	if t.EntryID == "" {
		return fmt.Errorf("track entry id is required")
	}
	return nil
}

// TrackView is a read-only copy of a [Track] as seen by one voter.
type TrackView struct {
	EntryID  string `json:"entry_id"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"` // 1-based pending position, 0 for the current slot
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	Liked    bool   `json:"liked"`
	Disliked bool   `json:"disliked"`
	Resolved bool   `json:"resolved"`
}

// QueueView is a paginated, read-only copy of the queue.
type QueueView struct {
	Current *TrackView  `json:"current,omitempty"`
	Pending []TrackView `json:"pending"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Pages   int         `json:"pages"`
}

// SnapshotEntry is the persisted form of one pending track.
type SnapshotEntry struct {
	Position   int         `json:"position"`
	EntryID    string      `json:"entry_id"`
	TrackID    string      `json:"track_id"`
	Name       string      `json:"name"`
	Candidates []Candidate `json:"candidates"`
	Likers     []string    `json:"likers,omitempty"`
	Dislikers  []string    `json:"dislikers,omitempty"`
}

// Track rebuilds an owned [Track] from the entry. The resource is always empty after a restore.
func (e SnapshotEntry) Track() *Track {
	t := NewTrack(e.EntryID, e.TrackID, e.Name, e.Candidates)
	for _, v := range e.Likers {
		t.likers[v] = struct{}{}
	}
	for _, v := range e.Dislikers {
		if _, ok := t.likers[v]; ok {
			continue
		}
		t.dislikers[v] = struct{}{}
	}
	return t
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
