package playlist

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Options configures a [Queue].
type Options struct {
	LikeThreshold    int
	DislikeThreshold int
	Logger           *log.Logger
	OnChange         func()              // OnChange runs after every mutation that affects the persisted snapshot
	OnRelease        func(*models.Track) // OnRelease frees the resource of a track leaving the queue
}

// VoteResult summarizes what a like or dislike did.
type VoteResult struct {
	Matched  int  // Matched is the number of instances the vote was recorded on
	Promoted bool // Promoted is set when the first pending match moved up one position
	Evicted  int  // Evicted is the number of instances removed or marked for skipping
}

// Queue holds the pending sequence and the current slot.
//
// The current track is never part of the pending sequence. When it is removed or evicted it becomes
// outgoing: hidden from queries and kept only until the scheduler advances past it.
type Queue struct {
	pending  []*models.Track
	current  *models.Track
	outgoing bool
	skip     bool

	likeThreshold    int
	dislikeThreshold int

	logger    *log.Logger
	onChange  func()
	onRelease func(*models.Track)
}

// New creates an empty [Queue]. Thresholds below 1 are raised to 1.
func New(opts Options) *Queue {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	q := &Queue{
		logger:    shared.WithLogger(logger, "component", "playlist"),
		onChange:  opts.OnChange,
		onRelease: opts.OnRelease,
	}
	q.SetThresholds(opts.LikeThreshold, opts.DislikeThreshold)
	return q
}

// SetThresholds replaces the queue-wide vote thresholds. Existing vote counts are not re-evaluated.
func (q *Queue) SetThresholds(like, dislike int) {
	q.likeThreshold = max(like, 1)
	q.dislikeThreshold = max(dislike, 1)
}

// Thresholds returns the like and dislike thresholds.
func (q *Queue) Thresholds() (like, dislike int) {
	return q.likeThreshold, q.dislikeThreshold
}

// Add appends t to the tail and returns its 1-based position.
func (q *Queue) Add(t *models.Track) (int, error) {
	if t == nil {
		return 0, fmt.Errorf("%w: nil track", shared.ErrInvalidInput)
	}
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	q.pending = append(q.pending, t)
	position := len(q.pending)
	q.logger.Info("track added", "track", t.Name, "id", t.ID, "position", position)
	q.changed()
	return position, nil
}

// Remove deletes every pending entry matching id. A matching current track is marked outgoing and a
// skip is requested instead, so the scheduler removes it on its next advance.
//
// It returns the number of instances affected; zero is logged and otherwise ignored.
func (q *Queue) Remove(id string) int {
	n := 0
	kept := q.pending[:0]
	for _, t := range q.pending {
		if t.ID == id {
			q.release(t)
			n++
			continue
		}
		kept = append(kept, t)
	}
	clear(q.pending[len(kept):])
	q.pending = kept

	if q.liveCurrent() != nil && q.current.ID == id {
		q.evictCurrent()
		n++
	}

	if n == 0 {
		q.logger.Warn("remove ignored, no such track", "id", id)
		return 0
	}

	q.logger.Info("track removed", "id", id, "instances", n)
	q.changed()
	return n
}

// RemoveEntry deletes the single instance with the given entry id, wherever it is.
func (q *Queue) RemoveEntry(entryID string) bool {
	if i := q.indexOf(entryID); i >= 0 {
		t := q.pending[i]
		q.pending = slices.Delete(q.pending, i, i+1)
		q.release(t)
		q.logger.Info("entry removed", "track", t.Name, "entry", entryID)
		q.changed()
		return true
	}

	if c := q.liveCurrent(); c != nil && c.EntryID == entryID {
		q.evictCurrent()
		q.logger.Info("current entry removed", "track", c.Name, "entry", entryID)
		q.changed()
		return true
	}

	return false
}

// FindAll returns the current track if it matches id, followed by every pending match in queue order.
func (q *Queue) FindAll(id string) []*models.Track {
	var matches []*models.Track
	if c := q.liveCurrent(); c != nil && c.ID == id {
		matches = append(matches, c)
	}
	for _, t := range q.pending {
		if t.ID == id {
			matches = append(matches, t)
		}
	}
	return matches
}

// Like records voter's like on every instance of id. An empty id means the current track.
//
// Only the first match can be promoted: when it is pending and reaches the like threshold it swaps
// with its predecessor and its likers are cleared. The head of the pending sequence stays put.
func (q *Queue) Like(voter, id string) (VoteResult, error) {
	matches, err := q.voteTargets(voter, id)
	if err != nil || len(matches) == 0 {
		return VoteResult{}, err
	}

	for _, t := range matches {
		t.Like(voter)
	}
	result := VoteResult{Matched: len(matches)}

	first := matches[0]
	if i := q.indexOf(first.EntryID); i > 0 && first.Likes() >= q.likeThreshold {
		q.pending[i-1], q.pending[i] = q.pending[i], q.pending[i-1]
		first.ResetLikes()
		result.Promoted = true
		q.logger.Info("track promoted", "track", first.Name, "position", i)
	}

	q.changed()
	return result, nil
}

// Dislike records voter's dislike on every instance of id. An empty id means the current track.
//
// Every instance whose own dislike count reaches the threshold is evicted: pending instances are
// removed at once, the current track is marked outgoing and skipped on the next tick.
func (q *Queue) Dislike(voter, id string) (VoteResult, error) {
	matches, err := q.voteTargets(voter, id)
	if err != nil || len(matches) == 0 {
		return VoteResult{}, err
	}

	for _, t := range matches {
		t.Dislike(voter)
	}
	result := VoteResult{Matched: len(matches)}

	for _, t := range matches {
		if t.Dislikes() < q.dislikeThreshold {
			continue
		}

		if t == q.current {
			q.evictCurrent()
		} else if i := q.indexOf(t.EntryID); i >= 0 {
			q.pending = slices.Delete(q.pending, i, i+1)
			q.release(t)
		}
		result.Evicted++
		q.logger.Info("track evicted by dislikes", "track", t.Name, "dislikes", t.Dislikes())
	}

	q.changed()
	return result, nil
}

func (q *Queue) voteTargets(voter, id string) ([]*models.Track, error) {
	if voter == "" {
		return nil, shared.ErrMissingVoter
	}

	if id == "" {
		c := q.liveCurrent()
		if c == nil {
			q.logger.Warn("vote ignored, nothing is playing", "voter", voter)
			return nil, nil
		}
		id = c.ID
	}

	matches := q.FindAll(id)
	if len(matches) == 0 {
		q.logger.Warn("vote ignored, no such track", "voter", voter, "id", id)
	}
	return matches, nil
}

// Current returns the current track, or nil when the slot is empty or its track is outgoing.
func (q *Queue) Current() *models.Track {
	return q.liveCurrent()
}

// Outgoing returns the track in the current slot even when it was removed or evicted.
func (q *Queue) Outgoing() *models.Track {
	return q.current
}

// SkipRequested reports whether the current track should be abandoned on the next tick.
func (q *Queue) SkipRequested() bool {
	return q.skip
}

// Head returns the first pending track without removing it.
func (q *Queue) Head() *models.Track {
	if len(q.pending) == 0 {
		return nil
	}
	return q.pending[0]
}

// Len returns the number of pending tracks.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Pending returns a copy of the pending sequence.
func (q *Queue) Pending() []*models.Track {
	return slices.Clone(q.pending)
}

// Entry returns the queued instance with entryID, searching the current slot first.
func (q *Queue) Entry(entryID string) *models.Track {
	if c := q.liveCurrent(); c != nil && c.EntryID == entryID {
		return c
	}
	if i := q.indexOf(entryID); i >= 0 {
		return q.pending[i]
	}
	return nil
}

// Advance releases the track in the current slot and moves the pending head into it.
//
// It returns the new current track, or nil when the pending sequence is empty.
func (q *Queue) Advance() *models.Track {
	if q.current != nil {
		q.release(q.current)
	}
	q.current, q.outgoing, q.skip = nil, false, false

	if len(q.pending) == 0 {
		q.changed()
		return nil
	}

	q.current = q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.changed()
	return q.current
}

// View returns a read-only page of the queue as seen by voter. page is 1-based and clamped.
func (q *Queue) View(voter string, page, perPage int) models.QueueView {
	if perPage < 1 {
		perPage = 15
	}

	total := len(q.pending)
	pages := max((total+perPage-1)/perPage, 1)
	page = min(max(page, 1), pages)

	view := models.QueueView{Total: total, Page: page, Pages: pages, Pending: []models.TrackView{}}
	if c := q.liveCurrent(); c != nil {
		cv := c.View(voter, 0)
		view.Current = &cv
	}

	start := (page - 1) * perPage
	end := min(start+perPage, total)
	for i := start; i < end; i++ {
		view.Pending = append(view.Pending, q.pending[i].View(voter, i+1))
	}
	return view
}

// Snapshot returns the persistable pending sequence. The current slot is never included.
func (q *Queue) Snapshot() []models.SnapshotEntry {
	entries := make([]models.SnapshotEntry, 0, len(q.pending))
	for i, t := range q.pending {
		entries = append(entries, t.Snapshot(i+1))
	}
	return entries
}

// Restore appends snapshot entries to the pending sequence in position order.
// Restored tracks carry no resource and are resolved again when needed.
func (q *Queue) Restore(entries []models.SnapshotEntry) int {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b models.SnapshotEntry) int { return a.Position - b.Position })

	n := 0
	for _, e := range sorted {
		t := e.Track()
		if err := t.Validate(); err != nil {
			q.logger.Warn("skipping invalid snapshot entry", "entry", e.EntryID, "error", err)
			continue
		}
		q.pending = append(q.pending, t)
		n++
	}

	if n > 0 {
		q.logger.Info("queue restored", "tracks", n)
	}
	return n
}

func (q *Queue) liveCurrent() *models.Track {
	if q.outgoing {
		return nil
	}
	return q.current
}

func (q *Queue) evictCurrent() {
	q.outgoing = true
	q.skip = true
}

func (q *Queue) indexOf(entryID string) int {
	return slices.IndexFunc(q.pending, func(t *models.Track) bool { return t.EntryID == entryID })
}

func (q *Queue) release(t *models.Track) {
	if q.onRelease != nil {
		q.onRelease(t)
	}
	t.Resource = ""
}

func (q *Queue) changed() {
	if q.onChange != nil {
		q.onChange()
	}
}
