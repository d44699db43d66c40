package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/playlist"
	"github.com/desertthunder/crowdq/internal/shared"
	"golang.org/x/time/rate"
)

// ErrExhausted is returned when every candidate of a track failed.
var ErrExhausted = errors.New("all download candidates failed")

// Options configures a [Resolver].
type Options struct {
	Dir               string  // Dir receives downloaded files, named by entry id
	AttemptsPerSecond float64 // AttemptsPerSecond paces candidate attempts; zero disables pacing
	Burst             int
	Logger            *log.Logger
}

// Job is an immutable copy of what a download needs to know about a track.
type Job struct {
	EntryID    string
	Name       string
	Candidates []models.Candidate
	Resource   string
	Preload    bool // Preload marks best-effort work whose failure must not evict the track
}

// Result is the outcome of [Resolver.Fetch].
type Result struct {
	EntryID  string
	Resource string
	Preload  bool
	Err      error
}

// Resolver downloads track candidates in ranked order.
type Resolver struct {
	fetcher Fetcher
	dir     string
	limiter *rate.Limiter
	logger  *log.Logger
}

// New creates a [Resolver] that writes into opts.Dir.
func New(fetcher Fetcher, opts Options) (*Resolver, error) {
	dir := opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	limit := rate.Inf
	if opts.AttemptsPerSecond > 0 {
		limit = rate.Limit(opts.AttemptsPerSecond)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	return &Resolver{
		fetcher: fetcher,
		dir:     dir,
		limiter: rate.NewLimiter(limit, max(opts.Burst, 1)),
		logger:  shared.WithLogger(logger, "component", "resolver"),
	}, nil
}

// JobFor copies t into a [Job].
func JobFor(t *models.Track, preload bool) Job {
	return Job{
		EntryID:    t.EntryID,
		Name:       t.Name,
		Candidates: append([]models.Candidate(nil), t.Candidates...),
		Resource:   t.Resource,
		Preload:    preload,
	}
}

// NeedsFetch reports whether t has no usable local resource.
func NeedsFetch(t *models.Track) bool {
	return t.Resource == "" || !exists(t.Resource)
}

// Path returns where the candidate for entryID is stored.
func (r *Resolver) Path(entryID string, c models.Candidate) string {
	ext := strings.ToLower(strings.TrimPrefix(c.Codec, "."))
	if !validExt(ext) {
		ext = "mp3"
	}
	return filepath.Join(r.dir, entryID+"."+ext)
}

// validExt reports whether ext is a non-empty run of lowercase letters and digits.
func validExt(ext string) bool {
	if ext == "" {
		return false
	}
	for _, c := range ext {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Fetch tries each candidate of job in order and returns the first resource that downloads.
//
// A still-existing resource is returned unchanged. Failed attempts leave no partial files behind.
// Fetch is safe to call from any goroutine.
func (r *Resolver) Fetch(ctx context.Context, job Job) Result {
	res := Result{EntryID: job.EntryID, Preload: job.Preload}

	if job.Resource != "" && exists(job.Resource) {
		res.Resource = job.Resource
		return res
	}

	for i, c := range job.Candidates {
		if err := r.limiter.Wait(ctx); err != nil {
			res.Err = err
			return res
		}

		dest := r.Path(job.EntryID, c)
		part := dest + ".part"
		if err := r.fetcher.Fetch(ctx, c, part); err != nil {
			os.Remove(part)
			r.logger.Debug("candidate failed", "track", job.Name, "candidate", c.Label(), "rank", i+1, "error", err)
			continue
		}

		if err := os.Rename(part, dest); err != nil {
			os.Remove(part)
			r.logger.Warn("failed to store download", "track", job.Name, "error", err)
			continue
		}

		r.logger.Info("track resolved", "track", job.Name, "candidate", c.Label(), "rank", i+1)
		res.Resource = dest
		return res
	}

	res.Err = fmt.Errorf("%w: %s (%d tried)", ErrExhausted, job.Name, len(job.Candidates))
	return res
}

// Apply folds res into q and returns the resolved track, or nil.
//
// An exhausted non-preload result evicts only that entry; other instances of the same catalog id
// stay queued since their own attempts may still succeed. A result for an entry that has left the
// queue has its file removed.
func (r *Resolver) Apply(q *playlist.Queue, res Result) *models.Track {
	t := q.Entry(res.EntryID)
	if t == nil {
		if res.Resource != "" {
			r.remove(res.Resource)
		}
		return nil
	}

	if res.Err != nil {
		if res.Preload || errors.Is(res.Err, context.Canceled) {
			r.logger.Debug("preload failed", "track", t.Name, "error", res.Err)
			return nil
		}
		r.logger.Warn("evicting unplayable track", "track", t.Name, "error", res.Err)
		q.RemoveEntry(res.EntryID)
		return nil
	}

	t.Resource = res.Resource
	return t
}

// Resolve fetches and applies on the calling goroutine.
func (r *Resolver) Resolve(ctx context.Context, q *playlist.Queue, t *models.Track) *models.Track {
	return r.Apply(q, r.Fetch(ctx, JobFor(t, false)))
}

// Preload returns a job for the pending head when it still needs downloading.
func (r *Resolver) Preload(q *playlist.Queue) (Job, bool) {
	head := q.Head()
	if head == nil || !NeedsFetch(head) {
		return Job{}, false
	}
	return JobFor(head, true), true
}

// Release deletes the local file of t. It is used as the queue's release hook.
func (r *Resolver) Release(t *models.Track) {
	if t.Resource != "" {
		r.remove(t.Resource)
	}
}

func (r *Resolver) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("failed to remove file", "path", path, "error", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
