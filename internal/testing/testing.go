// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// FakeFetcher is a test double for the resolver's fetcher. URLs listed in Fail return an error after
// writing a partial file so cleanup can be checked.
type FakeFetcher struct {
	mu      sync.Mutex
	Fail    map[string]bool
	Content string
	Delay   time.Duration
	calls   []string
}

func NewFakeFetcher(failing ...string) *FakeFetcher {
	f := &FakeFetcher{Fail: make(map[string]bool), Content: "audio"}
	for _, u := range failing {
		f.Fail[u] = true
	}
	return f
}

func (f *FakeFetcher) Fetch(ctx context.Context, c models.Candidate, dest string) error {
	f.mu.Lock()
	f.calls = append(f.calls, c.URL)
	fail, delay, content := f.Fail[c.URL], f.Delay, f.Content
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if fail {
		_ = os.WriteFile(dest, []byte("partial"), 0644)
		return fmt.Errorf("fetch %s: %w", c.URL, shared.ErrServiceUnavailable)
	}
	return os.WriteFile(dest, []byte(content), 0644)
}

// Calls returns the candidate URLs attempted so far.
func (f *FakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// SetFail marks url as failing or succeeding.
func (f *FakeFetcher) SetFail(url string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail[url] = fail
}

// FakeDevice is an in-memory playback device. Position reports -1 when nothing is loaded.
type FakeDevice struct {
	mu       sync.Mutex
	resource string
	playing  bool
	volume   int
	position float64
	opened   []string
	stops    int
	volumes  []int

	OpenErr       error
	PanicPosition bool // PanicPosition makes the next Position call panic
}

func NewFakeDevice(volume int) *FakeDevice {
	return &FakeDevice{volume: volume}
}

func (d *FakeDevice) Open(ctx context.Context, resource string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.resource, d.position, d.playing = resource, 0, false
	d.opened = append(d.opened, resource)
	return nil
}

func (d *FakeDevice) Play(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.resource != "" {
		d.playing = true
	}
	return nil
}

func (d *FakeDevice) Pause(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = false
	return nil
}

func (d *FakeDevice) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resource, d.playing, d.position = "", false, 0
	d.stops++
	return nil
}

func (d *FakeDevice) Volume(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume, nil
}

func (d *FakeDevice) SetVolume(ctx context.Context, v int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = min(max(v, 0), 100)
	d.volumes = append(d.volumes, d.volume)
	return nil
}

func (d *FakeDevice) Position(ctx context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.PanicPosition {
		d.PanicPosition = false
		panic("device position exploded")
	}
	if d.resource == "" {
		return -1, nil
	}
	return d.position, nil
}

func (d *FakeDevice) IsPlaying(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing, nil
}

func (d *FakeDevice) Close() error { return nil }

// SetPosition moves the playhead of the loaded resource.
func (d *FakeDevice) SetPosition(p float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = p
}

// SetPanic arms a single panic in the next Position call.
func (d *FakeDevice) SetPanic() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.PanicPosition = true
}

// Loaded returns the currently open resource.
func (d *FakeDevice) Loaded() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resource
}

// Opened returns every resource opened so far.
func (d *FakeDevice) Opened() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.opened)
}

// Volumes returns every volume set so far.
func (d *FakeDevice) Volumes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.volumes)
}

// Stops returns how many times Stop was called.
func (d *FakeDevice) Stops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

// FakeAnnouncer records announced text.
type FakeAnnouncer struct {
	mu    sync.Mutex
	texts []string
	Err   error
}

func (a *FakeAnnouncer) Announce(ctx context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
	return a.Err
}

func (a *FakeAnnouncer) Texts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.texts)
}

// FakeCatalog serves tracks from a map keyed by catalog id.
type FakeCatalog struct {
	Tracks map[string]*models.Track
	Err    error
}

func (c *FakeCatalog) Lookup(ctx context.Context, id string) (*models.Track, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	t, ok := c.Tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return models.NewTrack(shared.GenerateID(), t.ID, t.Name, t.Candidates), nil
}

// MemoryStore is an in-memory snapshot store.
type MemoryStore struct {
	mu      sync.Mutex
	entries []models.SnapshotEntry
	Delay   time.Duration // Delay is how long each Save takes; a cancelled ctx aborts it
}

func (s *MemoryStore) Save(ctx context.Context, entries []models.SnapshotEntry) error {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = slices.Clone(entries)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) ([]models.SnapshotEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries), nil
}

func (s *MemoryStore) Close() error { return nil }

// Eventually polls cond until it holds or the timeout expires.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
