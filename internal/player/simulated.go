package player

import (
	"context"
	"sync"
	"time"
)

// Simulated is a [Device] that plays nothing and advances a clock instead.
// Every opened resource lasts the configured track length.
type Simulated struct {
	mu       sync.Mutex
	length   time.Duration
	now      func() time.Time
	resource string
	elapsed  time.Duration
	started  time.Time
	playing  bool
	volume   int
}

// NewSimulated creates a [Simulated] device with the given track length and starting volume.
func NewSimulated(length time.Duration, volume int) *Simulated {
	if length <= 0 {
		length = 3 * time.Minute
	}
	return &Simulated{length: length, now: time.Now, volume: ClampVolume(volume)}
}

func (s *Simulated) Open(ctx context.Context, resource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resource, s.elapsed, s.playing = resource, 0, false
	return nil
}

func (s *Simulated) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resource != "" && !s.playing {
		s.playing, s.started = true, s.now()
	}
	return nil
}

func (s *Simulated) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		s.elapsed += s.now().Sub(s.started)
		s.playing = false
	}
	return nil
}

func (s *Simulated) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resource, s.elapsed, s.playing = "", 0, false
	return nil
}

func (s *Simulated) Volume(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume, nil
}

func (s *Simulated) SetVolume(ctx context.Context, volume int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = ClampVolume(volume)
	return nil
}

// Position returns the elapsed fraction of the track, or [NoMedia] once it has run out.
func (s *Simulated) Position(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resource == "" {
		return NoMedia, nil
	}

	elapsed := s.elapsed
	if s.playing {
		elapsed += s.now().Sub(s.started)
	}
	if elapsed >= s.length {
		s.resource, s.playing = "", false
		return NoMedia, nil
	}
	return float64(elapsed) / float64(s.length), nil
}

func (s *Simulated) IsPlaying(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing, nil
}

func (s *Simulated) Close() error { return nil }
