package player

import (
	"context"
	"fmt"
	"math"
)

// NoMedia is the position reported when nothing is loaded.
const NoMedia = -1.0

// Device is the playback collaborator. Positions are fractions in [0, 1] or [NoMedia].
type Device interface {
	Open(ctx context.Context, resource string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, volume int) error
	Position(ctx context.Context) (float64, error)
	IsPlaying(ctx context.Context) (bool, error)
	Close() error
}

// Announcer speaks text through the output device.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

// ClampVolume limits v to [0, 100].
func ClampVolume(v int) int {
	return min(max(v, 0), 100)
}

// Finished reports whether position means the loaded track is over.
func Finished(position, end float64) bool {
	return position == NoMedia || position >= end
}

// Duck lowers the volume of d by factor while fn runs and restores it afterwards.
//
// The original volume is restored even when fn fails.
func Duck(ctx context.Context, d Device, factor float64, fn func() error) error {
	volume, err := d.Volume(ctx)
	if err != nil {
		return fmt.Errorf("failed to read volume: %w", err)
	}

	ducked := ClampVolume(int(math.Round(float64(volume) * factor)))
	if err := d.SetVolume(ctx, ducked); err != nil {
		return fmt.Errorf("failed to duck volume: %w", err)
	}

	runErr := fn()

	if err := d.SetVolume(context.WithoutCancel(ctx), volume); err != nil {
		return fmt.Errorf("failed to restore volume: %w", err)
	}
	return runErr
}

// Toggle pauses a playing device and resumes a paused one. It returns the new playing state.
func Toggle(ctx context.Context, d Device) (bool, error) {
	playing, err := d.IsPlaying(ctx)
	if err != nil {
		return false, err
	}

	if playing {
		return false, d.Pause(ctx)
	}
	return true, d.Play(ctx)
}
