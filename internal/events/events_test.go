package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/redis/go-redis/v9"
)

func TestBroadcaster(t *testing.T) {
	t.Run("delivers to every subscriber", func(t *testing.T) {
		b := NewBroadcaster[int]()
		a, cancelA := b.Subscribe(4)
		c, cancelC := b.Subscribe(4)
		defer cancelA()
		defer cancelC()

		b.Send(7)
		if got := <-a; got != 7 {
			t.Errorf("subscriber a got %d", got)
		}
		if got := <-c; got != 7 {
			t.Errorf("subscriber c got %d", got)
		}
	})

	t.Run("full subscribers drop instead of blocking", func(t *testing.T) {
		b := NewBroadcaster[int]()
		ch, cancel := b.Subscribe(1)
		defer cancel()

		done := make(chan struct{})
		go func() {
			b.Send(1)
			b.Send(2)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Send blocked on a full subscriber")
		}
		if got := <-ch; got != 1 {
			t.Errorf("got %d, want 1", got)
		}
		if b.Dropped() != 1 {
			t.Errorf("Dropped() = %d, want 1", b.Dropped())
		}
	})

	t.Run("cancel closes and unregisters", func(t *testing.T) {
		b := NewBroadcaster[int]()
		ch, cancel := b.Subscribe(1)
		cancel()
		cancel()

		if _, ok := <-ch; ok {
			t.Error("channel should be closed")
		}
		if b.Len() != 0 {
			t.Errorf("Len() = %d", b.Len())
		}
		b.Send(1)
	})
}

func TestBus(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	var p Publisher = bus
	p.Publish(New(Idle, nil, 0))

	if e := <-ch; e.Type != Idle || e.At.IsZero() {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	pub, err := NewRedisPublisher(ctx, "redis://"+mr.Addr(), "", nil)
	if err != nil {
		t.Fatalf("NewRedisPublisher() error = %v", err)
	}
	defer pub.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()}).Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	in := make(chan Event, 1)
	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go pub.Forward(fwdCtx, in)

	view := models.TrackView{ID: "5", Name: "artist - title"}
	in <- New(TrackStarted, &view, 3)

	select {
	case msg := <-sub.Channel():
		var got Event
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("bad payload %q: %v", msg.Payload, err)
		}
		if got.Type != TrackStarted || got.Track == nil || got.Track.ID != "5" || got.Pending != 3 {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisPublisherBadURL(t *testing.T) {
	if _, err := NewRedisPublisher(context.Background(), "not-a-url", "", nil); err == nil {
		t.Error("expected error")
	}
}
