package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/crowdq/internal/actions"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/resolver"
	"github.com/desertthunder/crowdq/internal/scheduler"
	"github.com/desertthunder/crowdq/internal/shared"
	tu "github.com/desertthunder/crowdq/internal/testing"
	"github.com/gorilla/websocket"
)

type fixture struct {
	srv    *httptest.Server
	device *tu.FakeDevice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	device := tu.NewFakeDevice(50)
	bus := events.NewBus()

	r, err := resolver.New(tu.NewFakeFetcher(), resolver.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("resolver.New() error = %v", err)
	}

	sched := scheduler.New(scheduler.Options{TickInterval: time.Hour}, scheduler.Deps{
		Device:    device,
		Resolver:  r,
		Settings:  &shared.Settings{LikeThreshold: 2, DislikeThreshold: 2, DuckFactor: 0.6},
		Announcer: &tu.FakeAnnouncer{},
		Publisher: bus,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	cat := &tu.FakeCatalog{Tracks: map[string]*models.Track{}}
	for _, id := range []string{"1", "2", "3"} {
		cat.Tracks[id] = models.NewTrack("", id, "Artist - "+id, []models.Candidate{{URL: "ok-" + id, Codec: "mp3", Bitrate: 320}})
	}

	d := actions.New(sched, cat, actions.Options{Publisher: bus})
	srv := httptest.NewServer(New(d, Options{Bus: bus}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-sched.Done()
	})
	return &fixture{srv: srv, device: device}
}

func (f *fixture) request(t *testing.T, method, path, voter string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if voter != "" {
		req.Header.Set(voterHeader, voter)
	}

	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (f *fixture) expect(t *testing.T, method, path, voter string, body any, status int) map[string]any {
	t.Helper()
	resp, decoded := f.request(t, method, path, voter, body)
	if resp.StatusCode != status {
		t.Fatalf("%s %s: expected status %d, got %d (%v)", method, path, status, resp.StatusCode, decoded)
	}
	return decoded
}

func pendingIDs(t *testing.T, view map[string]any) []string {
	t.Helper()
	var ids []string
	items, _ := view["pending"].([]any)
	for _, item := range items {
		ids = append(ids, item.(map[string]any)["id"].(string))
	}
	return ids
}

func TestServer(t *testing.T) {
	t.Run("Health", func(t *testing.T) {
		f := newFixture(t)
		body := f.expect(t, http.MethodGet, "/health", "", nil, http.StatusOK)
		if body["status"] != "ok" {
			t.Errorf("expected ok status, got %v", body)
		}
	})

	t.Run("Enqueue and view", func(t *testing.T) {
		f := newFixture(t)

		body := f.expect(t, http.MethodPost, "/api/queue", "alice", enqueueRequest{Text: "1 https://music.example.com/track/2"}, http.StatusCreated)
		queued, _ := body["queued"].([]any)
		if len(queued) != 2 {
			t.Fatalf("expected 2 queued, got %v", body)
		}

		view := f.expect(t, http.MethodGet, "/api/queue", "alice", nil, http.StatusOK)
		if got := pendingIDs(t, view); fmt.Sprint(got) != "[1 2]" {
			t.Errorf("expected pending [1 2], got %v", got)
		}
		if view["total"].(float64) != 2 {
			t.Errorf("expected total 2, got %v", view["total"])
		}
	})

	t.Run("Enqueue partial failure", func(t *testing.T) {
		f := newFixture(t)
		body := f.expect(t, http.MethodPost, "/api/queue", "alice", enqueueRequest{Text: "1 404"}, http.StatusCreated)
		if _, ok := body["error"]; !ok {
			t.Errorf("expected the failed lookup to be reported, got %v", body)
		}
	})

	t.Run("Enqueue errors", func(t *testing.T) {
		f := newFixture(t)

		tests := []struct {
			name   string
			body   any
			status int
		}{
			{name: "malformed body", body: "{", status: http.StatusBadRequest},
			{name: "no ids", body: enqueueRequest{Text: "hello"}, status: http.StatusBadRequest},
			{name: "unknown id", body: enqueueRequest{Text: "404"}, status: http.StatusNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f.expect(t, http.MethodPost, "/api/queue", "alice", tt.body, tt.status)
			})
		}
	})

	t.Run("Bad page", func(t *testing.T) {
		f := newFixture(t)
		f.expect(t, http.MethodGet, "/api/queue?page=two", "", nil, http.StatusBadRequest)
	})

	t.Run("Votes", func(t *testing.T) {
		f := newFixture(t)
		f.expect(t, http.MethodPost, "/api/queue", "alice", enqueueRequest{Text: "1 2 3"}, http.StatusCreated)

		f.expect(t, http.MethodPost, "/api/tracks/3/like", "alice", nil, http.StatusOK)
		body := f.expect(t, http.MethodPost, "/api/tracks/3/like", "bob", nil, http.StatusOK)
		vote, _ := body["vote"].(map[string]any)
		if vote["promoted"] != true {
			t.Errorf("expected promotion, got %v", body)
		}

		f.expect(t, http.MethodPost, "/api/tracks/2/dislike", "alice", nil, http.StatusOK)
		f.expect(t, http.MethodPost, "/api/tracks/2/dislike", "bob", nil, http.StatusOK)

		view := f.expect(t, http.MethodGet, "/api/queue", "", nil, http.StatusOK)
		if got := pendingIDs(t, view); fmt.Sprint(got) != "[1 3]" {
			t.Errorf("expected pending [1 3], got %v", got)
		}
	})

	t.Run("Vote voter from query", func(t *testing.T) {
		f := newFixture(t)
		f.expect(t, http.MethodPost, "/api/queue", "alice", enqueueRequest{Text: "1"}, http.StatusCreated)
		f.expect(t, http.MethodPost, "/api/tracks/1/like?voter=carol", "", nil, http.StatusOK)
	})

	t.Run("Vote without voter", func(t *testing.T) {
		f := newFixture(t)
		f.expect(t, http.MethodPost, "/api/queue", "alice", enqueueRequest{Text: "1"}, http.StatusCreated)
		f.expect(t, http.MethodPost, "/api/tracks/1/like", "", nil, http.StatusBadRequest)
	})

	t.Run("Vote current with nothing playing", func(t *testing.T) {
		f := newFixture(t)
		body := f.expect(t, http.MethodPost, "/api/dislike", "alice", nil, http.StatusOK)
		vote, _ := body["vote"].(map[string]any)
		if vote["matched"].(float64) != 0 {
			t.Errorf("expected no matches, got %v", body)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		f := newFixture(t)
		f.expect(t, http.MethodPost, "/api/queue", "alice", enqueueRequest{Text: "1 2 1"}, http.StatusCreated)

		body := f.expect(t, http.MethodDelete, "/api/queue/1", "alice", nil, http.StatusOK)
		if body["removed"].(float64) != 2 {
			t.Errorf("expected 2 removed, got %v", body)
		}
	})

	t.Run("Player", func(t *testing.T) {
		f := newFixture(t)
		if err := f.device.Open(context.Background(), "x"); err != nil {
			t.Fatal(err)
		}

		body := f.expect(t, http.MethodPost, "/api/player/toggle", "", nil, http.StatusOK)
		if body["playing"] != true {
			t.Errorf("expected playing, got %v", body)
		}

		body = f.expect(t, http.MethodPut, "/api/player/volume", "", map[string]any{"volume": 30}, http.StatusOK)
		if body["volume"].(float64) != 30 {
			t.Errorf("expected volume 30, got %v", body)
		}

		body = f.expect(t, http.MethodPut, "/api/player/volume", "", map[string]any{"volume": nil}, http.StatusOK)
		if _, ok := body["volume"]; !ok || body["volume"].(float64) != 0 {
			t.Errorf("expected mute, got %v", body)
		}
	})

	t.Run("Say", func(t *testing.T) {
		f := newFixture(t)
		f.expect(t, http.MethodPost, "/api/say", "", sayRequest{Text: "hello"}, http.StatusAccepted)
		f.expect(t, http.MethodPost, "/api/say", "", sayRequest{Text: "  "}, http.StatusBadRequest)
	})

	t.Run("Settings", func(t *testing.T) {
		f := newFixture(t)

		body := f.expect(t, http.MethodPut, "/api/settings/like_threshold", "", configureRequest{Value: "3"}, http.StatusOK)
		if body["value"] != "3" {
			t.Errorf("expected value 3, got %v", body)
		}

		body = f.expect(t, http.MethodGet, "/api/settings", "", nil, http.StatusOK)
		if body["like_threshold"] != "3" || body["say_names"] != "false" {
			t.Errorf("unexpected settings %v", body)
		}

		f.expect(t, http.MethodPut, "/api/settings/volume", "", configureRequest{Value: "3"}, http.StatusBadRequest)
		f.expect(t, http.MethodPut, "/api/settings/like_threshold", "", configureRequest{Value: "0"}, http.StatusBadRequest)
	})

	t.Run("Method not allowed", func(t *testing.T) {
		f := newFixture(t)
		resp, _ := f.request(t, http.MethodGet, "/api/player/toggle", "", nil)
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})

	t.Run("Request id", func(t *testing.T) {
		f := newFixture(t)
		resp, _ := f.request(t, http.MethodGet, "/health", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(3 * time.Second))

	var hello map[string]any
	if err := ws.ReadJSON(&hello); err != nil {
		t.Fatalf("failed to read welcome: %v", err)
	}
	if hello["type"] != "welcome" {
		t.Fatalf("expected welcome, got %v", hello)
	}

	f.expect(t, http.MethodPost, "/api/queue", "alice", enqueueRequest{Text: "1"}, http.StatusCreated)

	for {
		var ev events.Event
		if err := ws.ReadJSON(&ev); err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		if ev.Type == events.QueueChanged {
			if ev.Pending != 1 {
				t.Errorf("expected 1 pending, got %d", ev.Pending)
			}
			return
		}
	}
}

func TestEventStreamOrigin(t *testing.T) {
	bus := events.NewBus()
	stream := NewEventStream(bus, []string{"http://localhost:3000"}, shared.NewLogger(nil))
	srv := httptest.NewServer(stream)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{}
	header.Set("Origin", "http://evil.example.com")
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("expected dial with a foreign origin to fail")
	}

	header.Set("Origin", "http://localhost:3000")
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("expected allowed origin to connect: %v", err)
	}
	ws.Close()
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("x: %w", shared.ErrTrackNotFound), want: http.StatusNotFound},
		{err: shared.ErrMissingVoter, want: http.StatusBadRequest},
		{err: shared.ErrUnknownSetting, want: http.StatusBadRequest},
		{err: scheduler.ErrAnnouncing, want: http.StatusConflict},
		{err: scheduler.ErrStopped, want: http.StatusServiceUnavailable},
		{err: shared.ErrAPIRequest, want: http.StatusBadGateway},
		{err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRecover(t *testing.T) {
	h := Recover(shared.NewLogger(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
