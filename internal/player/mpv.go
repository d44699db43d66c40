package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/shared"
)

const (
	mpvName           = "mpv"
	idleArg           = "--idle"
	noVideoArg        = "--no-video"
	inputIpcServerArg = "--input-ipc-server"

	resultSuccess       = "success"
	propertyUnavailable = "property unavailable"
)

var (
	// ErrCommandFailed informs about mpv returning something other than "success" in the error field.
	ErrCommandFailed = errors.New("mpv command failed")

	// ErrNotConnected is returned by requests made before [MPV.Connect] or after [MPV.Close].
	ErrNotConnected = errors.New("not connected to mpv")
)

// MPVConfig configures the mpv adapter.
type MPVConfig struct {
	SocketPath     string
	StartInstance  bool // StartInstance spawns "mpv --idle" listening on SocketPath
	ConnectTimeout time.Duration
	Logger         *log.Logger
}

type commandPayload struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type responsePayload struct {
	Err       string `json:"error"`
	RequestID int    `json:"request_id"`
	Event     string `json:"event"`
	Data      any    `json:"data"`
}

// MPV drives an mpv instance through its JSON IPC socket.
type MPV struct {
	cfg    MPVConfig
	logger *log.Logger
	proc   *exec.Cmd

	mu       sync.Mutex
	conn     net.Conn
	requests map[int]chan responsePayload
	nextID   int
}

// NewMPV creates an unconnected [MPV].
func NewMPV(cfg MPVConfig) *MPV {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &MPV{
		cfg:      cfg,
		logger:   shared.WithLogger(logger, "component", "mpv"),
		requests: make(map[int]chan responsePayload),
		nextID:   1,
	}
}

// Connect optionally starts mpv, then dials the socket until it answers or the timeout expires.
func (m *MPV) Connect(ctx context.Context) error {
	if m.cfg.StartInstance {
		cmd := exec.Command(mpvName, idleArg, noVideoArg, fmt.Sprintf("%s=%s", inputIpcServerArg, m.cfg.SocketPath))
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("could not start mpv process: %w", err)
		}
		m.proc = cmd
		m.logger.Info("mpv process started", "pid", cmd.Process.Pid)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	m.logger.Info("connecting to mpv socket", "path", m.cfg.SocketPath, "timeout", m.cfg.ConnectTimeout)
	conn, err := dialSocket(ctx, m.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("could not connect to mpv socket %s: %w", m.cfg.SocketPath, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	go m.readResponses(conn)
	return nil
}

// dialSocket retries until mpv starts listening, which can take a moment after launch.
func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// readResponses distributes newline separated replies to waiting requests. Events are ignored.
func (m *MPV) readResponses(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var res responsePayload
		if err := json.Unmarshal(line, &res); err != nil {
			m.logger.Warn("could not parse mpv payload", "payload", string(line), "error", err)
			continue
		}
		if res.Event != "" || res.RequestID == 0 {
			continue
		}

		m.mu.Lock()
		ch, ok := m.requests[res.RequestID]
		delete(m.requests, res.RequestID)
		m.mu.Unlock()

		if ok {
			ch <- res
		}
	}

	m.logger.Info("mpv connection closed")
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	for id, ch := range m.requests {
		close(ch)
		delete(m.requests, id)
	}
	m.mu.Unlock()
}

// request sends one command and waits for its reply.
func (m *MPV) request(ctx context.Context, args ...any) (any, error) {
	m.mu.Lock()
	conn := m.conn
	if conn == nil {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	id := m.nextID
	m.nextID++
	reply := make(chan responsePayload, 1)
	m.requests[id] = reply

	payload, err := json.Marshal(commandPayload{Command: args, RequestID: id})
	if err == nil {
		_, err = conn.Write(append(payload, '\n'))
	}
	if err != nil {
		delete(m.requests, id)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to send mpv command: %w", err)
	}
	m.mu.Unlock()

	select {
	case res, ok := <-reply:
		if !ok {
			return nil, ErrNotConnected
		}
		if res.Err != resultSuccess {
			return nil, fmt.Errorf("%w: %v: %s", ErrCommandFailed, args[0], res.Err)
		}
		return res.Data, nil
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.requests, id)
		m.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (m *MPV) getProperty(ctx context.Context, name string) (any, error) {
	return m.request(ctx, "get_property", name)
}

func (m *MPV) setProperty(ctx context.Context, name string, value any) error {
	_, err := m.request(ctx, "set_property", name, value)
	return err
}

// Open replaces whatever is loaded with resource, paused until [MPV.Play].
func (m *MPV) Open(ctx context.Context, resource string) error {
	if err := m.setProperty(ctx, "pause", true); err != nil {
		return err
	}
	_, err := m.request(ctx, "loadfile", resource, "replace")
	return err
}

func (m *MPV) Play(ctx context.Context) error {
	return m.setProperty(ctx, "pause", false)
}

func (m *MPV) Pause(ctx context.Context) error {
	return m.setProperty(ctx, "pause", true)
}

func (m *MPV) Stop(ctx context.Context) error {
	_, err := m.request(ctx, "stop")
	return err
}

func (m *MPV) Volume(ctx context.Context) (int, error) {
	data, err := m.getProperty(ctx, "volume")
	if err != nil {
		return 0, err
	}
	v, ok := data.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: volume is %T", ErrCommandFailed, data)
	}
	return int(math.Round(v)), nil
}

func (m *MPV) SetVolume(ctx context.Context, volume int) error {
	return m.setProperty(ctx, "volume", ClampVolume(volume))
}

// Position reads percent-pos. mpv reports the property as unavailable while idle, which maps to [NoMedia].
func (m *MPV) Position(ctx context.Context) (float64, error) {
	data, err := m.getProperty(ctx, "percent-pos")
	if err != nil {
		if errors.Is(err, ErrCommandFailed) && isUnavailable(err) {
			return NoMedia, nil
		}
		return 0, err
	}
	v, ok := data.(float64)
	if !ok {
		return NoMedia, nil
	}
	return v / 100, nil
}

func (m *MPV) IsPlaying(ctx context.Context) (bool, error) {
	idle, err := m.getProperty(ctx, "idle-active")
	if err != nil {
		return false, err
	}
	if b, _ := idle.(bool); b {
		return false, nil
	}

	paused, err := m.getProperty(ctx, "pause")
	if err != nil {
		return false, err
	}
	p, _ := paused.(bool)
	return !p, nil
}

// Close drops the connection and stops a process started by [MPV.Connect].
func (m *MPV) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	if m.proc != nil && m.proc.Process != nil {
		m.proc.Process.Kill()
		m.proc.Wait()
	}
	return err
}

func isUnavailable(err error) bool {
	return strings.HasSuffix(err.Error(), propertyUnavailable)
}
