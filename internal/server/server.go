package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crowdq/internal/actions"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the path patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Options configures a [Server].
type Options struct {
	Bus            *events.Bus // Bus enables the /api/events stream when set
	AllowedOrigins []string    // AllowedOrigins restricts websocket origins; empty allows any
	Logger         *log.Logger
}

// Server is the HTTP surface of the rotation engine.
type Server struct {
	router     Router
	dispatcher *actions.Dispatcher
	logger     *log.Logger
}

// New builds a server with all routes registered.
func New(d *actions.Dispatcher, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	s := &Server{
		router:     NewChiRouter(),
		dispatcher: d,
		logger:     shared.WithLogger(logger, "component", "server"),
	}

	s.router.Use(RequestID, Recover(s.logger), Logging(s.logger))
	s.routes()

	if opts.Bus != nil {
		s.router.Handler(NewEventStream(opts.Bus, opts.AllowedOrigins, s.logger))
	}
	return s
}

func (s *Server) routes() {
	s.router.Handle(http.MethodGet, "/health", http.HandlerFunc(s.handleHealth))

	s.router.Handle(http.MethodGet, "/api/queue", http.HandlerFunc(s.handleQueue))
	s.router.Handle(http.MethodPost, "/api/queue", http.HandlerFunc(s.handleEnqueue))
	s.router.Handle(http.MethodDelete, "/api/queue/{id}", http.HandlerFunc(s.handleRemove))

	s.router.Handle(http.MethodPost, "/api/tracks/{id}/like", s.vote(actions.Like))
	s.router.Handle(http.MethodPost, "/api/tracks/{id}/dislike", s.vote(actions.Dislike))
	s.router.Handle(http.MethodPost, "/api/like", s.vote(actions.Like))
	s.router.Handle(http.MethodPost, "/api/dislike", s.vote(actions.Dislike))

	s.router.Handle(http.MethodPost, "/api/player/toggle", http.HandlerFunc(s.handleToggle))
	s.router.Handle(http.MethodPut, "/api/player/volume", http.HandlerFunc(s.handleVolume))
	s.router.Handle(http.MethodPost, "/api/say", http.HandlerFunc(s.handleSay))

	s.router.Handle(http.MethodGet, "/api/settings", http.HandlerFunc(s.handleSettings))
	s.router.Handle(http.MethodPut, "/api/settings/{field}", http.HandlerFunc(s.handleConfigure))
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
