package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/desertthunder/crowdq/internal/actions"
	"github.com/desertthunder/crowdq/internal/scheduler"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrMissingVoter),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrUnknownSetting):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrAnnouncing):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrStopped),
		errors.Is(err, scheduler.ErrNoAnnouncer),
		errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

// do runs a and writes its outcome.
func (s *Server) do(w http.ResponseWriter, r *http.Request, a actions.Action, status int) {
	out, err := s.dispatcher.Do(r.Context(), a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, out)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(shared.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "crowdq",
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "page must be an integer")
			return
		}
		page = n
	}

	out, err := s.dispatcher.Do(r.Context(), actions.Action{Kind: actions.ShowQueue, Voter: voterFrom(r), Page: page})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Queue)
}

type enqueueRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var body enqueueRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	outs, err := s.dispatcher.EnqueueText(r.Context(), voterFrom(r), body.Text)
	if len(outs) == 0 {
		s.fail(w, r, err)
		return
	}

	resp := map[string]any{"queued": outs}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, actions.Action{Kind: actions.Remove, Voter: voterFrom(r), TrackID: chi.URLParam(r, "id")}, http.StatusOK)
}

// vote handles both the per-track and the current-track routes; the latter has no id parameter.
func (s *Server) vote(kind actions.Kind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.do(w, r, actions.Action{Kind: kind, Voter: voterFrom(r), TrackID: chi.URLParam(r, "id")}, http.StatusOK)
	})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.do(w, r, actions.Action{Kind: actions.TogglePlayback, Voter: voterFrom(r)}, http.StatusOK)
}

type volumeRequest struct {
	Volume *int `json:"volume"`
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var body volumeRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.do(w, r, actions.Action{Kind: actions.SetVolume, Voter: voterFrom(r), Volume: body.Volume}, http.StatusOK)
}

type sayRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSay(w http.ResponseWriter, r *http.Request) {
	var body sayRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.do(w, r, actions.Action{Kind: actions.Announce, Voter: voterFrom(r), Text: body.Text}, http.StatusAccepted)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	out, err := s.dispatcher.Do(r.Context(), actions.Action{Kind: actions.ShowSettings})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Settings)
}

type configureRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var body configureRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.do(w, r, actions.Action{
		Kind:  actions.Configure,
		Voter: voterFrom(r),
		Field: chi.URLParam(r, "field"),
		Value: body.Value,
	}, http.StatusOK)
}
