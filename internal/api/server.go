package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flitsinc/go-transcript/internal/engine"
	"github.com/flitsinc/go-transcript/internal/event"
	"github.com/flitsinc/go-transcript/internal/history"
	"github.com/flitsinc/go-transcript/internal/idgen"
	"github.com/flitsinc/go-transcript/internal/state"
)

type Server struct {
	Manager   *engine.Manager
	Runs      *state.Store
	History   *history.Store
	StartedAt time.Time
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/ws", s.handleIngestWS)
	mux.HandleFunc("/api/runs/", s.handleRunItem)
	mux.HandleFunc("/api/history/ws", s.handleHistoryWS)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"status": "ok", "time": time.Now().UTC()}
	if !s.StartedAt.IsZero() {
		payload["uptime"] = time.Since(s.StartedAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, payload)
}

// IngestRequest submits one complete run: the user query plus the full
// event sequence collected from the execution engine.
type IngestRequest struct {
	ID     string        `json:"id,omitempty"`
	Query  string        `json:"query"`
	Events []event.Event `json:"events"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parseInt(r.URL.Query().Get("limit"), 50)
		runs, err := s.Runs.ListRuns(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "active": s.Manager.Active()})
	case http.MethodPost:
		var req IngestRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		run, err := s.Manager.Execute(r.Context(), req.ID, req.Query, engine.NewSliceSource(req.Events))
		if err != nil {
			var invalid *idgen.InvalidIDError
			switch {
			case errors.As(err, &invalid):
				writeError(w, http.StatusBadRequest, err)
			case run.ID == "":
				// Run row was never created: infrastructure failure.
				writeError(w, http.StatusInternalServerError, err)
			default:
				// The run row records the stream failure.
				writeJSON(w, http.StatusBadGateway, map[string]any{"run": run, "error": err.Error()})
			}
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"run": run})
	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) handleRunItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errNotFound("run"))
		return
	}
	runID := segments[0]

	if len(segments) == 1 {
		run, err := s.Runs.GetRun(r.Context(), runID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}
	if len(segments) == 2 && segments[1] == "messages" {
		limit := parseInt(r.URL.Query().Get("limit"), 200)
		msgs, err := s.History.ListRun(r.Context(), runID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
		return
	}
	writeError(w, http.StatusNotFound, errNotFound("run resource"))
}

func decodeJSON(body io.Reader, dest any) error {
	dec := json.NewDecoder(body)
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

type notFoundError struct {
	msg string
}

func (e notFoundError) Error() string { return e.msg }

func errNotFound(target string) error {
	return notFoundError{msg: target + " not found"}
}
