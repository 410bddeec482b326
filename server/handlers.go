package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dreamtide/veod/errors"
	"github.com/dreamtide/veod/gen"
	"github.com/dreamtide/veod/internal/util"
	"github.com/dreamtide/veod/job"
	"github.com/dreamtide/veod/veo"
)

type generatePayload struct {
	Prompt          string `json:"prompt"`
	Category        string `json:"category,omitempty"`
	AspectRatio     string `json:"aspect_ratio,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	GenerateAudio   bool   `json:"generate_audio,omitempty"`
	EnhancePrompt   bool   `json:"enhance_prompt,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	var payload generatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	j, err := s.service.Submit(r.Context(), gen.SubmitRequest{
		Prompt:          payload.Prompt,
		Category:        payload.Category,
		AspectRatio:     veo.AspectRatio(payload.AspectRatio),
		DurationSeconds: payload.DurationSeconds,
		GenerateAudio:   payload.GenerateAudio,
		EnhancePrompt:   payload.EnhancePrompt,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	var filter job.Filter
	if status := r.URL.Query().Get("status"); status != "" {
		if !job.IsValidStatus(status) {
			writeError(w, http.StatusBadRequest, errors.Newf("invalid status %q", status))
			return
		}
		filter.Status = util.Ptr(job.Status(status))
	}
	if category := r.URL.Query().Get("category"); category != "" {
		filter.Category = util.Ptr(category)
	}

	writeJSON(w, http.StatusOK, s.service.Jobs(filter))
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing job id"))
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		j, err := s.service.Get(id)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, j)

	case action == "" && r.Method == http.MethodDelete:
		if err := s.service.Delete(id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case action == "cancel" && r.Method == http.MethodPost:
		if err := s.service.Cancel(id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusAccepted)

	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	balance, err := s.service.Balance()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"balance": balance})
}

func statusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsInvalidRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errors.ErrBaseURLUnresolved):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
