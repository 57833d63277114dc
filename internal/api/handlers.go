// Package api exposes the tracker's job ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/model-health/modelhealth-go/internal/auth"
	"github.com/model-health/modelhealth-go/internal/ledger"
	"github.com/model-health/modelhealth-go/internal/tracker"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler coordinates HTTP requests with the tracker service.
type Handler struct {
	service *tracker.Service
}

// NewHandler builds a Handler.
func NewHandler(service *tracker.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/jobs", h.jobs)
	mux.HandleFunc("/v1/jobs/", h.jobByID)
	mux.HandleFunc("/healthz", healthz)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) jobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.trackJob(w, r)
	case http.MethodGet:
		h.listJobs(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) jobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing job id")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	h.getJob(w, r, id)
}

func (h *Handler) trackJob(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeJobsWrite)
	if !ok {
		return
	}

	var req TrackJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	job, err := h.service.Track(r.Context(), tracker.TrackInput{
		TenantID: claims.TenantID,
		Kind:     ledger.Kind(req.Kind),
		TargetID: req.TargetID,
	})
	switch {
	case errors.Is(err, tracker.ErrInvalidJob):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	case errors.Is(err, ledger.ErrDuplicateJob):
		writeError(w, http.StatusConflict, "conflict", "job already tracked")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, toJobView(*job))
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := authorize(w, r, auth.ScopeJobsRead, auth.ScopeJobsWrite)
	if !ok {
		return
	}

	job, err := h.service.Job(r.Context(), claims.TenantID, id)
	if err != nil {
		if errors.Is(err, ledger.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toJobView(*job))
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeJobsRead, auth.ScopeJobsWrite)
	if !ok {
		return
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}

	cursor, err := ledger.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	jobs, next, err := h.service.Jobs(r.Context(), claims.TenantID, cursor, limit)
	if errors.Is(err, ledger.ErrInvalidCursor) {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, toJobView(job))
	}
	writeJSON(w, http.StatusOK, ListJobsResponse{Items: items, NextCursor: ledger.EncodeCursor(next)})
}

// authorize writes the 401 or 403 response itself when the request lacks any of scopes.
func authorize(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scopes...) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
		return nil, false
	}
	return claims, true
}

// TrackJobRequest is the payload for POST /v1/jobs.
type TrackJobRequest struct {
	Kind     string `json:"kind"`
	TargetID string `json:"target_id"`
}

// JobView exposes a tracked job.
type JobView struct {
	JobID      string    `json:"job_id"`
	Kind       string    `json:"kind"`
	TargetID   string    `json:"target_id"`
	State      string    `json:"state"`
	Terminal   bool      `json:"terminal"`
	Attempts   int       `json:"attempts"`
	LastError  *string   `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	NextPollAt time.Time `json:"next_poll_at"`
}

// ListJobsResponse packages list results.
type ListJobsResponse struct {
	Items      []JobView `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toJobView(job ledger.Job) JobView {
	return JobView{
		JobID:      job.ID,
		Kind:       string(job.Kind),
		TargetID:   job.TargetID,
		State:      job.State,
		Terminal:   job.Terminal,
		Attempts:   job.Attempts,
		LastError:  job.LastError,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
		NextPollAt: job.NextPollAt,
	}
}
