package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"grantwell/internal/closeout"
	"grantwell/internal/compliance"
	"grantwell/internal/config"
	"grantwell/internal/models"
	"grantwell/internal/ratelimit"
	"grantwell/internal/store"
	"grantwell/internal/telemetry"
)

// GrantStore is the grant-read surface handlers need beyond the services.
type GrantStore interface {
	GetGrant(ctx context.Context, id string) (models.Grant, error)
	ListGrants(ctx context.Context) ([]models.Grant, error)
}

// Server wires HTTP handlers for the compliance and closeout API.
type Server struct {
	cfg        config.Config
	grants     GrantStore
	compliance *compliance.Service
	closeout   *closeout.Service
	limiter    *ratelimit.AgencyLimiter
}

// New constructs the API server. limiter may be nil to disable throttling.
func New(cfg config.Config, grants GrantStore, comp *compliance.Service, co *closeout.Service, limiter *ratelimit.AgencyLimiter) *Server {
	return &Server{
		cfg:        cfg,
		grants:     grants,
		compliance: comp,
		closeout:   co,
		limiter:    limiter,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Get("/grants/closeout/pending", s.handleCloseoutPending)
	r.Post("/grants/{id}/compliance/generate", s.handleGenerate)
	r.Get("/grants/{id}/compliance/events", s.handleListEvents)
	r.Post("/grants/{id}/closeout/ensure", s.handleEnsureCloseout)
	r.Post("/compliance/events/{id}/submit", s.handleSubmit)
	return r
}

type generateRequest struct {
	AwardStart    string `json:"award_start"`
	AwardEnd      string `json:"award_end"`
	Cadence       string `json:"cadence"`
	HorizonMonths int    `json:"horizon_months"`
}

type generateResponse struct {
	Created int `json:"created"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "id")

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	grant, err := s.grants.GetGrant(r.Context(), grantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "grant not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not refresh compliance timeline")
		return
	}

	if s.limiter != nil {
		agency := agencyFromRequest(r, grant)
		decision, err := s.limiter.Check(r.Context(), agency)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rate limit error")
			return
		}
		if !decision.Allowed {
			telemetry.RateLimitRejects.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	// The request body overrides the grant record; the UI regenerates from
	// whatever window the user just saved, but cron callers send no body.
	awardStart := req.AwardStart
	if awardStart == "" && grant.AwardStart != nil {
		awardStart = grant.AwardStart.Format(models.DateLayout)
	}
	awardEnd := req.AwardEnd
	if awardEnd == "" && grant.EndDate != nil {
		awardEnd = grant.EndDate.Format(models.DateLayout)
	}
	cadence := req.Cadence
	if cadence == "" {
		cadence = grant.NarrativeCadence
	}
	horizon := req.HorizonMonths
	if horizon <= 0 {
		horizon = s.cfg.HorizonMonths
	}

	created, err := s.compliance.GenerateEvents(r.Context(), grantID, awardStart, awardEnd, cadence, horizon)
	if err != nil {
		log.WithError(err).WithField("grant_id", grantID).Error("Generation failed")
		writeError(w, http.StatusInternalServerError, "could not refresh compliance timeline")
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Created: created})
}

type eventResponse struct {
	ID          string `json:"id"`
	GrantID     string `json:"grant_id"`
	Type        string `json:"type"`
	DueOn       string `json:"due_on"`
	Status      string `json:"status"`
	SubmittedOn string `json:"submitted_on,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "id")
	events, err := s.compliance.ListEvents(r.Context(), grantID)
	if err != nil {
		log.WithError(err).WithField("grant_id", grantID).Error("List events failed")
		writeError(w, http.StatusInternalServerError, "could not load compliance timeline")
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp := eventResponse{
			ID:      e.ID,
			GrantID: e.GrantID,
			Type:    e.Type,
			DueOn:   e.DueOn.Format(models.DateLayout),
			Status:  e.Status,
			Notes:   e.Notes,
		}
		if e.SubmittedOn != nil {
			resp.SubmittedOn = e.SubmittedOn.Format(models.DateLayout)
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

type submitRequest struct {
	SubmittedOn string `json:"submitted_on"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	var req submitRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	if err := s.compliance.MarkSubmitted(r.Context(), eventID, req.SubmittedOn); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		log.WithError(err).WithField("event_id", eventID).Error("Submission failed")
		writeError(w, http.StatusInternalServerError, "could not mark item submitted")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusSubmitted})
}

type closeoutPendingItem struct {
	Grant          models.Grant `json:"grant"`
	Deadline       string       `json:"deadline"`
	DaysRemaining  int          `json:"days_remaining"`
	Countdown      string       `json:"countdown"`
	NeedsAttention bool         `json:"needs_attention"`
}

func (s *Server) handleCloseoutPending(w http.ResponseWriter, r *http.Request) {
	grants, err := s.grants.ListGrants(r.Context())
	if err != nil {
		log.WithError(err).Error("List grants failed")
		writeError(w, http.StatusInternalServerError, "could not load grants")
		return
	}

	pending := closeout.FilterPending(grants)
	items := make([]closeoutPendingItem, 0, len(pending))
	for _, g := range pending {
		countdown, _ := closeout.FormatCountdown(g.EndDate, closeout.DefaultGraceDays)
		items = append(items, closeoutPendingItem{
			Grant:          g,
			Deadline:       closeout.Deadline(*g.EndDate, closeout.DefaultGraceDays).Format(models.DateLayout),
			DaysRemaining:  closeout.DaysUntil(g.EndDate, closeout.DefaultGraceDays),
			Countdown:      countdown,
			NeedsAttention: closeout.NeedsAttention(g.EndDate, closeout.DefaultGraceDays),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": items})
}

func (s *Server) handleEnsureCloseout(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "id")
	grant, err := s.grants.GetGrant(r.Context(), grantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "grant not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load grant")
		return
	}

	if err := s.closeout.EnsureItems(r.Context(), grantID, grant.EndDate); err != nil {
		log.WithError(err).WithField("grant_id", grantID).Error("Closeout bootstrap failed")
		writeError(w, http.StatusInternalServerError, "could not initialize closeout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func agencyFromRequest(r *http.Request, grant models.Grant) string {
	if v := r.Header.Get("X-Agency-ID"); v != "" {
		return v
	}
	if grant.Agency != "" {
		return grant.Agency
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
