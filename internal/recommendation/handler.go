// Package recommendation exposes the decision support pipeline over HTTP.
package recommendation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"clinical-decision-agent/internal/patient"
	"clinical-decision-agent/internal/pipeline"
	"clinical-decision-agent/internal/safety"
)

const (
	maxBodyBytes = 64 << 10
	alertTimeout = 30 * time.Second
)

type Runner interface {
	Run(ctx context.Context, patientID, query string) (*pipeline.State, error)
}

type Reporter interface {
	Render(st *pipeline.State) ([]byte, error)
	Deliver(ctx context.Context, st *pipeline.State) error
}

type Handler struct {
	runner   Runner
	engine   *safety.Engine
	store    patient.Store
	reports  Reporter
	alerting bool
	logger   *zap.Logger

	alerts sync.WaitGroup
}

// NewHandler wires the HTTP layer. When alerting is true, unsafe runs are
// reported to the clinician chat in the background.
func NewHandler(runner Runner, engine *safety.Engine, store patient.Store, reports Reporter, alerting bool, logger *zap.Logger) *Handler {
	return &Handler{
		runner:   runner,
		engine:   engine,
		store:    store,
		reports:  reports,
		alerting: alerting && reports != nil,
		logger:   logger,
	}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/recommendations", h.CreateRecommendation)
	r.Post("/recommendations/report", h.CreateReport)
	r.Post("/safety/check", h.CheckSafety)
}

// Wait blocks until in-flight clinician alerts have finished.
func (h *Handler) Wait() {
	h.alerts.Wait()
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := dst.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) (*pipeline.State, bool) {
	var req RecommendationRequest
	if !decode(w, r, &req) {
		return nil, false
	}

	st, err := h.runner.Run(r.Context(), req.PatientID, req.Query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "request aborted")
		} else {
			h.logger.Error("pipeline run failed", zap.String("patient_id", req.PatientID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "pipeline failed")
		}
		return nil, false
	}
	return st, true
}

func (h *Handler) CreateRecommendation(w http.ResponseWriter, r *http.Request) {
	st, ok := h.run(w, r)
	if !ok {
		return
	}
	queued := h.maybeAlert(st)
	writeJSON(w, http.StatusOK, RecommendationResponse{State: st, AlertQueued: queued})
}

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusNotImplemented, "reports are not configured")
		return
	}
	st, ok := h.run(w, r)
	if !ok {
		return
	}
	h.maybeAlert(st)

	pdf, err := h.reports.Render(st)
	if err != nil {
		h.logger.Error("report render failed", zap.String("run_id", st.RunID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "report rendering failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report_%s.pdf"`, st.RunID))
	w.Write(pdf)
}

func (h *Handler) CheckSafety(w http.ResponseWriter, r *http.Request) {
	var req SafetyCheckRequest
	if !decode(w, r, &req) {
		return
	}

	var p *patient.Profile
	if req.Patient != nil {
		p = req.profile()
	} else {
		var err error
		p, err = h.store.Lookup(r.Context(), req.PatientID)
		switch {
		case errors.Is(err, patient.ErrNotFound):
			writeError(w, http.StatusNotFound, "patient not found")
			return
		case err != nil:
			h.logger.Warn("patient lookup failed", zap.String("patient_id", req.PatientID), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "patient store unavailable")
			return
		}
	}

	res := h.engine.Check(req.ProposedTreatment, p)
	msgs := make([]string, len(res.Warnings))
	for i, warn := range res.Warnings {
		msgs[i] = warn.String()
	}
	writeJSON(w, http.StatusOK, SafetyCheckResponse{Warnings: res.Warnings, Messages: msgs, IsSafe: res.IsSafe})
}

// maybeAlert queues a clinician alert for an unsafe run. The alert
// outlives the request, so it runs on its own context.
func (h *Handler) maybeAlert(st *pipeline.State) bool {
	if !h.alerting || st.Safety == nil || st.Safety.IsSafe {
		return false
	}

	h.alerts.Add(1)
	go func() {
		defer h.alerts.Done()
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := h.reports.Deliver(ctx, st); err != nil {
			h.logger.Warn("clinician alert failed", zap.String("run_id", st.RunID.String()), zap.Error(err))
		}
	}()
	return true
}
