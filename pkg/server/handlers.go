package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voltaicdata/voltaic/pkg/catalog"
	"github.com/voltaicdata/voltaic/pkg/ingest"
	"github.com/voltaicdata/voltaic/pkg/metrics"
	"github.com/voltaicdata/voltaic/pkg/plan"
)

const maxBodyBytes = 64 << 10

// errorResponse is the wire shape for every non-2xx body. Field, Value, and
// Supported are filled from the typed validation errors when present.
type errorResponse struct {
	Error     string   `json:"error"`
	Field     string   `json:"field,omitempty"`
	Value     string   `json:"value,omitempty"`
	Supported []string `json:"supported,omitempty"`
}

type planResponse struct {
	Plan    *plan.Plan         `json:"plan"`
	Metric  catalog.MetricSpec `json:"metric"`
	Repairs int                `json:"repairs,omitempty"`
}

type coverageResponse struct {
	DatasetID  string               `json:"dataset_id"`
	Table      string               `json:"table"`
	MinYear    int                  `json:"min_year"`
	MaxYear    int                  `json:"max_year"`
	LastIngest *ingest.IngestRecord `json:"last_ingest,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write healthz response", "error", err)
	}
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ClickHouse != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pingClickHouse(ctx); err != nil {
			s.log.Debug("readyz: clickhouse not ready", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("clickhouse not ready\n")); err != nil {
				s.log.Error("failed to write readyz response", "error", err)
			}
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write readyz response", "error", err)
	}
}

func (s *Server) pingClickHouse(ctx context.Context) error {
	conn, err := s.cfg.ClickHouse.Conn(ctx)
	if err != nil {
		return err
	}
	return conn.Exec(ctx, "SELECT 1")
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.VersionInfo)
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{
		"datasets": s.cfg.Catalog.DatasetIDs(),
	})
}

func (s *Server) handleDatasetMetrics(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	specs, err := s.cfg.Catalog.Metrics(datasetID)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, validationErrorBody(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"dataset_id": datasetID,
		"metrics":    specs,
	})
}

func (s *Server) handleBuildPlan(w http.ResponseWriter, r *http.Request) {
	var in plan.Input
	if err := decodeBody(w, r, &in); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	built, err := s.cfg.Builder.Build(in)
	metrics.RecordPlanBuild(err)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, validationErrorBody(err))
		return
	}
	s.writeJSON(w, http.StatusOK, planResponse{Plan: built, Metric: built.Metric()})
}

func (s *Server) handlePlannerPlan(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Planner == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "planner not configured"})
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required", Field: "question"})
		return
	}

	res, err := s.cfg.Planner.Plan(r.Context(), req.Question)
	if err != nil {
		// The model kept producing invalid plans: the question is the
		// problem, not the service.
		if plan.IsValidationError(err) {
			s.writeJSON(w, http.StatusUnprocessableEntity, validationErrorBody(err))
			return
		}
		s.log.Error("planner failed", "error", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "planner failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, planResponse{
		Plan:    res.Plan,
		Metric:  res.Plan.Metric(),
		Repairs: res.Repairs,
	})
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "ingest store not configured"})
		return
	}

	minYear, maxYear, err := s.cfg.Store.YearBounds(r.Context())
	if err != nil {
		s.log.Debug("coverage: dataset not loaded", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "dataset not loaded"})
		return
	}
	last, err := s.cfg.Store.LastIngest(r.Context())
	if err != nil {
		s.log.Error("failed to read last ingest", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read ingest log"})
		return
	}

	s.writeJSON(w, http.StatusOK, coverageResponse{
		DatasetID:  catalog.DatasetOWIDEnergy,
		Table:      s.cfg.Store.Table(),
		MinYear:    minYear,
		MaxYear:    maxYear,
		LastIngest: last,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func validationErrorBody(err error) errorResponse {
	var unknownDataset *catalog.UnknownDatasetError
	var unknownMetric *catalog.UnknownMetricError
	var fieldErr *plan.FieldError
	var temporalErr *plan.TemporalError
	var shapeErr *plan.ShapeError

	switch {
	case errors.As(err, &unknownDataset):
		return errorResponse{
			Error:     err.Error(),
			Field:     "dataset_id",
			Value:     unknownDataset.DatasetID,
			Supported: unknownDataset.Supported,
		}
	case errors.As(err, &unknownMetric):
		return errorResponse{
			Error:     err.Error(),
			Field:     "metric_id",
			Value:     unknownMetric.MetricID,
			Supported: unknownMetric.Supported,
		}
	case errors.As(err, &fieldErr):
		return errorResponse{Error: err.Error(), Field: fieldErr.Field, Value: fieldErr.Value}
	case errors.As(err, &temporalErr):
		return errorResponse{Error: err.Error(), Field: temporalErr.Field, Value: temporalErr.Value}
	case errors.As(err, &shapeErr):
		return errorResponse{Error: err.Error(), Field: "views", Value: shapeErr.Value}
	default:
		return errorResponse{Error: err.Error()}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", "error", err)
	}
}
