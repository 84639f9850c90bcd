package server

import (
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/voltaicdata/voltaic/pkg/catalog"
	"github.com/voltaicdata/voltaic/pkg/clickhouse"
	"github.com/voltaicdata/voltaic/pkg/ingest"
	"github.com/voltaicdata/voltaic/pkg/plan"
	"github.com/voltaicdata/voltaic/pkg/planner"
)

// VersionInfo contains build-time version information.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type Config struct {
	Logger  *slog.Logger
	Catalog *catalog.Catalog
	Builder *plan.Builder

	// Planner serves POST /api/planner/plans. Nil disables the endpoint
	// with a 503 instead of failing startup, so the API runs without an
	// LLM key.
	Planner *planner.Planner

	// Store backs GET /api/coverage. Nil disables the endpoint with a 503.
	Store *ingest.Store

	// ClickHouse, when set, is pinged by GET /readyz.
	ClickHouse clickhouse.Client

	ListenAddr string

	// MetricsAddr serves Prometheus metrics on a second listener. Empty
	// disables it.
	MetricsAddr string

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	VersionInfo       VersionInfo

	// Per-IP rate for the planner endpoint, the one path that spends LLM
	// tokens.
	PlannerRate  rate.Limit
	PlannerBurst int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Catalog == nil {
		return errors.New("catalog is required")
	}
	if cfg.Builder == nil {
		return errors.New("plan builder is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.PlannerRate == 0 {
		cfg.PlannerRate = rate.Every(time.Minute / 10)
	}
	if cfg.PlannerBurst == 0 {
		cfg.PlannerBurst = 3
	}
	return nil
}
