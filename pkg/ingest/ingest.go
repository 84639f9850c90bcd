// Package ingest fetches the raw OWID energy dataset, loads it into
// ClickHouse, and records provenance. Plan validation never consults this
// package: callers reconcile a plan's year range against the reported bounds
// before executing queries.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Config struct {
	Logger  *slog.Logger
	Fetcher *Fetcher
	Store   *Store
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Fetcher == nil {
		return errors.New("fetcher is required")
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	return nil
}

// Ingestor ties fetch and load together behind one idempotent entry point.
type Ingestor struct {
	cfg Config
}

func New(cfg Config) (*Ingestor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Ingestor{cfg: cfg}, nil
}

type EnsureOptions struct {
	// ForceFetch re-downloads even when a cached CSV exists.
	ForceFetch bool
	// Replace drops and rebuilds the table instead of keeping an existing
	// one.
	Replace bool
}

// Result is the outcome of one EnsureLoaded run: what was fetched, what was
// loaded, and the year coverage of the loaded data.
type Result struct {
	Fetch   FetchResult
	Load    *LoadResult
	MinYear int
	MaxYear int
}

// EnsureLoaded is the one-call path: fetch or reuse the CSV, load it unless
// the table already exists, verify the required columns, and report year
// bounds. Loads that actually happened are recorded in ingest_log.
func (i *Ingestor) EnsureLoaded(ctx context.Context, opts EnsureOptions) (*Result, error) {
	fetch, err := i.cfg.Fetcher.Fetch(ctx, opts.ForceFetch)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}

	load, err := i.cfg.Store.LoadCSV(ctx, fetch.Path, opts.Replace)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	if err := i.cfg.Store.VerifyRequiredColumns(ctx); err != nil {
		return nil, err
	}

	minYear, maxYear, err := i.cfg.Store.YearBounds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read year bounds: %w", err)
	}

	if !load.Skipped {
		if err := i.cfg.Store.RecordFetch(ctx, fetch, load.Rows); err != nil {
			return nil, fmt.Errorf("failed to record ingest: %w", err)
		}
	}

	i.cfg.Logger.Info("dataset ready",
		"table", load.Table,
		"rows", load.Rows,
		"skipped", load.Skipped,
		"from_cache", fetch.FromCache,
		"min_year", minYear,
		"max_year", maxYear,
	)
	return &Result{Fetch: fetch, Load: load, MinYear: minYear, MaxYear: maxYear}, nil
}
