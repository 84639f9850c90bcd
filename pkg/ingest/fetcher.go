package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/voltaicdata/voltaic/pkg/metrics"
	"github.com/voltaicdata/voltaic/pkg/retry"
)

// Source defaults for the OWID energy dataset. If OWID moves or renames the
// file, update the URL here only.
const (
	DefaultSourceURL = "https://raw.githubusercontent.com/owid/energy-data/master/owid-energy-data.csv"
	DefaultCacheDir  = "data/owid"
	cacheFileName    = "owid-energy-data.csv"
)

// FetchResult describes one fetch-or-reuse of the raw dataset.
type FetchResult struct {
	FetchID   uuid.UUID
	Path      string
	SourceURL string
	SHA256    string
	SizeBytes int64
	FromCache bool
	FetchedAt time.Time
}

// HTTPStatusError reports a non-OK response from the dataset source. It
// exposes the status code so retry classification can tell 404 from 503.
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

func (e *HTTPStatusError) StatusCode() int { return e.Code }

type FetcherConfig struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	SourceURL  string
	CacheDir   string
	Retry      retry.Config
	Clock      clockwork.Clock
}

func (c *FetcherConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if c.SourceURL == "" {
		c.SourceURL = DefaultSourceURL
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultConfig()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Fetcher downloads the raw dataset CSV into a local cache, or reuses the
// cached copy.
type Fetcher struct {
	cfg       FetcherConfig
	cachePath string
}

func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Fetcher{
		cfg:       cfg,
		cachePath: filepath.Join(cfg.CacheDir, cacheFileName),
	}, nil
}

// CachePath returns where the fetched CSV lives locally.
func (f *Fetcher) CachePath() string { return f.cachePath }

// Fetch returns a handle to the current raw dataset. An existing cached
// file is reused unless force is set. Downloads stream through a temp file
// and are renamed into place, so the cache never holds a partial CSV.
func (f *Fetcher) Fetch(ctx context.Context, force bool) (FetchResult, error) {
	start := time.Now()
	res, err := f.fetch(ctx, force)
	metrics.RecordFetch(res.FromCache, time.Since(start), err)
	return res, err
}

func (f *Fetcher) fetch(ctx context.Context, force bool) (FetchResult, error) {
	if !force {
		if _, err := os.Stat(f.cachePath); err == nil {
			sha, size, err := fileSHA256(f.cachePath)
			if err != nil {
				return FetchResult{}, fmt.Errorf("failed to hash cached dataset: %w", err)
			}
			f.cfg.Logger.Info("reusing cached dataset", "path", f.cachePath, "sha256", sha, "size_bytes", size)
			return FetchResult{
				FetchID:   uuid.New(),
				Path:      f.cachePath,
				SourceURL: f.cfg.SourceURL,
				SHA256:    sha,
				SizeBytes: size,
				FromCache: true,
				FetchedAt: f.cfg.Clock.Now().UTC(),
			}, nil
		}
	}

	if err := os.MkdirAll(f.cfg.CacheDir, 0o755); err != nil {
		return FetchResult{}, fmt.Errorf("failed to create cache dir: %w", err)
	}

	f.cfg.Logger.Info("downloading dataset", "url", f.cfg.SourceURL)
	var sha string
	var size int64
	err := retry.Do(ctx, f.cfg.Retry, func() error {
		var err error
		sha, size, err = f.download(ctx)
		return err
	})
	if err != nil {
		return FetchResult{}, fmt.Errorf("failed to download dataset: %w", err)
	}
	f.cfg.Logger.Info("downloaded dataset", "path", f.cachePath, "sha256", sha, "size_bytes", size)

	return FetchResult{
		FetchID:   uuid.New(),
		Path:      f.cachePath,
		SourceURL: f.cfg.SourceURL,
		SHA256:    sha,
		SizeBytes: size,
		FetchedAt: f.cfg.Clock.Now().UTC(),
	}, nil
}

func (f *Fetcher) download(ctx context.Context) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.SourceURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, &HTTPStatusError{URL: f.cfg.SourceURL, Code: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(f.cfg.CacheDir, cacheFileName+".tmp-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.cachePath); err != nil {
		return "", 0, fmt.Errorf("failed to move dataset into cache: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}

func fileSHA256(path string) (string, int64, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer fh.Close()
	hash := sha256.New()
	size, err := io.Copy(hash, fh)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
