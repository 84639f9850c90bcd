package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/voltaicdata/voltaic/pkg/retry"
	"github.com/voltaicdata/voltaic/pkg/voltaictesting"
)

var testFetchTime = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func newTestFetcher(t *testing.T, url string) *Fetcher {
	t.Helper()
	f, err := NewFetcher(FetcherConfig{
		Logger:    voltaictesting.NewLogger(),
		SourceURL: url,
		CacheDir:  t.TempDir(),
		Retry: retry.Config{
			MaxAttempts: 3,
			BaseBackoff: time.Millisecond,
			MaxBackoff:  5 * time.Millisecond,
		},
		Clock: clockwork.NewFakeClockAt(testFetchTime),
	})
	require.NoError(t, err)
	return f
}

func TestVoltaic_Ingest_Fetcher_DownloadThenCache(t *testing.T) {
	t.Parallel()

	payload := "country,iso_code,year\nGermany,DEU,2000\n"
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)

	res, err := f.Fetch(context.Background(), false)
	require.NoError(t, err)
	require.False(t, res.FromCache)
	require.Equal(t, int64(len(payload)), res.SizeBytes)
	require.Equal(t, fmt.Sprintf("%x", sha256.Sum256([]byte(payload))), res.SHA256)
	require.Equal(t, srv.URL, res.SourceURL)
	require.Equal(t, f.CachePath(), res.Path)
	require.FileExists(t, res.Path)
	require.NotEqual(t, uuid.Nil, res.FetchID)
	require.True(t, res.FetchedAt.Equal(testFetchTime))
	require.Equal(t, 1, hits)

	// Second fetch reuses the cache without touching the network but still
	// gets a fresh fetch id.
	res2, err := f.Fetch(context.Background(), false)
	require.NoError(t, err)
	require.True(t, res2.FromCache)
	require.Equal(t, res.SHA256, res2.SHA256)
	require.NotEqual(t, res.FetchID, res2.FetchID)
	require.Equal(t, 1, hits)

	// Force bypasses the cache.
	res3, err := f.Fetch(context.Background(), true)
	require.NoError(t, err)
	require.False(t, res3.FromCache)
	require.Equal(t, 2, hits)
}

func TestVoltaic_Ingest_Fetcher_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	payload := "country,iso_code,year\nGermany,DEU,2000\n"
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)

	res, err := f.Fetch(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 3, hits)
	require.Equal(t, int64(len(payload)), res.SizeBytes)
}

func TestVoltaic_Ingest_Fetcher_NotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)

	_, err := f.Fetch(context.Background(), false)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.Equal(t, 1, hits)
}

func TestVoltaic_Ingest_Fetcher_ConfigDefaults(t *testing.T) {
	t.Parallel()

	_, err := NewFetcher(FetcherConfig{})
	require.ErrorContains(t, err, "logger is required")

	f, err := NewFetcher(FetcherConfig{Logger: voltaictesting.NewLogger()})
	require.NoError(t, err)
	require.Equal(t, DefaultSourceURL, f.cfg.SourceURL)
	require.Equal(t, DefaultCacheDir, f.cfg.CacheDir)
	require.Equal(t, retry.DefaultConfig(), f.cfg.Retry)
	require.NotNil(t, f.cfg.HTTPClient)
	require.NotNil(t, f.cfg.Clock)

	var permanent *HTTPStatusError
	require.False(t, errors.As(errors.New("plain"), &permanent))
}
