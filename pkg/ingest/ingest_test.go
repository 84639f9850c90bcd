package ingest

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/voltaicdata/voltaic/pkg/retry"
	"github.com/voltaicdata/voltaic/pkg/voltaictesting"
)

func newTestIngestor(t *testing.T, sourceURL string) *Ingestor {
	t.Helper()
	log := voltaictesting.NewLogger()
	clock := clockwork.NewFakeClockAt(testLoadTime)

	fetcher, err := NewFetcher(FetcherConfig{
		Logger:    log,
		SourceURL: sourceURL,
		CacheDir:  t.TempDir(),
		Retry:     retry.Config{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		Clock:     clock,
	})
	require.NoError(t, err)

	store, err := NewStore(StoreConfig{
		Logger: log,
		Client: testClient(t),
		Clock:  clock,
	})
	require.NoError(t, err)

	ing, err := New(Config{Logger: log, Fetcher: fetcher, Store: store})
	require.NoError(t, err)
	return ing
}

func TestVoltaic_Ingest_EnsureLoaded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCSV))
	}))
	t.Cleanup(srv.Close)

	ing := newTestIngestor(t, srv.URL)
	ctx := t.Context()

	res, err := ing.EnsureLoaded(ctx, EnsureOptions{})
	require.NoError(t, err)
	require.False(t, res.Fetch.FromCache)
	require.False(t, res.Load.Skipped)
	require.Equal(t, uint64(4), res.Load.Rows)
	require.Equal(t, 2000, res.MinYear)
	require.Equal(t, 2005, res.MaxYear)

	rec, err := ing.cfg.Store.LastIngest(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, res.Fetch.FetchID, rec.FetchID)
	require.Equal(t, uint64(4), rec.RowCount)

	// Second run reuses the cache and keeps the existing table, so no new
	// provenance row is written.
	res2, err := ing.EnsureLoaded(ctx, EnsureOptions{})
	require.NoError(t, err)
	require.True(t, res2.Fetch.FromCache)
	require.True(t, res2.Load.Skipped)
	require.Equal(t, uint64(4), res2.Load.Rows)
	require.Equal(t, 2000, res2.MinYear)
	require.Equal(t, 2005, res2.MaxYear)

	rec2, err := ing.cfg.Store.LastIngest(ctx)
	require.NoError(t, err)
	require.Equal(t, rec.FetchID, rec2.FetchID)
}

func TestVoltaic_Ingest_EnsureLoaded_MissingColumns(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("country,value\nGermany,1\n"))
	}))
	t.Cleanup(srv.Close)

	ing := newTestIngestor(t, srv.URL)

	_, err := ing.EnsureLoaded(t.Context(), EnsureOptions{})
	var missingErr *MissingColumnsError
	require.ErrorAs(t, err, &missingErr)
	require.Equal(t, []string{"iso_code", "year"}, missingErr.Missing)
}

func TestVoltaic_Ingest_Config_Validate(t *testing.T) {
	t.Parallel()

	log := voltaictesting.NewLogger()
	fetcher, err := NewFetcher(FetcherConfig{Logger: log, CacheDir: t.TempDir()})
	require.NoError(t, err)

	_, err = New(Config{})
	require.ErrorContains(t, err, "logger is required")

	_, err = New(Config{Logger: log})
	require.ErrorContains(t, err, "fetcher is required")

	_, err = New(Config{Logger: log, Fetcher: fetcher})
	require.ErrorContains(t, err, "store is required")
}

func TestVoltaic_Ingest_StoreConfig_Validate(t *testing.T) {
	t.Parallel()

	_, err := NewStore(StoreConfig{})
	require.ErrorContains(t, err, "logger is required")

	_, err = NewStore(StoreConfig{Logger: voltaictesting.NewLogger()})
	require.ErrorContains(t, err, "clickhouse client is required")

	cfg := StoreConfig{Logger: voltaictesting.NewLogger(), Client: testClient(t)}
	store, err := NewStore(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultTable, store.Table())
	require.Equal(t, "owid_energy", store.cfg.DatasetID)
	require.NotNil(t, store.cfg.Clock)
}
