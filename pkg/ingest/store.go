package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/voltaicdata/voltaic/pkg/catalog"
	"github.com/voltaicdata/voltaic/pkg/clickhouse"
	"github.com/voltaicdata/voltaic/pkg/metrics"
)

const (
	// DefaultTable is where the raw dataset lands.
	DefaultTable = "energy_raw"

	// yearColumn is the column coverage bounds are computed over.
	yearColumn = "year"

	loadBatchSize      = 10_000
	foundColumnsSample = 30
)

// RequiredColumns must be present in the loaded table before plans are
// executed against it.
var RequiredColumns = []string{"year", "country", "iso_code"}

// MissingColumnsError reports required columns absent from the loaded
// table. Found carries a sorted sample of what is present, capped so the
// message stays readable on wide datasets.
type MissingColumnsError struct {
	Table   string
	Missing []string
	Found   []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns in %s: [%s], found columns: [%s]",
		e.Table, strings.Join(e.Missing, ", "), strings.Join(e.Found, ", "))
}

// LoadResult describes one load attempt. Skipped means the table already
// existed and replace was not requested.
type LoadResult struct {
	Table   string
	Rows    uint64
	Columns int
	Skipped bool
}

// IngestRecord is one row of the ingest_log provenance table.
type IngestRecord struct {
	FetchID   uuid.UUID `json:"fetch_id"`
	DatasetID string    `json:"dataset_id"`
	SourceURL string    `json:"source_url"`
	SHA256    string    `json:"sha256"`
	SizeBytes uint64    `json:"size_bytes"`
	RowCount  uint64    `json:"row_count"`
	FromCache bool      `json:"from_cache"`
	FetchedAt time.Time `json:"fetched_at"`
	LoadedAt  time.Time `json:"loaded_at"`
}

type StoreConfig struct {
	Logger    *slog.Logger
	Client    clickhouse.Client
	Table     string
	DatasetID string
	Clock     clockwork.Clock
}

func (c *StoreConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Client == nil {
		return errors.New("clickhouse client is required")
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.DatasetID == "" {
		c.DatasetID = catalog.DatasetOWIDEnergy
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Store loads the raw dataset into ClickHouse and answers schema and
// coverage questions about it.
type Store struct {
	cfg StoreConfig
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Store{cfg: cfg}, nil
}

// Table returns the table the store loads into.
func (s *Store) Table() string { return s.cfg.Table }

// LoadCSV loads the CSV at path into the store's table. With replace false
// an existing table is left untouched; with replace true it is dropped and
// rebuilt. The file is scanned once for schema inference, then streamed
// into insert batches.
func (s *Store) LoadCSV(ctx context.Context, path string, replace bool) (res *LoadResult, err error) {
	start := time.Now()
	defer func() {
		var rows uint64
		skipped := false
		if res != nil {
			rows, skipped = res.Rows, res.Skipped
		}
		metrics.RecordLoad(rows, skipped, time.Since(start), err)
	}()

	conn, err := s.cfg.Client.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	exists, err := s.tableExists(ctx, conn)
	if err != nil {
		return nil, err
	}
	if exists && !replace {
		rows, err := s.RowCount(ctx)
		if err != nil {
			return nil, err
		}
		s.cfg.Logger.Info("table already loaded, skipping", "table", s.cfg.Table, "rows", rows)
		return &LoadResult{Table: s.cfg.Table, Rows: rows, Skipped: true}, nil
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	schema, rowCount, err := InferSchema(fh)
	fh.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to infer csv schema: %w", err)
	}

	ctx = clickhouse.ContextWithSyncInsert(ctx)
	if replace {
		if err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS `%s`", s.cfg.Table)); err != nil {
			return nil, fmt.Errorf("failed to drop table: %w", err)
		}
	}
	if err := conn.Exec(ctx, createTableSQL(s.cfg.Table, schema)); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	if err := s.streamCSV(ctx, conn, path, schema); err != nil {
		return nil, err
	}

	s.cfg.Logger.Info("loaded dataset",
		"table", s.cfg.Table,
		"rows", rowCount,
		"columns", len(schema),
		"elapsed", time.Since(start),
	)
	return &LoadResult{Table: s.cfg.Table, Rows: uint64(rowCount), Columns: len(schema)}, nil
}

func (s *Store) streamCSV(ctx context.Context, conn clickhouse.Connection, path string, schema []Column) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open csv: %w", err)
	}
	defer fh.Close()

	cr := csv.NewReader(fh)
	cr.ReuseRecord = true
	if _, err := cr.Read(); err != nil {
		return fmt.Errorf("failed to read csv header: %w", err)
	}

	insertQuery := fmt.Sprintf("INSERT INTO `%s`", s.cfg.Table)
	batch, err := conn.PrepareBatch(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	appended := 0
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read csv row %d: %w", row+1, err)
		}
		row++

		vals := make([]any, len(schema))
		for i, cell := range rec {
			v, err := ParseValue(schema[i].Kind, cell)
			if err != nil {
				return fmt.Errorf("failed to parse column %q on row %d: %w", schema[i].Name, row, err)
			}
			vals[i] = v
		}
		if err := batch.Append(vals...); err != nil {
			return fmt.Errorf("failed to append row %d: %w", row, err)
		}
		appended++

		if appended == loadBatchSize {
			if err := batch.Send(); err != nil {
				return fmt.Errorf("failed to send batch: %w", err)
			}
			batch, err = conn.PrepareBatch(ctx, insertQuery)
			if err != nil {
				return fmt.Errorf("failed to prepare batch: %w", err)
			}
			appended = 0
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func createTableSQL(table string, cols []Column) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("`%s` %s", c.Name, c.Kind.ClickHouseType()))
	}
	// No meaningful sort key for a raw analytics dump; every query scans.
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (%s) ENGINE = MergeTree ORDER BY tuple()",
		table, strings.Join(parts, ", "))
}

// TableExists reports whether the store's table exists in the current
// database.
func (s *Store) TableExists(ctx context.Context) (bool, error) {
	conn, err := s.cfg.Client.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get connection: %w", err)
	}
	return s.tableExists(ctx, conn)
}

func (s *Store) tableExists(ctx context.Context, conn clickhouse.Connection) (bool, error) {
	rows, err := s.query(ctx, conn,
		"SELECT count() FROM system.tables WHERE database = currentDatabase() AND name = ?", s.cfg.Table)
	if err != nil {
		return false, fmt.Errorf("failed to query system.tables: %w", err)
	}
	defer rows.Close()

	var count uint64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return false, fmt.Errorf("failed to scan table count: %w", err)
		}
	}
	return count > 0, rows.Err()
}

// RowCount returns the number of rows in the loaded table.
func (s *Store) RowCount(ctx context.Context) (uint64, error) {
	conn, err := s.cfg.Client.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	rows, err := s.query(ctx, conn, fmt.Sprintf("SELECT count() FROM `%s`", s.cfg.Table))
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	defer rows.Close()

	var count uint64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to scan row count: %w", err)
		}
	}
	return count, rows.Err()
}

// VerifyRequiredColumns fails with a MissingColumnsError when the loaded
// table lacks any of RequiredColumns.
func (s *Store) VerifyRequiredColumns(ctx context.Context) error {
	conn, err := s.cfg.Client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	rows, err := s.query(ctx, conn,
		"SELECT name FROM system.columns WHERE database = currentDatabase() AND table = ? ORDER BY position", s.cfg.Table)
	if err != nil {
		return fmt.Errorf("failed to query system.columns: %w", err)
	}
	defer rows.Close()

	var found []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan column name: %w", err)
		}
		found = append(found, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read column names: %w", err)
	}
	if len(found) == 0 {
		return fmt.Errorf("table %q not found", s.cfg.Table)
	}

	foundSet := make(map[string]struct{}, len(found))
	for _, name := range found {
		foundSet[name] = struct{}{}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := foundSet[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		sort.Strings(found)
		if len(found) > foundColumnsSample {
			found = found[:foundColumnsSample]
		}
		return &MissingColumnsError{Table: s.cfg.Table, Missing: missing, Found: found}
	}
	return nil
}

// YearBounds reports the [min, max] years actually present in the loaded
// data. Callers reconcile a plan's year range against these before running
// queries.
func (s *Store) YearBounds(ctx context.Context) (int, int, error) {
	conn, err := s.cfg.Client.Conn(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get connection: %w", err)
	}
	// Cast through string so the result is Nullable(Int64) no matter what
	// type inference gave the year column.
	rows, err := s.query(ctx, conn, fmt.Sprintf(
		"SELECT min(toInt64OrNull(toString(`%s`))), max(toInt64OrNull(toString(`%s`))) FROM `%s`",
		yearColumn, yearColumn, s.cfg.Table))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query year bounds: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, 0, fmt.Errorf("no year bounds row returned")
	}
	var minYear, maxYear *int64
	if err := rows.Scan(&minYear, &maxYear); err != nil {
		return 0, 0, fmt.Errorf("failed to scan year bounds: %w", err)
	}
	if minYear == nil || maxYear == nil {
		return 0, 0, fmt.Errorf("table %q has no year values", s.cfg.Table)
	}
	return int(*minYear), int(*maxYear), rows.Err()
}

// RecordFetch appends one ingest_log row tying a fetch to the load that
// materialized it.
func (s *Store) RecordFetch(ctx context.Context, fetch FetchResult, rowCount uint64) error {
	conn, err := s.cfg.Client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	ctx = clickhouse.ContextWithSyncInsert(ctx)
	batch, err := conn.PrepareBatch(ctx, "INSERT INTO ingest_log")
	if err != nil {
		return fmt.Errorf("failed to prepare ingest_log batch: %w", err)
	}
	if err := batch.Append(
		fetch.FetchID,
		s.cfg.DatasetID,
		fetch.SourceURL,
		fetch.SHA256,
		uint64(fetch.SizeBytes),
		rowCount,
		fetch.FromCache,
		fetch.FetchedAt,
		s.cfg.Clock.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to append ingest_log row: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}
	return nil
}

// LastIngest returns the most recent ingest_log row for the store's
// dataset, or nil when nothing has been recorded yet.
func (s *Store) LastIngest(ctx context.Context) (*IngestRecord, error) {
	conn, err := s.cfg.Client.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	rows, err := s.query(ctx, conn, `
		SELECT fetch_id, dataset_id, source_url, sha256, size_bytes, row_count, from_cache, fetched_at, loaded_at
		FROM ingest_log
		WHERE dataset_id = ?
		ORDER BY loaded_at DESC
		LIMIT 1`, s.cfg.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest_log: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var rec IngestRecord
	if err := rows.Scan(
		&rec.FetchID,
		&rec.DatasetID,
		&rec.SourceURL,
		&rec.SHA256,
		&rec.SizeBytes,
		&rec.RowCount,
		&rec.FromCache,
		&rec.FetchedAt,
		&rec.LoadedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan ingest_log row: %w", err)
	}
	return &rec, rows.Err()
}

func (s *Store) query(ctx context.Context, conn clickhouse.Connection, query string, args ...any) (driver.Rows, error) {
	start := time.Now()
	rows, err := conn.Query(ctx, query, args...)
	metrics.RecordClickHouseQuery(time.Since(start), err)
	return rows, err
}
