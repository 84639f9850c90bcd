// Command voltaic is the single binary for the energy chart-plan service.
// It migrates ClickHouse, ingests the OWID energy dataset, validates chart
// plans from files or stdin, plans natural-language questions through the
// LLM, and serves the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/voltaicdata/voltaic/pkg/catalog"
	"github.com/voltaicdata/voltaic/pkg/clickhouse"
	"github.com/voltaicdata/voltaic/pkg/ingest"
	"github.com/voltaicdata/voltaic/pkg/logger"
	"github.com/voltaicdata/voltaic/pkg/metrics"
	"github.com/voltaicdata/voltaic/pkg/plan"
	"github.com/voltaicdata/voltaic/pkg/planner"
	"github.com/voltaicdata/voltaic/pkg/server"
)

// Set via LDFLAGS at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr  = "0.0.0.0:8080"
	defaultMetricsAddr = "0.0.0.0:9090"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Commands
	migrateFlag := flag.Bool("migrate", false, "Run ClickHouse migrations")
	ingestFlag := flag.Bool("ingest", false, "Fetch the OWID energy dataset and load it into ClickHouse")
	showCatalogFlag := flag.Bool("show-catalog", false, "Print the metric catalog as JSON")
	planFlag := flag.String("plan", "", "Validate a plan input JSON file ('-' reads stdin) and print the plan")
	askFlag := flag.String("ask", "", "Plan a natural-language question with the LLM planner")
	serveFlag := flag.Bool("serve", false, "Serve the HTTP API")

	// Options
	verboseFlag := flag.Bool("verbose", false, "Enable verbose logging")
	forceDownloadFlag := flag.Bool("force-download", false, "Re-download the dataset even when a cached copy exists")
	replaceTableFlag := flag.Bool("replace-table", false, "Drop and reload the dataset table")
	sourceURLFlag := flag.String("source-url", ingest.DefaultSourceURL, "Dataset CSV source URL")
	cacheDirFlag := flag.String("cache-dir", ingest.DefaultCacheDir, "Directory for the cached dataset CSV")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "Address to listen on for the HTTP API")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics (empty disables)")

	// ClickHouse configuration
	clickhouseAddrFlag := flag.String("clickhouse-addr", "", "ClickHouse native address host:port (or set CLICKHOUSE_ADDR_TCP env var)")
	clickhouseDatabaseFlag := flag.String("clickhouse-database", "", "ClickHouse database (or set CLICKHOUSE_DATABASE env var)")
	clickhouseUsernameFlag := flag.String("clickhouse-username", "", "ClickHouse username (or set CLICKHOUSE_USERNAME env var)")
	clickhousePasswordFlag := flag.String("clickhouse-password", "", "ClickHouse password (or set CLICKHOUSE_PASSWORD env var)")
	clickhouseSecureFlag := flag.Bool("clickhouse-secure", false, "Use TLS for ClickHouse (or set CLICKHOUSE_SECURE=true)")

	flag.Parse()

	// .env is optional and never overrides real environment variables.
	_ = godotenv.Load()

	log := logger.New(os.Stderr, *verboseFlag)

	if *clickhouseAddrFlag == "" {
		*clickhouseAddrFlag = os.Getenv("CLICKHOUSE_ADDR_TCP")
	}
	if *clickhouseDatabaseFlag == "" {
		*clickhouseDatabaseFlag = os.Getenv("CLICKHOUSE_DATABASE")
	}
	if *clickhouseDatabaseFlag == "" {
		*clickhouseDatabaseFlag = clickhouse.DefaultDatabase
	}
	if *clickhouseUsernameFlag == "" {
		*clickhouseUsernameFlag = os.Getenv("CLICKHOUSE_USERNAME")
	}
	if *clickhousePasswordFlag == "" {
		*clickhousePasswordFlag = os.Getenv("CLICKHOUSE_PASSWORD")
	}
	if !*clickhouseSecureFlag {
		*clickhouseSecureFlag = os.Getenv("CLICKHOUSE_SECURE") == "true"
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("SENTRY_ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      environment,
			Release:          version,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chCfg := clickhouse.Config{
		Logger:   log,
		Addr:     *clickhouseAddrFlag,
		Database: *clickhouseDatabaseFlag,
		Username: *clickhouseUsernameFlag,
		Password: *clickhousePasswordFlag,
		Secure:   *clickhouseSecureFlag,
	}

	cat := catalog.Default()
	builder, err := plan.NewBuilder(plan.BuilderConfig{Logger: log, Catalog: cat})
	if err != nil {
		return fmt.Errorf("failed to create plan builder: %w", err)
	}

	ran := false

	if *migrateFlag {
		ran = true
		if chCfg.Addr == "" {
			return fmt.Errorf("--clickhouse-addr is required for --migrate")
		}
		if err := clickhouse.Up(ctx, log, clickhouse.MigrationConfig{
			Addr:     chCfg.Addr,
			Database: chCfg.Database,
			Username: chCfg.Username,
			Password: chCfg.Password,
			Secure:   chCfg.Secure,
		}); err != nil {
			return err
		}
	}

	if *ingestFlag {
		ran = true
		if chCfg.Addr == "" {
			return fmt.Errorf("--clickhouse-addr is required for --ingest")
		}
		if err := runIngest(ctx, log, chCfg, *sourceURLFlag, *cacheDirFlag, *forceDownloadFlag, *replaceTableFlag); err != nil {
			return err
		}
	}

	if *showCatalogFlag {
		ran = true
		if err := printCatalog(os.Stdout, cat); err != nil {
			return err
		}
	}

	if *planFlag != "" {
		ran = true
		if err := runPlanFile(os.Stdout, builder, *planFlag); err != nil {
			return err
		}
	}

	if *askFlag != "" {
		ran = true
		if err := runAsk(ctx, os.Stdout, log, cat, builder, *askFlag); err != nil {
			return err
		}
	}

	if *serveFlag {
		ran = true
		if err := runServe(ctx, log, chCfg, cat, builder, *listenAddrFlag, *metricsAddrFlag); err != nil {
			return err
		}
	}

	if !ran {
		flag.Usage()
	}
	return nil
}

func runIngest(ctx context.Context, log *slog.Logger, chCfg clickhouse.Config, sourceURL, cacheDir string, force, replace bool) error {
	client, err := clickhouse.NewClient(ctx, chCfg)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	defer client.Close()

	fetcher, err := ingest.NewFetcher(ingest.FetcherConfig{
		Logger:    log,
		SourceURL: sourceURL,
		CacheDir:  cacheDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}
	store, err := ingest.NewStore(ingest.StoreConfig{Logger: log, Client: client})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	ingestor, err := ingest.New(ingest.Config{Logger: log, Fetcher: fetcher, Store: store})
	if err != nil {
		return fmt.Errorf("failed to create ingestor: %w", err)
	}

	_, err = ingestor.EnsureLoaded(ctx, ingest.EnsureOptions{ForceFetch: force, Replace: replace})
	return err
}

func runServe(ctx context.Context, log *slog.Logger, chCfg clickhouse.Config, cat *catalog.Catalog, builder *plan.Builder, listenAddr, metricsAddr string) error {
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	cfg := server.Config{
		Logger:      log,
		Catalog:     cat,
		Builder:     builder,
		ListenAddr:  listenAddr,
		MetricsAddr: metricsAddr,
		VersionInfo: server.VersionInfo{Version: version, Commit: commit, Date: date},
	}

	if chCfg.Addr != "" {
		client, err := clickhouse.NewClient(ctx, chCfg)
		if err != nil {
			return fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		defer client.Close()
		store, err := ingest.NewStore(ingest.StoreConfig{Logger: log, Client: client})
		if err != nil {
			return fmt.Errorf("failed to create store: %w", err)
		}
		cfg.ClickHouse = client
		cfg.Store = store
	} else {
		log.Warn("no ClickHouse address configured, coverage endpoint disabled")
	}

	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		pl, err := newPlanner(log, cat, builder)
		if err != nil {
			return err
		}
		cfg.Planner = pl
	} else {
		log.Warn("ANTHROPIC_API_KEY not set, planner endpoint disabled")
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Run(ctx)
}

func runAsk(ctx context.Context, w io.Writer, log *slog.Logger, cat *catalog.Catalog, builder *plan.Builder, question string) error {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required for --ask")
	}
	pl, err := newPlanner(log, cat, builder)
	if err != nil {
		return err
	}
	res, err := pl.Plan(ctx, question)
	if err != nil {
		return err
	}
	return printPlan(w, res.Plan, res.Repairs)
}

func newPlanner(log *slog.Logger, cat *catalog.Catalog, builder *plan.Builder) (*planner.Planner, error) {
	llm, err := planner.NewAnthropicClient(planner.AnthropicConfig{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}
	pl, err := planner.New(planner.Config{
		Logger:  log,
		LLM:     llm,
		Catalog: cat,
		Builder: builder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create planner: %w", err)
	}
	return pl, nil
}

func runPlanFile(w io.Writer, builder *plan.Builder, path string) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read plan input: %w", err)
	}

	var in plan.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode plan input: %w", err)
	}
	p, err := builder.Build(in)
	if err != nil {
		return err
	}
	return printPlan(w, p, 0)
}

func printPlan(w io.Writer, p *plan.Plan, repairs int) error {
	out := struct {
		Plan    *plan.Plan         `json:"plan"`
		Metric  catalog.MetricSpec `json:"metric"`
		Repairs int                `json:"repairs,omitempty"`
	}{Plan: p, Metric: p.Metric(), Repairs: repairs}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printCatalog(w io.Writer, cat *catalog.Catalog) error {
	type dataset struct {
		DatasetID string               `json:"dataset_id"`
		Metrics   []catalog.MetricSpec `json:"metrics"`
	}
	out := make([]dataset, 0, len(cat.DatasetIDs()))
	for _, ds := range cat.DatasetIDs() {
		specs, err := cat.Metrics(ds)
		if err != nil {
			return err
		}
		out = append(out, dataset{DatasetID: ds, Metrics: specs})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
