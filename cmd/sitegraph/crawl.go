package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegraph/internal/config"
	"github.com/nao1215/sitegraph/internal/crawler"
	"github.com/nao1215/sitegraph/internal/database"
	"github.com/nao1215/sitegraph/internal/graph"
	"github.com/nao1215/sitegraph/internal/log"
	"github.com/nao1215/sitegraph/internal/report"
	"github.com/nao1215/sitegraph/internal/transport"
)

// siteFlags maps site file settings to the flags that override them.
var siteFlags = map[string]string{
	"basePath":  "base-path",
	"workers":   "workers",
	"userAgent": "user-agent",
	"cookie":    "cookie",
	"headers":   "header",
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a site from a seed URL and log its link graph",
		Long: `Crawl fetches the seed page, extracts its links and follows every link
whose path starts with the base path. Each page is visited once.

For every page the log receives one block: a "topic - url" line for the
page, one " |-topic - url" line per page first discovered on it, then a
blank line.

Examples:
  # Crawl Wikipedia sequentially in breadth-first order
  sitegraph crawl https://en.wikipedia.org/wiki/Graph_theory

  # Crawl with 16 workers and write the log to stdout
  sitegraph crawl -w 16 -o - https://en.wikipedia.org/wiki/Graph_theory

  # Crawl a documentation site through a SOCKS5 proxy
  sitegraph crawl -b /docs -e 127.0.0.1:9050 https://example.com/docs/

  # Store the run in the database and print a JSON summary
  sitegraph crawl --db -s json https://en.wikipedia.org/wiki/Graph_theory

Configuration file (.sitegraph) example:
  sites:
    en.wikipedia.org:
      basePath: /wiki
      workers: 8
    docs.example.com:
      basePath: /manual
      cookie: "session_id=abc123"`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent workers (0 crawls sequentially in BFS order)")
	cmd.Flags().StringP("output", "o", config.DefaultOutput,
		"Crawl log file path (- for stdout)")
	cmd.Flags().StringP("base-path", "b", config.DefaultBasePath,
		"Path prefix links must start with to be followed")

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request (0 disables it)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes read per page")
	cmd.Flags().String("cookie", "",
		"Cookie sent with every request (name=value; name2=value2)")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header "Name: value" (repeatable)`)

	// Transport flags
	cmd.Flags().StringP("proxy", "e", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and crawl through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Storage flags
	cmd.Flags().Bool("db", false,
		"Store the run and its graph in the SQLite database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Database directory")

	// Summary flags
	cmd.Flags().StringP("summary", "s", config.DefaultSummaryFormat,
		"Summary format: text, json, markdown or none")
	cmd.Flags().String("summary-file", "",
		"Write the summary to this file instead of stderr")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitegraph in current or home directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger creates the secure logger selected by --log-json.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonLogs, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck // missing flag means text logs
	}
	if jsonLogs {
		return log.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return log.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}

// buildConfig creates a Config from cobra command flags and the site file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if len(args) > 0 {
		cfg.Seed = args[0]
	}

	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.BasePath, err = flags.GetString("base-path"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
		return nil, err
	}

	rawHeaders, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = parseHeaders(rawHeaders); err != nil {
		return nil, err
	}

	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = flags.GetBool("db"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.SummaryFormat, err = flags.GetString("summary"); err != nil {
		return nil, err
	}
	if cfg.SummaryFile, err = flags.GetString("summary-file"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// If the user named a config file, it must exist.
	// Otherwise a missing file means no site settings.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.ApplySite(cfg.SiteConfigs.GetSiteConfig(cfg.Host()), func(name string) bool {
		return flags.Changed(siteFlags[name])
	})

	return cfg, nil
}

// parseHeaders parses "Name: value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers[http.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runCrawl executes one crawl run and writes its summary.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	client, stopTransport, err := newHTTPClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stopTransport()

	output, closeOutput, err := openOutput(cfg.Output, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	logRecorder := graph.NewLogRecorder(output)
	defer logRecorder.Close()

	collector := report.NewCollector(report.DefaultHubLimit, report.DefaultFailedLimit)
	recorders := []graph.Recorder{logRecorder, collector}

	run := report.Run{
		Seed:      cfg.Seed,
		BasePath:  cfg.BasePath,
		Workers:   cfg.Workers,
		StartedAt: time.Now(),
		Output:    cfg.Output,
	}

	// Records and the final run state are stored even after the crawl
	// context is cancelled.
	storeCtx := context.WithoutCancel(ctx)

	var db *database.GraphDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		run.ID, err = db.BeginRun(ctx, cfg.Seed, cfg.BasePath, cfg.Workers)
		if err != nil {
			return err
		}
		recorders = append(recorders, database.NewRecorder(storeCtx, db, run.ID))
		logger.Info("database opened", "path", db.Path(), "run", run.ID)
	}

	source := crawler.NewHTTPSource(client,
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
	)
	engine := crawler.NewEngine(source, crawler.NewHTMLExtractor(), graph.NewMultiRecorder(recorders...),
		crawler.WithSite(cfg.Origin(), cfg.BasePath),
		crawler.WithLogger(logger),
	)

	logger.Info("starting crawl",
		"seed", cfg.Seed,
		"basePath", cfg.BasePath,
		"workers", cfg.Workers,
		"output", cfg.Output,
	)

	stats, crawlErr := crawler.NewScheduler(engine, cfg.Workers).Crawl(ctx, cfg.Seed)
	summary := report.NewSummary(run, stats, crawlErr, collector)

	logger.Info("crawl finished",
		"status", summary.Status,
		"recorded", stats.Recorded,
		"elapsed", stats.Elapsed,
	)

	if db != nil {
		totals := database.RunTotals{
			Claimed:       stats.Claimed,
			Recorded:      stats.Recorded,
			FailedFetches: stats.FailedFetches,
			Edges:         stats.Edges,
			Elapsed:       stats.Elapsed,
		}
		if err := db.FinishRun(storeCtx, run.ID, runStatus(summary.Status), totals); err != nil {
			logger.Error("failed to finish run", "run", run.ID, "error", err)
		}
	}

	if err := writeSummary(cfg, summary, stderr); err != nil {
		logger.Error("failed to write summary", "error", err)
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl %s: %w", summary.Status, crawlErr)
	}
	return nil
}

// newHTTPClient builds the client for the configured transport. The
// returned stop function releases the embedded Tor daemon, if any.
func newHTTPClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*http.Client, func(), error) {
	opts := transport.Options{
		Timeout: cfg.Timeout,
		Cookie:  cfg.Cookie,
		Headers: cfg.Headers,
	}
	noop := func() {}

	switch {
	case cfg.UseTor:
		tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
		logger.Info("starting embedded Tor daemon", "timeout", cfg.TorStartupTimeout)
		if err := tor.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("tor startup failed: %w", err)
		}
		stop := func() {
			logger.Info("stopping embedded Tor daemon")
			if err := tor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		client, err := tor.NewHTTPClient(opts)
		if err != nil {
			stop()
			return nil, noop, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		logger.Info("embedded Tor daemon ready", "socks", tor.SocksAddr())
		return client, stop, nil

	case cfg.ProxyAddress != "":
		if err := transport.ValidateProxyAddress(cfg.ProxyAddress); err != nil {
			return nil, noop, err
		}
		if status := transport.CheckProxy(ctx, cfg.ProxyAddress); status != transport.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Err(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		opts.ProxyAddress = cfg.ProxyAddress
	}

	client, err := transport.NewHTTPClient(opts)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, noop, nil
}

// openOutput opens the crawl log. Each run truncates an existing file.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == config.StdoutOutput {
		return stdout, func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Error("failed to close output file", "path", path, "error", err)
		}
	}, nil
}

// writeSummary renders the summary to --summary-file or stderr.
func writeSummary(cfg *config.Config, summary *report.Summary, stderr io.Writer) error {
	if cfg.SummaryFormat == config.SummaryNone {
		return nil
	}

	out := stderr
	if cfg.SummaryFile != "" {
		if dir := filepath.Dir(cfg.SummaryFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create summary directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.SummaryFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided summary path is intentional
		if err != nil {
			return fmt.Errorf("failed to create summary file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, err := report.NewWriter(cfg.SummaryFormat, out)
	if err != nil {
		return err
	}
	if _, err := w.Write(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// runStatus converts a summary status to the stored run status.
func runStatus(status string) database.RunStatus {
	switch status {
	case report.StatusCompleted:
		return database.RunCompleted
	case report.StatusCancelled:
		return database.RunCancelled
	default:
		return database.RunFailed
	}
}
