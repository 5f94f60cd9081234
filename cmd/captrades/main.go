// captrades: congressional trade disclosure tracker.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/captrades/captrades/api"
	"github.com/captrades/captrades/internal/aggregate"
	"github.com/captrades/captrades/internal/config"
	"github.com/captrades/captrades/internal/efd"
	"github.com/captrades/captrades/internal/reconcile"
	"github.com/captrades/captrades/internal/roster"
	"github.com/captrades/captrades/internal/store"
	"github.com/captrades/captrades/internal/tickerdata"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set in PersistentPreRunE.
var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "captrades",
	Short: "Congressional trade disclosure tracker",
	Long: `captrades ingests periodic transaction reports from the Senate
financial-disclosure portal, reconciles them against the congressional
roster, enriches traded tickers with market data, and serves the result
over a REST API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		log = buildLogger(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(historicalCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(serveCmd)
}

func buildLogger(lc config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if lc.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// openStore builds the store the config selects.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DSN == "" {
			return nil, fmt.Errorf("store driver postgres requires store.dsn (or CAPTRADES_STORE_DSN)")
		}
		return store.NewPostgres(ctx, cfg.Store.DSN)
	case "memory", "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newAggregator(st store.Store) *aggregate.Engine {
	return aggregate.New(st, cfg.Summary.Windows, log)
}

func newReconciler(st store.Store) *reconcile.Engine {
	enricher := tickerdata.NewEnricher(
		cfg.Enrich.BaseURL,
		time.Duration(cfg.Enrich.CacheTTLSec)*time.Second,
		cfg.Enrich.RatePerSec,
		log,
	)
	return reconcile.NewEngine(st, enricher, newAggregator(st), log)
}

func runUpdate(ctx context.Context, st store.Store, since, lastName string) (*reconcile.Report, error) {
	session := efd.NewSession(cfg.EFD.BaseURL, log)
	scraper := efd.NewScraper(session, cfg.EFD.RecordDelay(), log)

	records, err := scraper.FetchSince(ctx, since, lastName)
	if err != nil {
		return nil, fmt.Errorf("scrape filings: %w", err)
	}
	return newReconciler(st).Ingest(ctx, records)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("captrades %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Roster Command ---

var rosterCmd = &cobra.Command{
	Use:   "roster [file]",
	Short: "Load the congressional roster",
	Long: `Load current and historical members of Congress from the
unitedstates-project datasets, or from a local dataset file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		loader := roster.NewLoader(roster.Options{
			CurrentURL:    cfg.Roster.CurrentURL,
			HistoricalURL: cfg.Roster.HistoricalURL,
			ImageBaseURL:  cfg.Roster.ImageBaseURL,
			VerifyImages:  cfg.Roster.VerifyImages,
		}, st, log)

		var n int
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			n, err = loader.LoadFile(ctx, f)
			if err != nil {
				return err
			}
		} else {
			n, err = loader.Refresh(ctx)
			if err != nil {
				return err
			}
		}

		fmt.Printf("Loaded %d members of Congress\n", n)
		return nil
	},
}

// --- Historical Command ---

var historicalCmd = &cobra.Command{
	Use:   "historical [file]",
	Short: "Ingest an archived transaction dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		report, err := newReconciler(st).IngestHistorical(ctx, f)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

// --- Update Command ---

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Scrape new filings from the disclosure portal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		since, _ := cmd.Flags().GetString("since")
		if since == "" {
			since = cfg.EFD.StartDate
		}
		lastName, _ := cmd.Flags().GetString("last-name")

		report, err := runUpdate(ctx, st, since, lastName)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

func init() {
	updateCmd.Flags().String("since", "", "submitted-after date, MM/DD/YYYY (default: efd.start_date)")
	updateCmd.Flags().String("last-name", "", "restrict to filers with this last name")
}

// --- Recompute Command ---

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild all rollup statistics from stored trades",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := newAggregator(st).RecomputeAll(ctx); err != nil {
			return err
		}
		fmt.Println("Rollup statistics rebuilt")
		return nil
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the REST API. With --interval, also scrape the portal on a
schedule and broadcast each ingest report to WebSocket subscribers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		srv := api.NewServer(cfg, st, log)

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval > 0 {
			go runScheduler(ctx, st, srv, interval)
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		return srv.ListenAndServe(addr)
	},
}

func init() {
	serveCmd.Flags().Duration("interval", 0, "scrape interval, e.g. 6h (0 disables the scheduler)")
}

// runScheduler scrapes the portal on a fixed interval. Each run's report is
// pushed to WebSocket subscribers; failures are logged and the schedule
// keeps going.
func runScheduler(ctx context.Context, st store.Store, srv *api.Server, interval time.Duration) {
	log.Info().Dur("interval", interval).Msg("scheduler started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := runUpdate(ctx, st, cfg.EFD.StartDate, "")
			if err != nil {
				log.Error().Err(err).Msg("scheduled update failed")
				continue
			}
			srv.BroadcastReport(report)
		}
	}
}

func printReport(report *reconcile.Report) {
	fmt.Println("Ingest report:")
	fmt.Printf("  records:     %d\n", report.Records)
	fmt.Printf("  created:     %d\n", report.Created)
	fmt.Printf("  duplicates:  %d\n", report.Duplicates)
	fmt.Printf("  unresolved:  %d\n", report.Unresolved)
	fmt.Printf("  skipped:     %d\n", report.Skipped)
	fmt.Printf("  new tickers: %d\n", report.NewTickers)
}
