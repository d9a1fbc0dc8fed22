// Command huntctl drives the opportunity discovery pipeline: run it on
// a schedule, run a single tick, or print a report from whatever the
// store already has.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learnbot/opportunity-hunter/internal/admin"
	"github.com/learnbot/opportunity-hunter/internal/config"
	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
	"github.com/learnbot/opportunity-hunter/internal/notify"
	"github.com/learnbot/opportunity-hunter/internal/pipeline"
	"github.com/learnbot/opportunity-hunter/internal/scheduler"
	"github.com/learnbot/opportunity-hunter/internal/scoring"
	"github.com/learnbot/opportunity-hunter/internal/scoring/llm"
	"github.com/learnbot/opportunity-hunter/internal/scraper"
	"github.com/learnbot/opportunity-hunter/internal/seenset"
	"github.com/learnbot/opportunity-hunter/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "scan":
		runScan(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "huntctl: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `huntctl - opportunity discovery pipeline

Usage:
  huntctl scan [--once] [--config path]
  huntctl report [--top N] [--min-score S] [--config path]
`)
}

func runScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", "config/config.toml", "path to the main TOML config file")
	once := fs.Bool("once", false, "run a single tick and exit")
	fs.Parse(args)

	logger := log.New(os.Stdout, "[huntctl] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	secrets := config.LoadSecrets()

	store, closeStore := mustStore(context.Background(), cfg, secrets, logger)
	defer closeStore()

	orch, health := buildPipeline(cfg, secrets, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		summary, err := orch.Tick(ctx)
		logSummary(logger, summary, err)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	history := admin.NewHistory(50)
	sched := scheduler.New(func(ctx context.Context) error {
		summary, err := orch.Tick(ctx)
		history.Record(summary, err)
		logSummary(logger, summary, err)
		return err
	}, scheduler.Config{
		ScanInterval:   cfg.ScanIntervalDuration(),
		FailureBackoff: 10 * time.Second,
	}, logger)

	mux := http.NewServeMux()
	adminHandler := admin.NewHandler(store, sched, health, history, orch, logger)
	adminHandler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         ":8081",
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sched.Start(ctx)

	go func() {
		logger.Printf("admin server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("admin server error: %v", err)
		}
	}()

	<-quit
	logger.Println("shutting down...")
	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("forced admin server shutdown: %v", err)
	}
	logger.Println("stopped")
}

func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "config/config.toml", "path to the main TOML config file")
	top := fs.Int("top", 20, "number of opportunities to print")
	minScore := fs.Int("min-score", 0, "minimum score to include")
	fs.Parse(args)

	logger := log.New(os.Stderr, "[huntctl] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	secrets := config.LoadSecrets()

	store, closeStore := mustStore(context.Background(), cfg, secrets, logger)
	defer closeStore()

	opps, err := store.GetTopN(context.Background(), model.SearchFilter{Limit: *top, MinScore: *minScore})
	if err != nil {
		logger.Fatalf("report: query store: %v", err)
	}

	if len(opps) == 0 {
		fmt.Println("no opportunities match that filter")
		return
	}
	for i, o := range opps {
		score := "-"
		if o.Score.Valid {
			score = fmt.Sprintf("%d", o.Score.Int64)
		}
		fmt.Printf("%2d. [%s] score=%s  %s\n    %s\n", i+1, o.Platform, score, o.Title, o.SourceURL)
	}
}

func logSummary(logger *log.Logger, summary pipeline.Summary, err error) {
	logger.Printf(
		"tick done in %s: scraped=%d after_filter=%d after_dedup=%d scored=%d upserted=%d notified=%d errors=%d (err=%v)",
		summary.Duration, summary.Scraped, summary.AfterFilter, summary.AfterDedup,
		summary.Scored, summary.Upserted, summary.Notified, len(summary.ScraperErrors), err,
	)
}

func buildPipeline(cfg *config.Config, secrets config.Secrets, store storage.Store, logger *log.Logger) (*pipeline.Orchestrator, *scraper.HealthTracker) {
	httpCfg := httpclient.DefaultConfig()

	scrapers, err := scraper.Build(httpCfg, cfg.Sites, cfg.Scoring.Skills, logger)
	if err != nil {
		logger.Fatalf("scrapers: %v", err)
	}
	health := scraper.NewHealthTracker()

	seenStore, err := seenset.NewFileStore(cfg.SeenSetPath, logger)
	if err != nil {
		logger.Fatalf("seenset: %v", err)
	}

	llmClient := llm.NewOpenAIProvider(secrets.LLMAPIKey, secrets.LLMBaseURL)
	scorer := scoring.New(
		llmClient,
		cfg.Scoring.Skills,
		cfg.Scoring.MinBudget,
		logger,
		scoring.WithConcurrency(cfg.Scoring.Concurrency),
		scoring.WithScoreThreshold(cfg.Scoring.ScoreThreshold),
	)

	dispatcher := notify.New(
		mustNotifyClient(logger),
		secrets.TelegramBotToken,
		secrets.TelegramChatID,
		notify.WithMaxPerMessage(cfg.MaxPerMessage),
	)

	orch := pipeline.New(scrapers, health, cfg.Filter, seenStore, scorer, store, dispatcher, logger)

	return orch, health
}

func mustNotifyClient(logger *log.Logger) *httpclient.Client {
	client, err := httpclient.New(httpclient.Config{
		RequestsPerMinute: 60,
		MaxRetries:        2,
		RetryDelay:        time.Second,
		RetryMaxDelay:     10 * time.Second,
		RequestTimeout:    10 * time.Second,
		UserAgent:         "OpportunityHunter/1.0",
	}, logger)
	if err != nil {
		logger.Fatalf("notify http client: %v", err)
	}
	return client
}

func mustStore(ctx context.Context, cfg *config.Config, secrets config.Secrets, logger *log.Logger) (storage.Store, func()) {
	switch cfg.Database.Driver {
	case "postgres":
		dsn := secrets.DatabaseURL
		if dsn == "" {
			dsn = cfg.Database.DSN
		}
		store, err := storage.NewPostgresStore(ctx, dsn)
		if err != nil {
			logger.Fatalf("storage: %v", err)
		}
		return store, func() { store.Close() }
	default:
		path := cfg.Database.DSN
		if path == "" {
			path = "workspace/opportunities.db"
		}
		store, err := storage.NewSQLiteStore(ctx, path)
		if err != nil {
			logger.Fatalf("storage: %v", err)
		}
		return store, func() { store.Close() }
	}
}
