package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/aeris/internal/config"
	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/lookup"
	"github.com/yegors/aeris/internal/storage/sqlite"
	"github.com/yegors/aeris/internal/terminal"
	"github.com/yegors/aeris/internal/view"
	"github.com/yegors/aeris/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	profile := flag.String("profile", "default", "Profile whose recent searches are used")
	baseURL := flag.String("base-url", "", "Backend to query (defaults to lookup.base_url)")
	departure := flag.String("departure", "", "Only match flights departing this IATA airport")
	arrival := flag.String("arrival", "", "Only match flights arriving at this IATA airport")
	date := flag.String("date", "", "Only match flights on this day (YYYY-MM-DD)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [FLIGHT ...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	filter, err := flight.NewFilter(*departure, *arrival, *date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid filter: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Lookup.BaseURL = *baseURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Only warnings reach the terminal; the prompt owns stdout
	level := cfg.Logging.Level
	if level == "info" {
		level = "warn"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *profile, filter, flag.Args(), log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, profile string, filter flight.Filter, flights []string, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(cfg.Storage.SQLitePath, nil, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	engine, err := view.NewEngine(cfg.Lookup.Locale, log)
	if err != nil {
		return err
	}

	controller := lookup.NewController(lookup.Deps{
		Fetcher:  lookup.NewHTTPFetcher(cfg.Lookup.BaseURL, time.Duration(cfg.Lookup.RequestTimeoutSeconds)*time.Second, log),
		Store:    store.Scoped("profile:" + profile),
		View:     engine,
		Renderer: terminal.NewRenderer(os.Stdout),
		Map:      terminal.NewMap(os.Stdout, engine.Messages()),
		MapOpts: lookup.MapOptions{
			TileURL:     cfg.Map.TileURL,
			Attribution: cfg.Map.Attribution,
			Zoom:        cfg.Map.Zoom,
		},
	}, log)
	controller.SetFilter(filter)

	// Loading first keeps new searches from overwriting the saved list
	controller.Start(ctx)

	shell := terminal.NewShell(controller, engine, os.Stdout)
	if len(flights) > 0 {
		shell.Search(ctx, flights)
		return nil
	}
	return shell.Run(ctx, os.Stdin)
}
