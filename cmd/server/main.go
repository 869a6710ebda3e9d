package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yegors/aeris/internal/api"
	"github.com/yegors/aeris/internal/aviationstack"
	"github.com/yegors/aeris/internal/cache"
	"github.com/yegors/aeris/internal/config"
	"github.com/yegors/aeris/internal/lookup"
	"github.com/yegors/aeris/internal/metrics"
	"github.com/yegors/aeris/internal/opensky"
	"github.com/yegors/aeris/internal/session"
	"github.com/yegors/aeris/internal/storage/sqlite"
	"github.com/yegors/aeris/internal/tracker"
	"github.com/yegors/aeris/internal/view"
	"github.com/yegors/aeris/internal/weather"
	"github.com/yegors/aeris/internal/websocket"
	"github.com/yegors/aeris/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Server failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting Aeris server",
		logger.String("version", Version),
		logger.String("lookup_base_url", cfg.Lookup.BaseURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	reg := metrics.New()

	store, err := sqlite.Open(cfg.Storage.SQLitePath, clock, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	responseCache, err := newCache(ctx, cfg.Cache, log)
	if err != nil {
		return err
	}
	defer responseCache.Close()
	log.Info("Using response cache", logger.String("backend", responseCache.Backend()))

	flights := aviationstack.NewClient(aviationstack.Config{
		APIBaseURL:            cfg.AviationStack.APIBaseURL,
		APIKey:                cfg.AviationStack.APIKey,
		RequestTimeoutSeconds: cfg.AviationStack.RequestTimeoutSeconds,
		MaxRetries:            cfg.AviationStack.MaxRetries,
	}, reg, log)
	if !flights.Configured() {
		log.Warn("AviationStack API key not configured; lookups will answer 503")
	}

	metarClient := weather.NewClient(weather.ClientConfig{
		APIBaseURL:            cfg.CheckWX.APIBaseURL,
		APIKey:                cfg.CheckWX.APIKey,
		RequestTimeoutSeconds: cfg.CheckWX.RequestTimeoutSeconds,
		MaxRetries:            cfg.CheckWX.MaxRetries,
	}, reg, log)
	if !metarClient.Configured() {
		log.Warn("CheckWX API key not configured; METAR sides will carry an error")
	}
	metars := weather.NewService(metarClient, responseCache, weather.ServiceOptions{
		MetarTTL:     time.Duration(cfg.Cache.MetarTTLSeconds) * time.Second,
		MagneticWind: cfg.CheckWX.MagneticWind,
		Clock:        clock,
	}, reg, log)

	var live tracker.LiveSource
	if cfg.OpenSky.Enabled {
		live = opensky.NewClient(opensky.Config{
			APIBaseURL:            cfg.OpenSky.APIBaseURL,
			TokenURL:              cfg.OpenSky.TokenURL,
			ClientID:              cfg.OpenSky.ClientID,
			ClientSecret:          cfg.OpenSky.ClientSecret,
			RequestTimeoutSeconds: cfg.OpenSky.RequestTimeoutSeconds,
		}, clock, reg, log)
		log.Info("OpenSky live positions enabled", logger.Bool("authenticated", cfg.OpenSky.ClientID != ""))
	}

	trackerService := tracker.NewService(tracker.Deps{
		Flights: flights,
		Live:    live,
		Metars:  metars,
		Cache:   responseCache,
		Log:     store,
		Clock:   clock,
		Metrics: reg,
	}, time.Duration(cfg.Cache.FlightTTLSeconds)*time.Second, log)

	if hours := cfg.Storage.LookupLogRetentionHours; hours > 0 {
		go trackerService.RunPruner(ctx,
			time.Duration(cfg.Storage.PruneIntervalMinutes)*time.Minute,
			time.Duration(hours)*time.Hour)
	}

	engine, err := view.NewEngine(cfg.Lookup.Locale, log)
	if err != nil {
		return fmt.Errorf("failed to create view engine: %w", err)
	}

	sessions := session.NewManager(session.Deps{
		Fetcher: lookup.NewHTTPFetcher(cfg.Lookup.BaseURL, time.Duration(cfg.Lookup.RequestTimeoutSeconds)*time.Second, log),
		Stores: func(id string) lookup.Store {
			return store.Scoped("session:" + id)
		},
		View: engine,
		MapOpts: lookup.MapOptions{
			TileURL:     cfg.Map.TileURL,
			Attribution: cfg.Map.Attribution,
			Zoom:        cfg.Map.Zoom,
		},
		Metrics: reg,
	}, log)

	wsServer := websocket.NewServer(log)
	wsServer.SetMessageHandler(sessions)
	go wsServer.Run(ctx)

	router := api.NewRouter(api.RouterDeps{
		Flights:  trackerService,
		Sessions: wsServer,
		Storage:  store,
		Metrics:  reg,
		Version:  Version,
	}, cfg.Server, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutting down server...", logger.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	// Page sessions and the pruner stop with the context
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
	return nil
}

func newCache(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) (cache.Cache, error) {
	ttl := time.Duration(cfg.FlightTTLSeconds) * time.Second
	if cfg.Backend == "redis" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, "aeris:", ttl, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return rc, nil
	}
	return cache.NewMemoryCache(ttl, time.Duration(cfg.CleanupIntervalSecs)*time.Second), nil
}
