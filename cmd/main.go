package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/okian/lobstream/internal/adapters/http/api"
	"github.com/okian/lobstream/internal/adapters/http/swagger"
	"github.com/okian/lobstream/internal/adapters/llm"
	"github.com/okian/lobstream/internal/adapters/postgres"
	"github.com/okian/lobstream/internal/adapters/repository"
	app "github.com/okian/lobstream/internal/app"
	"github.com/okian/lobstream/internal/config"
	"github.com/okian/lobstream/internal/connectors"
	"github.com/okian/lobstream/internal/domain/scoring"
	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	streamWriteSlack       = 10 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// We export our own system metrics instead of the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(context.Background(), "relay exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run boots the relay and blocks until ctx is cancelled. A non-nil error
// means the relay could not start.
func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get().Named("main")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	log.Info(ctx, "event log ready", logger.String("backend", cfg.LogBackend), logger.Int("max_len", cfg.LogMaxLen))

	pg, closeDB, err := buildReadModel(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	scorer, err := buildScorer(cfg)
	if err != nil {
		return err
	}

	connCfg := connectorConfig(cfg)
	sources, err := connectors.Build(cfg.EnabledSources(), connCfg)
	if err != nil {
		return fmt.Errorf("build connectors: %w", err)
	}

	svc := app.New(serviceOptions(cfg, store, pg, scorer, sources)...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop(context.WithoutCancel(ctx))

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	deps := api.Dependencies{
		Log:      store,
		Stats:    svc,
		Comments: connectors.NewMoltbookClient(connCfg, 0),
		Stream: api.StreamConfig{
			MaxDuration:       cfg.StreamMaxDuration,
			PollInterval:      cfg.StreamPollInterval,
			HeartbeatInterval: cfg.StreamHeartbeatInterval,
			Backfill:          cfg.StreamBackfill,
			PageLimit:         cfg.StreamPageLimit,
		},
		Sources: svc.Sources(),
	}
	if pg != nil {
		deps.ReadModel = pg
	}
	apiServer := api.NewServer(deps)

	mux := http.NewServeMux()
	if err := swagger.Register(ctx, mux); err != nil {
		log.Warn(ctx, "swagger registration failed", logger.Error(err))
	}
	apiServer.Register(ctx, mux)

	servers := []*http.Server{
		newServer(cfg.Addr, mux, cfg.StreamMaxDuration+streamWriteSlack),
		newServer(":"+strconv.Itoa(cfg.HealthPort), apiServer.Health().RelayMux(), readTimeout),
	}
	return serve(ctx, log, servers)
}

func newServer(addr string, h http.Handler, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// serve runs every server until ctx is cancelled, then shuts them down.
// A listener failure is returned as an error.
func serve(ctx context.Context, log logger.Logger, servers []*http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "server shutdown failed", logger.String("addr", srv.Addr), logger.Error(err))
			}
		}
		return nil
	})
	err := g.Wait()
	log.Info(context.Background(), "servers stopped")
	return err
}

// buildStore opens the configured event log and checks it answers.
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	var store repository.Store
	switch cfg.LogBackend {
	case config.BackendRedis:
		ropts := []repository.RedisOption{
			repository.WithStreamKey(cfg.StreamKey),
			repository.WithMaxLen(cfg.LogMaxLen),
			repository.WithRedisLogger(logger.Named("redis-log")),
		}
		if cfg.LogExactTrim {
			ropts = append(ropts, repository.WithExactTrim())
		}
		rs, err := repository.DialRedis(ctx, cfg.RedisURL, ropts...)
		if err != nil {
			return nil, fmt.Errorf("connect event log: %w", err)
		}
		store = rs
	default:
		store = repository.NewRingStore(repository.WithCapacity(cfg.LogMaxLen))
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping event log: %w", err)
	}
	return store, nil
}

// buildReadModel connects the optional Postgres store. It returns nil when
// no database is configured.
func buildReadModel(ctx context.Context, cfg *config.Config) (*postgres.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, func() {}, nil
	}
	if cfg.DatabaseMigrate {
		if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return postgres.New(pool), pool.Close, nil
}

// buildScorer returns nil when no API key is configured, which disables Tier 2.
func buildScorer(cfg *config.Config) (scoring.Scorer, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, nil
	}
	client, err := llm.New(cfg.AnthropicAPIKey,
		llm.WithAPIURL(cfg.AnthropicAPIURL),
		llm.WithModel(cfg.ScorerModel),
		llm.WithMaxTokens(cfg.ScorerMaxTokens))
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}
	return scoring.NewLLMScorer(client, scoring.WithTimeout(cfg.ScorerTimeout)), nil
}

func connectorConfig(cfg *config.Config) connectors.Config {
	return connectors.Config{
		UserAgent:      cfg.UserAgent,
		MoltbookAPIKey: cfg.MoltbookAPIKey,
		MoltbookURL:    cfg.MoltbookAPIURL,
		GitHubToken:    cfg.GitHubToken,
		MastodonToken:  cfg.MastodonToken,
	}
}

func serviceOptions(cfg *config.Config, store repository.Store, pg *postgres.Store, scorer scoring.Scorer, sources []connectors.Connector) []app.Option {
	opts := []app.Option{
		app.WithStore(store),
		app.WithClassification(cfg.ClassificationEnabled),
		app.WithBatchSize(cfg.ScorerBatchSize),
		app.WithFlushInterval(cfg.ScorerFlushInterval),
		app.WithQueueSize(cfg.ScorerQueueSize),
		app.WithPolicy(scoring.Policy{Threshold: cfg.ScorerThreshold, KeepAtThreshold: cfg.ScorerKeepAtThreshold}),
		app.WithConnectors(sources...),
	}
	if scorer != nil {
		opts = append(opts, app.WithScorer(scorer))
	}
	if pg != nil {
		opts = append(opts, app.WithPersister(pg))
	}
	return opts
}

// startSystemMetricsUpdater refreshes system gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the log length gauge as a side effect.
			_ = svc.GetStats()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
