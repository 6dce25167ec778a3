package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	glhttp "github.com/greenlight-hq/greenlight/internal/adapter/http"
	"github.com/greenlight-hq/greenlight/internal/adapter/jsonfile"
	glnats "github.com/greenlight-hq/greenlight/internal/adapter/nats"
	"github.com/greenlight-hq/greenlight/internal/adapter/natskv"
	"github.com/greenlight-hq/greenlight/internal/adapter/otel"
	"github.com/greenlight-hq/greenlight/internal/adapter/postgres"
	"github.com/greenlight-hq/greenlight/internal/adapter/ristretto"
	"github.com/greenlight-hq/greenlight/internal/adapter/tiered"
	"github.com/greenlight-hq/greenlight/internal/adapter/ws"
	"github.com/greenlight-hq/greenlight/internal/classify"
	"github.com/greenlight-hq/greenlight/internal/config"
	"github.com/greenlight-hq/greenlight/internal/ledger"
	"github.com/greenlight-hq/greenlight/internal/logger"
	"github.com/greenlight-hq/greenlight/internal/port/alert"
	"github.com/greenlight-hq/greenlight/internal/port/cache"
	"github.com/greenlight-hq/greenlight/internal/port/executor"
	"github.com/greenlight-hq/greenlight/internal/port/queue"
	"github.com/greenlight-hq/greenlight/internal/port/store"
	"github.com/greenlight-hq/greenlight/internal/service"
)

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(bootstrap)

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.NewAsync(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Observability ---
	shutdownTracer := otel.InitTracer(cfg.Logging.Service)
	defer func() { _ = shutdownTracer(ctx) }()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Storage ---
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// --- Messaging ---
	var q *glnats.Queue
	if cfg.NATS.URL != "" {
		q, err = glnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = q.Close() }()
	}

	// --- Ledger ---
	local, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer local.Close()

	var rateCache cache.Cache = local
	if q != nil {
		kv, err := q.KeyValue(ctx, "greenlight-rates")
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		rateCache = tiered.New(local, natskv.New(kv), 5*time.Minute)
	}

	lg := ledger.New(ledger.WithStore(st), ledger.WithCache(rateCache))
	lg.Load(ctx)
	slog.Info("feedback ledger loaded", "entries", lg.Len())

	// --- Classifier ---
	rules, err := classify.LoadRules(cfg.Classifier.RulesPath)
	if err != nil {
		return fmt.Errorf("classifier rules: %w", err)
	}
	classifier := classify.New(rules)

	// --- Alerts ---
	hub := ws.NewHub()
	channels, err := buildAlertChannels(cfg.Alerts, hub)
	if err != nil {
		return fmt.Errorf("alerts: %w", err)
	}

	// --- Engine ---
	engine := service.NewEngine(classifier, lg,
		service.WithChannels(channels...),
		service.WithHub(hub),
		service.WithStore(st),
		service.WithMetrics(metrics),
		service.WithSweepInterval(cfg.Engine.SweepInterval),
		service.WithAutoApprove(cfg.Engine.AutoApproveRate, cfg.Engine.MinPrecedents),
	)
	if err := engine.Restore(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	engine.Start()
	defer engine.Stop()

	// --- Pipeline ---
	reg, err := executor.NewRegistry(cfg.Executors.Strict, devExecutors()...)
	if err != nil {
		return fmt.Errorf("executors: %w", err)
	}
	// In strict mode every kind the rules can classify must be executable.
	if err := reg.Validate(rules.Kinds()...); err != nil {
		return fmt.Errorf("executors: %w", err)
	}

	pipeOpts := []service.PipelineOption{
		service.WithConcurrency(cfg.Pipeline.Concurrency),
		service.WithPollInterval(cfg.Pipeline.PollInterval),
		service.WithPipelineHub(hub),
		service.WithPipelineMetrics(metrics),
	}

	if q != nil {
		pipeOpts = append(pipeOpts, service.WithPublisher(q))
	}

	pipeline := service.NewPipeline(engine, reg, lg, pipeOpts...)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go pipeline.Run(runCtx)

	if q != nil {
		unsubscribe, err := q.Subscribe(runCtx, queue.SubjectActionProposed, pipeline.HandleMessage)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		defer unsubscribe()
	}

	// --- HTTP ---
	handlers := glhttp.NewHandlers(engine, pipeline, classifier, hub)

	r := chi.NewRouter()
	r.Use(glhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(glhttp.RequestID)
	r.Use(glhttp.Logger)
	r.Use(glhttp.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	glhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// openStore selects the persistence backend from config. The returned close
// func is safe to call once, after the engine has stopped.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")
		return postgres.NewStore(pool), pool.Close, nil
	default: // "file", validated by config
		st, err := jsonfile.NewStore(cfg.Store.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		return st, func() { _ = st.Close() }, nil
	}
}

// buildAlertChannels instantiates one channel per alerts config entry.
// "desktop" is wired to the WebSocket hub; all others come from the
// self-registering channel factories.
func buildAlertChannels(entries []config.Alert, hub *ws.Hub) ([]alert.Channel, error) {
	channels := make([]alert.Channel, 0, len(entries))
	for _, e := range entries {
		if e.Channel == "desktop" {
			channels = append(channels, ws.NewAlertChannel(hub))
			continue
		}
		ch, err := alert.New(e.Channel, e.Settings)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", e.Channel, err)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}
