package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/stopmark/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting stopmark search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stops := stopwords.Default()
	if len(cfg.Analysis.StopWords) > 0 {
		stops = stopwords.New(cfg.Analysis.StopWords...)
	}

	engine, err := indexer.NewEngine(cfg.Indexer, cfg.Search.Fields, stops)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	exec, err := executor.New(engine, stops, cfg.Rewrite, cfg.Marking, m)
	if err != nil {
		slog.Error("failed to create query executor", "error", err)
		os.Exit(1)
	}

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var (
		collector  *analytics.Collector
		tracker    handler.Tracker
		aggregator = analytics.NewAggregator()
		history    analytics.History
		pg         *postgres.Client
	)
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		eventConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, aggregator.Handler())
		go func() {
			if err := eventConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()

		pg, err = postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			snapshots := store.New(pg, cfg.Analytics.KeepSnapshots)
			if err := snapshots.Migrate(ctx); err != nil {
				slog.Error("failed to migrate analytics store", "error", err)
				os.Exit(1)
			}
			if latest, err := snapshots.LatestSnapshot(ctx); err != nil {
				slog.Warn("failed to load analytics snapshot", "error", err)
			} else if latest != nil {
				aggregator.Restore(*latest)
			}
			snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
			history = snapshots
		}
	}

	var docTracker consumer.Tracker
	if collector != nil {
		docTracker = collector
	}
	var invalidator consumer.Invalidator
	if queryCache != nil {
		invalidator = queryCache
	}
	docs := consumer.New(engine, invalidator, docTracker, m)
	ingest := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, docs.HandleMessage())
	go func() {
		if err := ingest.Start(ctx); err != nil {
			slog.Error("ingest consumer error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		n, err := engine.DocCount()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", n)}
	})
	var redisPing, pgPing func(context.Context) error
	if redisClient != nil {
		redisPing = redisClient.Ping
	}
	if pg != nil {
		pgPing = pg.Ping
	}
	checker.Register("redis", health.Optional(redisPing))
	checker.Register("postgres", health.Optional(pgPing))

	h := handler.New(exec, docs, queryCache, tracker, m, cfg.Search)
	analyticsH := analytics.NewHandler(aggregator, history)

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	if cfg.Server.RateLimit > 0 {
		limiter, err := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, 0)
		if err != nil {
			slog.Error("failed to create rate limiter", "error", err)
			os.Exit(1)
		}
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-idle

	slog.Info("search service stopped")
}
