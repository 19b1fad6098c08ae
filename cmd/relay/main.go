package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/lib/pq"

	"github.com/nkmitin/tg-relay/internal/database"
	apperrors "github.com/nkmitin/tg-relay/internal/errors"
	"github.com/nkmitin/tg-relay/internal/health"
	"github.com/nkmitin/tg-relay/internal/lifecycle"
	"github.com/nkmitin/tg-relay/internal/poller"
	"github.com/nkmitin/tg-relay/internal/sink"
	"github.com/nkmitin/tg-relay/internal/telegram"
	"github.com/nkmitin/tg-relay/pkg/config"
	"github.com/nkmitin/tg-relay/pkg/graceful"
	"github.com/nkmitin/tg-relay/pkg/logger"
	redispkg "github.com/nkmitin/tg-relay/pkg/redis"
)

const (
	defaultOpsAddr         = ":9090"
	defaultMigrationsDir   = "migrations"
	shutdownSequenceBudget = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return err
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			slog.Error("failed to init sentry", slog.Any("error", err))
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(logger.Options{
		Level:         cfg.Logger.Level,
		Format:        cfg.Logger.Format,
		FilePath:      cfg.Logger.FilePath,
		MaxSizeMB:     cfg.Logger.MaxSizeMB,
		MaxBackups:    cfg.Logger.MaxBackups,
		MaxAgeDays:    cfg.Logger.MaxAgeDays,
		SentryEnabled: cfg.Sentry.Enabled,
	})
	slog.SetDefault(log)
	config.Watch(v, log)

	log.Info("starting update relay",
		slog.String("env", cfg.AppEnv),
		slog.Int("sessions", len(cfg.Sessions)),
	)

	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)
	checker := health.NewChecker(log)
	shutdown := lifecycle.NewShutdown(log)

	var redisClient *redispkg.Client
	if needsRedis(cfg) {
		redisClient, err = redispkg.New(ctx, cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", slog.Any("error", err))
			return err
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
		checker.AddCheck("redis", redisClient)
	}

	var db *sql.DB
	if sinkUsed(cfg, "journal") {
		db, err = sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			log.Error("failed to open database", slog.Any("error", err))
			return err
		}
		shutdown.Register("database", func(context.Context) error { return db.Close() })

		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping database", slog.Any("error", err))
			return err
		}
		checker.AddCheck("database", health.CheckableFunc(db.PingContext))

		migrationsDir := cfg.Sinks.Journal.MigrationsDir
		if migrationsDir == "" {
			migrationsDir = defaultMigrationsDir
		}
		if err := database.NewMigrator(db, log).ApplyDir(ctx, migrationsDir); err != nil {
			log.Error("failed to apply migrations", slog.Any("error", err))
			return err
		}
	}

	var asynqClient *asynq.Client
	if sinkUsed(cfg, "asynq") {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		shutdown.Register("asynq", func(context.Context) error { return asynqClient.Close() })
	}

	manager := poller.NewManager(log)
	for _, sc := range cfg.Sessions {
		session, err := buildSession(cfg, sc, redisClient, db, asynqClient, checker, log)
		if err != nil {
			log.Error("failed to build session", slog.String("session", sc.Name), slog.Any("error", err))
			return err
		}
		manager.Add(session)
		checker.AddCheck("session:"+sc.Name, session)
	}
	shutdown.Register("sessions", func(context.Context) error {
		manager.StopAll()
		return nil
	})

	opsAddr := cfg.Ops.Addr
	if opsAddr == "" {
		opsAddr = defaultOpsAddr
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checker.Handler())
	opsServer := graceful.NewServer(log, &http.Server{
		Addr:              opsAddr,
		Handler:           logger.Middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Ops.ShutdownTimeout)
	go func() {
		if err := opsServer.ListenAndServe(ctx); err != nil {
			log.Error("ops server exited", slog.Any("error", err))
		}
	}()

	// Sessions are stopped through StopAll, not through the signal context:
	// Stop must flip them to Stopping before the in-flight request unwinds,
	// otherwise the abort would be classified as a fatal transport error.
	if err := manager.StartAll(context.Background()); err != nil {
		errHandler.Handle(ctx, err)
		return err
	}

	fatal := manager.Wait(ctx)
	if fatal != nil {
		errHandler.Handle(ctx, fatal)
	} else {
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownSequenceBudget)
	defer cancel()
	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("update relay stopped")

	return fatal
}

func buildSession(
	cfg *config.Config,
	sc config.SessionConfig,
	redisClient *redispkg.Client,
	db *sql.DB,
	asynqClient *asynq.Client,
	checker *health.Checker,
	log *slog.Logger,
) (*poller.Session, error) {
	client := telegram.NewClient(sc.Token, log)
	checker.AddCheck("telegram:"+sc.Name, client)

	sinks := make([]poller.Sink, 0, len(sc.Sinks))
	for _, name := range sc.Sinks {
		switch name {
		case "redis":
			sinks = append(sinks, sink.NewStream(redisClient.Client, sc.Name, cfg.Sinks.Redis.Stream, cfg.Sinks.Redis.MaxLen, log))
		case "asynq":
			sinks = append(sinks, sink.NewQueue(asynqClient, sc.Name, cfg.Sinks.Asynq.Queue, cfg.Sinks.Asynq.TaskType, log))
		case "journal":
			sinks = append(sinks, sink.NewJournal(db, sc.Name, log))
		default:
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}

	emitTo := sink.NewFanout(sinks...)
	if cfg.Sinks.Dedup.Enabled {
		if redisClient == nil {
			return nil, apperrors.NewConfigError("dedup requires redis to be configured")
		}
		deduper := sink.NewRedisDeduper(redisClient.Client, cfg.Sinks.Dedup.TTL)
		emitTo = sink.NewDedup(emitTo, deduper, sc.Name, log)
	}

	return poller.NewSession(sc.Name, poller.Config{
		Limit:          sc.Limit,
		TimeoutSeconds: sc.Timeout,
		AllowedKinds:   sc.Updates,
	}, client, emitTo, log), nil
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Sinks.Dedup.Enabled || sinkUsed(cfg, "redis") || sinkUsed(cfg, "asynq")
}

func sinkUsed(cfg *config.Config, name string) bool {
	for _, sc := range cfg.Sessions {
		for _, s := range sc.Sinks {
			if s == name {
				return true
			}
		}
	}

	return false
}
