package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/vedran77/mentormatch/internal/config"
	"github.com/vedran77/mentormatch/internal/database"
	"github.com/vedran77/mentormatch/internal/logger"
	"github.com/vedran77/mentormatch/internal/metrics"
	"github.com/vedran77/mentormatch/internal/platform/otel"
	"github.com/vedran77/mentormatch/internal/repository"
	"github.com/vedran77/mentormatch/internal/repository/memory"
	postgresrepo "github.com/vedran77/mentormatch/internal/repository/postgres"
	redisrepo "github.com/vedran77/mentormatch/internal/repository/redis"
	sqliterepo "github.com/vedran77/mentormatch/internal/repository/sqlite"
	"github.com/vedran77/mentormatch/internal/service"
	httptransport "github.com/vedran77/mentormatch/internal/transport/http"
	"github.com/vedran77/mentormatch/pkg/validator"
)

const shutdownTimeout = 10 * time.Second

// store is what every storage driver provides.
type store interface {
	repository.Transactor
	Users() repository.UserRepository
	Requests() repository.MatchRequestRepository
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mentormatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("mentormatch", pflag.ContinueOnError)
	flags.StringVar(&cfg.ServerPort, "port", cfg.ServerPort, "HTTP listen port")
	flags.StringVar(&cfg.StorageDriver, "storage", cfg.StorageDriver, "storage driver: memory, sqlite or postgres")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "mentormatch", cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, closeStore, err := openStore(ctx, cfg, m, log)
	if err != nil {
		return err
	}
	defer closeStore()

	revoked, closeRevocations, err := openRevocationList(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRevocations()

	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)
	services := httptransport.Services{
		Auth:      service.NewAuthService(st.Users(), tokens, revoked, log),
		Profiles:  service.NewProfileService(st, st.Users(), validator.DefaultAvatarRules, log),
		Directory: service.NewDirectoryService(st.Users(), log),
		Matches: service.NewMatchService(st, st.Requests(),
			service.WithLogger(log),
			service.WithMetrics(m),
		),
	}

	srv := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: httptransport.NewRouter(services, httptransport.RouterConfig{
			CORSOrigins: cfg.CORSOrigins,
			Gatherer:    reg,
		}, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", srv.Addr, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) (store, func(), error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := database.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("connected to database", "driver", "postgres")
		return postgresrepo.NewStore(pool, cfg.TxRetries, m, log), pool.Close, nil

	case config.StorageSQLite:
		s, err := sqliterepo.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("opened database", "driver", "sqlite", "path", cfg.SQLitePath)
		return s, func() {
			if err := s.Close(); err != nil {
				log.Error("closing sqlite", "error", err)
			}
		}, nil

	default:
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil
	}
}

func openRevocationList(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.RevocationList, func(), error) {
	if cfg.RedisURL == "" {
		return memory.NewRevocationList(), func() {}, nil
	}
	client, err := redisrepo.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("connected to redis")
	return redisrepo.NewRevocationList(client), func() {
		if err := client.Close(); err != nil {
			log.Error("closing redis", "error", err)
		}
	}, nil
}
