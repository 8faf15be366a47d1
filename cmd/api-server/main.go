package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/api"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/appointment"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/audit"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/clock"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/config"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/db"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/identity"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/metrics"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/notify"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/queue"
	redisclient "github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/redis"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/pkg/logging"
)

var version = "dev"

// stores bundles the persistence chosen by STORE_DRIVER.
type stores struct {
	appointments appointment.Repository
	blocks       appointment.UnavailabilityRepository
	directory    queue.Directory
	queue        queue.Repository
	audit        audit.Sink
	ping         api.Pinger
	close        func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel).With().Str("service", "api-server").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreDriver).
		Str("tz", cfg.FacilityTZ.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store setup error")
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewSchedulingMetrics(reg)
	recorder := audit.NewRecorder(st.audit, logger, clock.Real())

	hub := notify.NewHub(logger)
	var publisher notify.Publisher = hub
	var redisPing api.Pinger

	// With Redis configured, queue updates go through Pub/Sub so every
	// replica's websocket clients see them.
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:       cfg.RedisAddr,
			Username:   cfg.RedisUsername,
			Password:   cfg.RedisPassword,
			ClientName: "clinic-api",
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

		bus := redisclient.NewBus(rdb, redisclient.DefaultChannel, logger)
		if err := bus.Relay(rootCtx, hub); err != nil {
			logger.Fatal().Err(err).Msg("redis relay error")
		}
		publisher = bus
		redisPing = redisPinger(rdb)
	}

	apps := appointment.NewService(st.appointments, st.blocks, cfg.FacilityTZ,
		appointment.WithRecorder(recorder),
		appointment.WithMetrics(m),
		appointment.WithLogger(logger),
		appointment.WithOpeningHours(cfg.EnforceOpeningHours),
	)
	q := queue.NewService(st.queue, st.directory, publisher,
		queue.WithRecorder(recorder),
		queue.WithMetrics(m),
		queue.WithLogger(logger),
		queue.WithAvgConsult(cfg.AvgConsultDuration),
	)

	var parser *identity.Parser
	if cfg.JWTSecret != "" {
		parser = identity.NewParser(cfg.JWTSecret)
	} else {
		logger.Warn().Msg("JWT_SECRET not set, all requests are attributed to anonymous")
	}

	router := api.NewRouter(api.RouterConfig{
		Appointments:   apps,
		Queue:          q,
		Notifications:  hub,
		Identity:       parser,
		Gatherer:       reg,
		Postgres:       st.ping,
		Redis:          redisPing,
		Logger:         logger,
		Env:            cfg.Env,
		Version:        version,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

func openStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		repo := appointment.NewMemoryRepository()
		faker := gofakeit.New(0)
		for i := 0; i < 3; i++ {
			d := repo.AddDoctor(appointment.Doctor{Name: "Dr " + faker.LastName(), Active: true})
			logger.Info().Str("doctor_id", d.ID.String()).Str("name", d.Name).Msg("demo doctor registered")
		}
		return &stores{
			appointments: repo,
			blocks:       repo,
			directory:    repo,
			queue:        queue.NewMemoryRepository(),
			audit:        audit.NewMemorySink(),
			close:        func() {},
		}, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to Postgres")

	repo := appointment.NewPgRepository(pool)
	return &stores{
		appointments: repo,
		blocks:       repo,
		directory:    repo,
		queue:        queue.NewPgRepository(pool),
		audit:        audit.NewPgSink(pool),
		ping:         api.PingFunc(pool.Ping),
		close:        pool.Close,
	}, nil
}

func redisPinger(rdb *redis.Client) api.Pinger {
	return api.PingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}
