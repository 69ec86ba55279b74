package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"discoverycall/internal/api"
	"discoverycall/internal/config"
	"discoverycall/internal/events"
	"discoverycall/internal/metrics"
	"discoverycall/internal/session"
	"discoverycall/internal/widget"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := config.LoadEnv(); err != nil {
		logger.Fatal().Err(err).Msg("failed to load .env")
	}

	cfgPath := os.Getenv("SCHEDULER_CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if !cfg.Log.Console {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		logger = logger.Level(level)
	}

	mt := metrics.New("scheduler", nil)
	bus := events.NewEventBus(&logger)
	bus.Subscribe(events.TypeBookingCompleted, func(e events.Event) error {
		var rec widget.BookingRecord
		if err := e.Decode(&rec); err != nil {
			return err
		}
		mt.IncBookingCompleted()
		logger.Info().
			Str("date", rec.Date).
			Str("time", rec.Time).
			Str("name", rec.Name).
			Msg("booking completed")
		return nil
	})
	bus.Subscribe(events.TypeLinkOpened, func(e events.Event) error {
		logger.Debug().Int64("event_id", e.ID).Msg("calendar link handed off")
		return nil
	})

	newMachine := func(c *config.Config) (*widget.Machine, error) {
		wc := c.Widget.WidgetConfig()
		wc.OnBookingComplete = func(rec widget.BookingRecord) {
			if err := bus.PublishJSON(events.TypeBookingCompleted, rec); err != nil {
				logger.Error().Err(err).Msg("publish booking")
			}
		}
		return widget.NewMachine(wc)
	}

	machine, err := newMachine(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid widget config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memory := session.NewMemoryStore(cfg.SessionTTL())
	go memory.RunCleanup(ctx, time.Minute)

	var store session.Store = memory
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		store = session.NewFailoverStore(session.NewRedisStore(rdb, cfg.SessionTTL()), memory, &logger, mt.IncFallback)
	}

	limiter := api.NewLimiter(api.LimiterConfig{
		Rate:  cfg.RateLimit.RequestsPerSecond,
		Burst: cfg.RateLimit.Burst,
	})
	go pruneLimiter(ctx, limiter)

	srv := api.NewServer(machine, store, bus, mt, limiter, &logger)

	err = config.Watch(ctx, cfgPath, cfg.Widget.ReloadInterval(), &logger, func(c *config.Config) {
		m, err := newMachine(c)
		if err != nil {
			logger.Error().Err(err).Msg("widget config reload rejected")
			return
		}
		srv.SetMachine(m)
		logger.Info().Ints("available_dates", m.Config().AvailableDates).Msg("widget config loaded")
	})
	if err != nil {
		logger.Error().Err(err).Msg("config watch disabled")
	}

	go serve(ctx, "health", cfg.Monitoring.HealthCheckPort, api.HealthHandler(store), cfg.ReadTimeout(), &logger)

	if cfg.Monitoring.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go serve(ctx, "metrics", cfg.Monitoring.PrometheusPort, mux, cfg.ReadTimeout(), &logger)
	}

	logger.Info().Int("port", cfg.Server.Port).Msg("scheduler started")
	serve(ctx, "api", cfg.Server.Port, srv.Routes(), cfg.ReadTimeout(), &logger)
}

func pruneLimiter(ctx context.Context, l *api.Limiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

func serve(ctx context.Context, name string, port int, h http.Handler, readTimeout time.Duration, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: h, ReadTimeout: readTimeout}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
