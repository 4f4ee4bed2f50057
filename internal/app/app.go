package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"healthinsight/internal/audit"
	"healthinsight/internal/cache"
	"healthinsight/internal/config"
	"healthinsight/internal/fallback"
	"healthinsight/internal/gateway"
	"healthinsight/internal/insight"
	"healthinsight/internal/logging"
	"healthinsight/internal/observability"
	"healthinsight/internal/provider"
	"healthinsight/internal/quota"
)

type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Pipeline *insight.Pipeline
	Gateway  *gateway.Gateway
	Outcomes *observability.PipelineObserver
	Redis    *cache.RedisStore
	Audit    *audit.Store
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger}

	opts := provider.Options{
		Temperature: cfg.Generation.Temperature,
		TopP:        cfg.Generation.TopP,
		NumPredict:  cfg.Generation.NumPredict,
	}
	members := make([]gateway.Member, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		backend, err := provider.New(ctx, p, opts)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		if !backend.Configured() {
			logger.Warn("provider not configured, it will be skipped", zap.String("provider", p.Name))
		}
		members = append(members, gateway.Member{Backend: backend, Priority: p.Priority, Timeout: p.Timeout})
	}
	a.Gateway = gateway.New(members, logger.Named("gateway"))

	cacheOpts := []cache.Option{cache.WithLogger(logger.Named("cache"))}
	if cfg.Redis.URL != "" {
		rs, err := cache.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rs.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, caching in memory only", zap.Error(err))
			_ = rs.Close()
		} else {
			a.Redis = rs
			cacheOpts = append(cacheOpts, cache.WithStore(rs))
		}
	}

	synth, err := fallback.New(cfg.Pipeline.FallbackPath, cfg.Pipeline.MaxListItems)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Outcomes = observability.NewPipelineObserver(logger.Named("pipeline"))
	observers := insight.Observers{a.Outcomes}
	if cfg.Database.DSN != "" {
		st, err := audit.Open(cfg.Database.DSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := audit.Migrate(ctx, st.DB()); err != nil {
			_ = st.Close()
			a.Close()
			return nil, fmt.Errorf("audit migrations: %w", err)
		}
		a.Audit = st
		observers = append(observers, audit.NewObserver(st, logger.Named("audit")))
	}

	a.Pipeline = insight.New(insight.Options{
		Quota:    quota.NewTracker(cfg.Pipeline.DailyLimit, cfg.Pipeline.MinuteLimit),
		Cache:    cache.New(cfg.Pipeline.CacheTTL, cacheOpts...),
		Gateway:  a.Gateway,
		Fallback: synth,
		MaxItems: cfg.Pipeline.MaxListItems,
		Observer: observers,
		Logger:   logger,
	})
	return a, nil
}

func (a *App) Close() error {
	var err error
	if a.Audit != nil {
		err = a.Audit.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	return err
}

// Serve runs the HTTP surface and, when enabled, the provider prober until
// ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.Probe.Enabled {
		go a.Gateway.RunProber(ctx, a.Config.Probe.Interval, a.Config.Probe.Timeout)
	}

	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.Logger.Info("serving", zap.String("addr", a.Config.HTTP.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
