package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/metalfolio/price-engine/internal/api"
	"github.com/metalfolio/price-engine/internal/calibration"
	"github.com/metalfolio/price-engine/internal/config"
	"github.com/metalfolio/price-engine/internal/database"
	"github.com/metalfolio/price-engine/internal/histcache"
	"github.com/metalfolio/price-engine/internal/livecache"
	"github.com/metalfolio/price-engine/internal/marketcal"
	"github.com/metalfolio/price-engine/internal/observ"
	"github.com/metalfolio/price-engine/internal/pricelog"
	"github.com/metalfolio/price-engine/internal/resolver"
	"github.com/metalfolio/price-engine/internal/series"
	"github.com/metalfolio/price-engine/internal/sources"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		observ.Log("config_load_failed", map[string]any{"error": err.Error(), "path": *configPath})
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		observ.Log("fatal", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(cfg config.Root) error {
	// Persistence. Without a database the engine still serves; the
	// price log and calibration history just do not survive restarts.
	var logStore pricelog.Store = pricelog.NewMemoryStore()
	var calStore calibration.Store = calibration.NewMemoryStore()
	if cfg.Database.Enabled {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		logStore = pricelog.NewGormStore(db)
		calStore = calibration.NewGormStore(db)
	} else {
		observ.Log("database_disabled", map[string]any{"mode": "in_memory"})
	}

	var lookupCache histcache.Cache = histcache.NewMemory()
	if cfg.Redis.Enabled {
		rc, err := histcache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			observ.Log("redis_unavailable", map[string]any{"error": err.Error(), "mode": "in_memory"})
		} else {
			lookupCache = rc
		}
	}

	// Upstream clients.
	live, err := sources.NewLiveClient(sources.LiveClientConfig{
		BaseURL:            cfg.Live.BaseURL,
		APIKey:             cfg.LiveAPIKey,
		TimeoutSeconds:     cfg.Live.TimeoutSeconds,
		RateLimitPerMinute: cfg.Live.RateLimitPerMinute,
		DailyCap:           cfg.Live.DailyCap,
	})
	if err != nil {
		return fmt.Errorf("live client: %w", err)
	}
	registerSourceProbe("live_spot", live.Health)

	var bars sources.BarSource
	var calEngine *calibration.Engine
	if cfg.Bars.Enabled {
		bc, err := sources.NewBarClient(sources.BarClientConfig{
			BaseURL:        cfg.Bars.BaseURL,
			APIKey:         cfg.BarAPIKey,
			TimeoutSeconds: cfg.Bars.TimeoutSeconds,
		})
		if err != nil {
			return fmt.Errorf("bar client: %w", err)
		}
		bars = bc
		calEngine = calibration.NewEngine(calStore, bc)
		registerSourceProbe("etf_bars", bc.Health)
	} else {
		observ.Log("bar_feed_disabled", nil)
	}

	var hist sources.HistoricalSource
	if cfg.Historical.Enabled {
		hc, err := sources.NewHistoricalClient(sources.HistoricalClientConfig{
			BaseURL:        cfg.Historical.BaseURL,
			APIKey:         cfg.HistoricalAPIKey,
			TimeoutSeconds: cfg.Historical.TimeoutSeconds,
		})
		if err != nil {
			return fmt.Errorf("historical client: %w", err)
		}
		hist = hc
		registerSourceProbe("historical_api", hc.Health)
	} else {
		observ.Log("historical_feed_disabled", nil)
	}

	recorder := pricelog.NewRecorder(logStore, cfg.Cache.RecorderDepth)
	recorder.Start()

	cacheOpts := []livecache.Option{
		livecache.WithRecorder(recorder),
		livecache.WithClock(time.Now, marketcal.IsClosed),
		livecache.WithRefreshTimeout(time.Duration(cfg.Cache.RefreshTimeout) * time.Second),
	}
	if calEngine != nil {
		cacheOpts = append(cacheOpts, livecache.WithCalibrator(calEngine))
	}
	spot := livecache.New(live, cacheOpts...)

	macro := sources.NewMacroTable()
	res := resolver.New(spot, logStore, bars, calEngine, hist, macro, lookupCache)
	history := series.NewHistory(logStore, macro)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	maxAge := time.Duration(cfg.Cache.MaxAgeMinutes) * time.Minute
	api.NewServer(spot, res, history, maxAge).Routes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		observ.Log("server_started", map[string]any{"port": cfg.Server.Port})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		recorder.Close()
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		observ.Log("shutdown_started", map[string]any{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		observ.Log("shutdown_forced", map[string]any{"error": err.Error()})
	}
	// Drain pending snapshots after the listener stops accepting work.
	recorder.Close()
	observ.Log("shutdown_complete", nil)
	return nil
}

func registerSourceProbe(name string, snap func() sources.HealthSnapshot) {
	observ.RegisterHealthProbe(name, func() (string, any) {
		s := snap()
		return string(s.Status), s
	})
}
