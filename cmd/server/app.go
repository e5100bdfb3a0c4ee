package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Nixie-Tech-LLC/ekran/internal/config"
	"github.com/Nixie-Tech-LLC/ekran/internal/db"
	"github.com/Nixie-Tech-LLC/ekran/internal/device"
	"github.com/Nixie-Tech-LLC/ekran/internal/discovery"
	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/journal"
	"github.com/Nixie-Tech-LLC/ekran/internal/metrics"
	"github.com/Nixie-Tech-LLC/ekran/internal/mqtt"
	"github.com/Nixie-Tech-LLC/ekran/internal/orchestrator"
	"github.com/Nixie-Tech-LLC/ekran/internal/poller"
	cache "github.com/Nixie-Tech-LLC/ekran/internal/redis"
	"github.com/Nixie-Tech-LLC/ekran/internal/storage"
)

// app owns every long-running component of one controller process.
type app struct {
	cfg *config.Config

	hub      *events.Hub
	metrics  *metrics.Metrics
	device   *device.Client
	orch     *orchestrator.Orchestrator
	poller   *poller.Poller
	workflow *discovery.Workflow
	journal  db.Store
	writer   *journal.Writer
	archive  storage.Storage

	snapshots *cache.SnapshotCache
	bridge    *mqtt.Bridge

	server *http.Server
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, hub: events.NewHub()}
	a.metrics = metrics.New(a.hub)

	a.device = device.New(device.Config{
		BaseURL:          cfg.DeviceURL,
		Timeout:          cfg.DeviceTimeout,
		DiscoveryTimeout: cfg.DiscoveryTimeout,
	})
	a.orch = orchestrator.New(a.device, a.hub, a.metrics, orchestrator.Config{
		CommandTimeout: cfg.CommandTimeout,
		LockTimeout:    cfg.LockTimeout,
	})
	a.poller = poller.New(a.device, a.orch, a.hub, a.metrics, cfg.PollInterval)

	if cfg.DatabaseURL != "" {
		if err := db.Init(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("db init: %w", err)
		}
		if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		a.journal = db.NewStore(db.DB)
	} else {
		log.Warn().Msg("DATABASE_URL not set, operation log is kept in memory")
		a.journal = db.NewMemoryStore(db.DefaultListLimit * 4)
	}
	a.writer = journal.NewWriter(a.journal)

	var sessions discovery.SessionStore = discovery.NewMemoryStore()
	if cfg.RedisAddress != "" {
		if err := cache.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword); err != nil {
			return nil, fmt.Errorf("redis init: %w", err)
		}
		sessions = cache.NewSessionStore(cache.Rdb, cache.SessionTTL)
		a.snapshots = cache.NewSnapshotCache(cache.Rdb)
		if last, err := a.snapshots.Load(context.Background()); err == nil {
			log.Info().Str("mode", string(last.State.Mode())).Bool("connected", last.Connected).Msg("last cached snapshot before restart")
		}
	}
	a.workflow = discovery.NewWorkflow(a.device, sessions, a.orch, a.hub)

	archive, err := InitStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload archive: %w", err)
	}
	a.archive = archive

	if cfg.MQTTBroker != "" {
		bridge, err := mqtt.Dial(mqtt.Config{
			Broker:         cfg.MQTTBroker,
			ClientID:       cfg.MQTTClientID,
			TopicPrefix:    cfg.MQTTTopicPrefix,
			DeviceID:       cfg.DeviceID,
			QoS:            1,
			CommandTimeout: cfg.CommandTimeout,
		}, a.orch)
		if err != nil {
			return nil, err
		}
		a.bridge = bridge
	}

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	RegisterRoutes(r, a)
	a.server = &http.Server{Addr: cfg.ServerAddress, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	return a, nil
}

// run blocks until ctx is cancelled or a component fails.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { a.orch.Run(ctx); return nil })
	g.Go(func() error { return a.writer.Run(ctx, a.hub) })
	if a.snapshots != nil {
		g.Go(func() error { return a.snapshots.Run(ctx, a.hub) })
	}
	if a.bridge != nil {
		g.Go(func() error { return a.bridge.Run(ctx, a.hub) })
	}
	g.Go(func() error {
		runStartupSequence(ctx, a.cfg.StartupDelay, a.poller, a.orch)
		a.poller.Run(ctx)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", a.server.Addr).Str("device", a.cfg.DeviceURL).Msg("listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server forced to shutdown")
		}
		return nil
	})

	err := g.Wait()
	a.hub.Close()
	if db.DB != nil {
		db.DB.Close()
	}
	if cache.Rdb != nil {
		cache.Rdb.Close()
	}
	log.Info().Msg("controller stopped")
	return err
}
