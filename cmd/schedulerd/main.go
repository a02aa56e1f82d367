package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/triggerstore/internal/config"
	"github.com/shaiso/triggerstore/internal/firemanager"
	"github.com/shaiso/triggerstore/internal/lifecycle"
	"github.com/shaiso/triggerstore/internal/metrics"
	"github.com/shaiso/triggerstore/internal/notify"
	"github.com/shaiso/triggerstore/internal/repo"
	"github.com/shaiso/triggerstore/internal/store"
	"github.com/shaiso/triggerstore/internal/telemetry"
)

func main() {
	var configFile, overrideFile string
	flag.StringVar(&configFile, "config", "", "путь к файлу настроек (необязателен, переопределяется TRIGGERSTORE_*)")
	flag.StringVar(&overrideFile, "override", "", "путь к override-файлу настроек sweeper'а: файл перечитывается и проверяется при изменении, но работающие sweeper и fire manager сохраняют значения, считанные при старте")
	flag.Parse()

	logger := telemetry.SetupLogger()

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger = telemetry.WithInstanceName(logger, cfg.InstanceName)
	logger = telemetry.WithInstanceID(logger, cfg.InstanceID)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.ConnectionString)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	names, err := store.NewCollectionNames(cfg.CollectionPrefix)
	if err != nil {
		logger.Error("invalid collection_prefix", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureSchema(ctx, pool, names); err != nil {
		logger.Error("ensure schema failed", "error", err)
		os.Exit(1)
	}
	logger.Info("db connected", "prefix", cfg.CollectionPrefix)

	jobs := repo.NewJobRepo(pool, names.Jobs)
	triggers := repo.NewTriggerRepo(pool, names.Triggers)
	calendars := repo.NewCalendarRepo(pool, names.Calendars)
	pausedGroups := repo.NewPausedGroupRepo(pool, names.PausedTriggerGroups)
	firedTriggers := repo.NewFiredTriggerRepo(pool, names.FiredTriggers)
	schedulers := repo.NewSchedulerRepo(pool, names.Schedulers)

	registry := prometheus.NewRegistry()
	collectors := metrics.New(registry)

	events := notify.NewListeners()
	if mqURL := os.Getenv("RABBITMQ_URL"); mqURL != "" {
		bus, err := notify.NewBus(mqURL, logger)
		if err != nil {
			logger.Warn("amqp bus disabled", "error", err)
		} else {
			defer bus.Close()
			events.Register(bus)
		}
	}

	fire := firemanager.New(firemanager.Config{
		Pool:                       pool,
		LocksTable:                 names.Locks,
		InstanceName:               cfg.InstanceName,
		InstanceID:                 cfg.InstanceID,
		Jobs:                       jobs,
		Triggers:                   triggers,
		Calendars:                  calendars,
		FiredTriggers:              firedTriggers,
		MisfireThreshold:           cfg.MisfireThreshold,
		MaxMisfiresToHandleAtATime: cfg.MaxMisfiresPerPass,
		Events:                     events,
		Metrics:                    collectors,
	})

	coordinator := lifecycle.New(lifecycle.Config{
		Pool:             pool,
		LocksTable:       names.Locks,
		InstanceName:     cfg.InstanceName,
		InstanceID:       cfg.InstanceID,
		Jobs:             jobs,
		Triggers:         triggers,
		Calendars:        calendars,
		PausedGroups:     pausedGroups,
		FiredTriggers:    firedTriggers,
		Schedulers:       schedulers,
		Fire:             fire,
		MisfireThreshold: cfg.MisfireThreshold,
		DBRetryInterval:  cfg.DBRetryInterval,
		Logger:           logger,
		Metrics:          collectors,
	})

	if err := coordinator.Initialize(); err != nil {
		logger.Error("initialize failed", "error", err)
		os.Exit(1)
	}
	if err := coordinator.SchedulerStarted(ctx); err != nil {
		logger.Error("scheduler started failed", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduler started")

	if overrideFile != "" {
		watcher := config.NewWatcher(overrideFile, cfg, logger)
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}
	srv := &http.Server{Addr: port, Handler: mux}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := coordinator.Shutdown(shutdownCtx); err != nil {
			logger.Error("coordinator shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "addr", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server failed", "error", err)
	}
}
