package main

import (
	"context"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"task-recurrence-service/internal/task-manager/api"
	"task-recurrence-service/internal/task-manager/broker"
	taskDB "task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/internal/task-manager/services"
	"task-recurrence-service/internal/task-worker/notifiers"
	"task-recurrence-service/pkg/config"
	gorm_db "task-recurrence-service/pkg/db"
	"task-recurrence-service/pkg/dedup"
	"task-recurrence-service/pkg/logger"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		stdlog.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("Starting Task Worker Service...")

	gormDB, err := gorm_db.NewGormDB(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := gorm_db.AutoMigrate(gormDB, log, taskDB.All()...); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	codec, err := events.NewCodec(cfg.Broker.Encoding)
	if err != nil {
		log.Fatal("Failed to build event codec", zap.Error(err))
	}
	clock := clockwork.NewRealClock()

	auditService := services.NewAuditService(gormDB, clock, log)
	instantiator := services.NewRecurringInstantiator(gormDB, auditService, clock, log)
	router := services.NewEventRouter(auditService, instantiator, codec, log)

	registry := notifiers.NewRegistry()
	registry.Register(notifiers.NotifierLog, notifiers.NewLogNotifier(log))
	if cfg.Telegram.Token != "" {
		tg, err := notifiers.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Error("Telegram notifier disabled", zap.Error(err))
		} else {
			registry.Register(notifiers.NotifierTelegram, tg)
		}
	}

	var deduper notifiers.Deduper
	if rdb := dedup.NewRedisClient(cfg.Redis); rdb != nil {
		defer rdb.Close()
		deduper = dedup.NewDeduper(rdb, log)
		log.Info("Reminder deduplication enabled", zap.String("redis_addr", cfg.Redis.Addr))
	}
	notifications := notifiers.NewNotificationService(registry, deduper, codec, cfg.Reminders, log)
	log.Info("Notifiers registered", zap.Strings("notifiers", registry.Names()))

	ctx, cancel := context.WithCancel(context.Background())

	var consumers []io.Closer
	for topic, handler := range map[string]events.Handler{
		cfg.Broker.TaskEventsTopic: router.HandleMessage,
		cfg.Broker.ReminderTopic:   notifications.HandleMessage,
	} {
		c, err := broker.StartConsumer(ctx, cfg.Broker, topic, handler, log)
		if err != nil {
			log.Fatal("Failed to start consumer", zap.String("topic", topic), zap.Error(err))
		}
		consumers = append(consumers, c)
	}

	hlog.SetOutput(os.Stdout)
	hlog.SetLevel(hlog.LevelWarn)
	h := server.Default(server.WithHostPorts(cfg.Server.WorkerAddr), server.WithExitWaitTime(2*time.Second))
	api.RegisterHealthRoutes(h.Engine)

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		log.Info("Shutdown signal received, cancelling consumers", zap.String("signal", sig.String()))
		cancel()

		for _, c := range consumers {
			if err := c.Close(); err != nil {
				log.Warn("Consumer close error", zap.Error(err))
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			log.Error("Hertz server shutdown error", zap.Error(err))
		}
		log.Info("Task Worker gracefully shut down")
	}()

	log.Info("Task Worker listening for messages",
		zap.String("broker", cfg.Broker.Driver),
		zap.String("task_events_topic", cfg.Broker.TaskEventsTopic),
		zap.String("reminder_topic", cfg.Broker.ReminderTopic),
		zap.String("metrics_addr", cfg.Server.WorkerAddr),
	)
	h.Spin()
}
