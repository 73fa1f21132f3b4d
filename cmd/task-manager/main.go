package main

import (
	"context"
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
	"task-recurrence-service/pkg/config"
	gorm_db "task-recurrence-service/pkg/db"
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
	log.Info("Task Manager Service starting...")

	appCtx, appCancel := context.WithCancel(context.Background())

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
	sender, err := broker.NewSender(cfg.Broker, codec, log)
	if err != nil {
		log.Fatal("Failed to connect event transport", zap.Error(err))
	}
	clock := clockwork.NewRealClock()
	publisher := events.NewPublisher(sender, codec, cfg.Broker, clock, log)

	taskService := services.NewTaskService(gormDB, publisher, clock, log)
	ruleService := services.NewRuleService(gormDB, taskService, clock, log)
	auditService := services.NewAuditService(gormDB, clock, log)
	scanner := services.NewReminderScanner(gormDB, publisher, clock, log)

	schedulerService, err := services.NewSchedulerService(appCtx, scanner, cfg.Reminders.ScanInterval, log)
	if err != nil {
		log.Fatal("Failed to create scheduler service", zap.Error(err))
	}
	if err := schedulerService.Start(); err != nil {
		log.Fatal("Failed to start scheduler service", zap.Error(err))
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set; every authenticated request will be rejected")
	}

	hlog.SetOutput(os.Stdout)
	hlog.SetLevel(hlog.LevelInfo)

	h := server.Default(server.WithHostPorts(cfg.Server.Addr), server.WithExitWaitTime(5*time.Second))
	api.RegisterRoutes(h.Engine, api.Handlers{
		Tasks:     api.NewTaskHandler(taskService),
		Recurring: api.NewRecurringTaskHandler(ruleService, clock),
		Audit:     api.NewAuditHandler(auditService),
		Scanner:   scanner,
		JWTSecret: cfg.Auth.JWTSecret,
	})

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		log.Info("Received signal, initiating graceful shutdown", zap.String("signal", sig.String()))

		appCancel()

		shutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer httpShutdownCancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			log.Error("Hertz server shutdown error", zap.Error(err))
		} else {
			log.Info("Hertz server gracefully stopped")
		}

		schedulerService.Stop()

		if err := publisher.Close(); err != nil {
			log.Error("Event transport close error", zap.Error(err))
		}
		log.Info("Task Manager gracefully shut down")
	}()

	log.Info("Task Manager Service fully initialized",
		zap.String("addr", cfg.Server.Addr),
		zap.String("broker", cfg.Broker.Driver),
		zap.String("encoding", cfg.Broker.Encoding),
	)
	h.Spin()
}
