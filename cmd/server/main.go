package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cashdesk/internal/commons"
	"cashdesk/internal/config"
	"cashdesk/internal/events"
	"cashdesk/internal/infrastructure/logger"
	"cashdesk/internal/infrastructure/mysql"
	"cashdesk/internal/infrastructure/redis"
	"cashdesk/internal/inventory"
	"cashdesk/internal/inventory/service"
	"cashdesk/internal/product"
	"cashdesk/internal/refund"
	"cashdesk/internal/sales"
	"cashdesk/internal/sequence"
	"cashdesk/internal/server"
)

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return commons.LoadConfig(path)
	}
	return config.Load()
}

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("connecting to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("database connected")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := mysql.Migrate(ctx, db); err != nil {
			zapLogger.Fatal("applying schema", zap.Error(err))
		}
		zapLogger.Info("schema applied")
	}

	var (
		publisher events.Publisher
		locker    service.Locker
	)
	if cfg.Redis.Enabled {
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("connecting to redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = redis.NewPublisher(rdb, cfg.Redis.Channel)
		locker = redis.NewLocker(rdb)
		zapLogger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}
	notifier := events.NewNotifier(publisher, cfg.Redis.PublishTimeout, zapLogger)

	numbers, sequenceCtrl := sequence.NewModule(db, zapLogger)
	stock := inventory.NewModule(db, cfg, locker, notifier, zapLogger)
	productCtrl := product.NewModule(db, zapLogger)
	_, invoiceCtrl := sales.NewModule(db, cfg, stock.Ledger, numbers, notifier, zapLogger)
	_, refundCtrl := refund.NewModule(db, cfg, stock.Ledger, numbers, notifier, zapLogger)

	router, err := server.NewRouter(server.Controllers{
		Invoices:  invoiceCtrl,
		Stock:     stock.Controller,
		Refunds:   refundCtrl,
		Products:  productCtrl,
		Sequences: sequenceCtrl,
	}, cfg.Server.RateLimit, zapLogger)
	if err != nil {
		zapLogger.Fatal("building router", zap.Error(err))
	}

	if cfg.Alerts.Enabled {
		go stock.Alerts.Run(ctx)
		zapLogger.Info("stock alert poller started", zap.Duration("interval", cfg.Alerts.Interval))
	}

	srv := server.New(cfg.Server, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("server shutdown failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}
