package main // auditor drains auth events from RabbitMQ into the audit sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/carefinder-api/internal/config"
	"github.com/iliyamo/carefinder-api/internal/database"
	"github.com/iliyamo/carefinder-api/internal/logging"
	"github.com/iliyamo/carefinder-api/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.RabbitURL == "" {
		return errors.New("RABBITMQ_URL is required for the auditor")
	}

	log, err := logging.New(cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink queue.Sink = &queue.FileSink{Dir: "logs"}
	if cfg.Audit.Enabled() {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := database.Open(openCtx, cfg.Audit)
		if err != nil {
			return fmt.Errorf("audit db: %w", err)
		}
		defer db.Close()
		store := database.NewAuditStore(db)
		if err := store.EnsureSchema(openCtx); err != nil {
			return fmt.Errorf("audit schema: %w", err)
		}
		sink = store
		log.Info("auditing to mysql", zap.String("host", cfg.Audit.Host), zap.String("db", cfg.Audit.Name))
	} else {
		log.Info("auditing to logs/auth.log")
	}

	err = queue.NewConsumer(cfg.RabbitURL, sink, log).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
