// Command notifier drains the booking notification queues and appends one
// line per event to a log file.  It stands in for the mail and SMS
// senders that would normally consume these queues.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-inventory/internal/config"
	"github.com/iliyamo/cinema-seat-inventory/internal/queue"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	url := config.LoadBookingConfig().NotifyQueueURL
	if url == "" {
		logger.Fatal("NOTIFY_QUEUE_URL (or RABBITMQ_URL) is required")
	}
	path := os.Getenv("NOTIFY_LOG_PATH")
	if path == "" {
		path = "logs/notifications.log"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("notifier started", zap.Strings("queues", queue.Queues), zap.String("log_path", path))
	if err := queue.Consume(ctx, url, queue.FileHandler(path), logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("notifier stopped", zap.Error(err))
	}
	logger.Info("notifier stopped")
}
