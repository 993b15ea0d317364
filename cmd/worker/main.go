package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/unclebandit/wsp-bulk-sender/internal/config"
	"github.com/unclebandit/wsp-bulk-sender/internal/db"
	"github.com/unclebandit/wsp-bulk-sender/internal/logger"
	"github.com/unclebandit/wsp-bulk-sender/internal/queue"
	"github.com/unclebandit/wsp-bulk-sender/internal/repository"
)

// The worker persists per-recipient outcomes the server publishes to RabbitMQ.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	q, err := queue.DialAMQP(cfg.Queue.AMQPURL, log)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer q.Close()

	runRepo := &repository.RunRepository{DB: conn}
	if err := run(ctx, q, cfg.Queue.Topic, runRepo, log); err != nil {
		log.Fatal("worker stopped", zap.Error(err))
	}
}

// run subscribes the outcome persister and blocks until ctx is done.
func run(ctx context.Context, q queue.Queue, topic string, store queue.OutcomeStore, log *zap.Logger) error {
	if topic == "" {
		topic = queue.OutcomesTopic
	}
	if err := queue.StartOutcomeSubscriber(q, topic, store, log); err != nil {
		return err
	}

	log.Info("Worker running, waiting for messages...", zap.String("topic", topic))
	<-ctx.Done()
	log.Info("worker shutting down")
	return nil
}
