// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/wsp-bulk-sender/internal/campaign"
	"github.com/unclebandit/wsp-bulk-sender/internal/config"
	"github.com/unclebandit/wsp-bulk-sender/internal/controller"
	"github.com/unclebandit/wsp-bulk-sender/internal/db"
	"github.com/unclebandit/wsp-bulk-sender/internal/handler"
	"github.com/unclebandit/wsp-bulk-sender/internal/logger"
	"github.com/unclebandit/wsp-bulk-sender/internal/metrics"
	"github.com/unclebandit/wsp-bulk-sender/internal/queue"
	"github.com/unclebandit/wsp-bulk-sender/internal/repository"
	"github.com/unclebandit/wsp-bulk-sender/internal/sender"
	"github.com/unclebandit/wsp-bulk-sender/internal/service"
)

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

	// Init DB
	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	channelRepo := &repository.ChannelRepository{DB: conn}
	runRepo := &repository.RunRepository{DB: conn}

	q, closeQueue, err := openQueue(cfg.Queue, runRepo, log)
	if err != nil {
		log.Fatal("failed to open queue", zap.Error(err))
	}
	defer closeQueue()

	if cfg.Gateway.URL == "" {
		log.Warn("WSP_GATEWAY_URL is not set, every send will fail")
	}
	var msgSender campaign.MessageSender = sender.NewGatewaySender(cfg.Gateway.URL, sender.WithTimeout(cfg.Gateway.Timeout()))
	msgSender = sender.RateLimited(sender.NewLimiter(cfg.Gateway.MaxRequestsPerSecond), msgSender)

	m := metrics.New(prometheus.DefaultRegisterer)

	campaignService := &service.CampaignService{
		ChannelRepo: channelRepo,
		RunRepo:     runRepo,
		Templates:   sender.NewTemplateClient(cfg.Graph.BaseURL, cfg.Graph.Version, &http.Client{Timeout: cfg.Gateway.Timeout()}),
		Sender:      msgSender,
		Queue:       q,
		Topic:       cfg.Queue.Topic,
		Observers:   []campaign.Observer{m.Observe},
		Settings:    cfg.Campaign,
		Logger:      log,
	}

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	campaignHandler := &handler.CampaignHandler{Service: campaignService, Logger: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	campaignController.Routes(r)
	campaignHandler.Routes(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("🚀 Server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Stops the running campaign first so open event streams see the final state.
		if err := campaignService.Shutdown(shutdownCtx); err != nil {
			log.Warn("campaign did not stop in time", zap.Error(err))
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}

// openQueue picks the outcome queue. With the memory driver outcomes are persisted
// in-process; with amqp the worker binary consumes them.
func openQueue(cfg config.QueueConfig, store queue.OutcomeStore, log *zap.Logger) (queue.Queue, func(), error) {
	switch cfg.Driver {
	case "amqp":
		q, err := queue.DialAMQP(cfg.AMQPURL, log)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { q.Close() }, nil
	default:
		q := queue.NewInMemoryQueue(log)
		if err := queue.StartOutcomeSubscriber(q, cfg.Topic, store, log); err != nil {
			return nil, nil, err
		}
		return q, q.Wait, nil
	}
}
