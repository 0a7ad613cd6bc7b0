package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/presence/internal/api"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/engine"
	"github.com/your-org/presence/internal/extract"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/notify"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting presence engine", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	snapshots, err := storage.NewSnapshotArchive(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := snapshots.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Notification path: stability gate + escalation, hub fan-out,
	// role-routed webhooks.
	notifier := notify.NewService(
		notify.NewThrottler(cfg.Notifications),
		notify.NewDispatcher(cfg.Webhooks),
		hub,
	)

	// Recognition pipeline
	extractor := extract.NewClient(cfg.Extractor)
	sessions := engine.NewSessionManager(db)
	visitors := engine.NewVisitorManager(db, sessions, snapshots)
	eng := engine.New(cfg.Engine, sessions, visitors, extractor, db, notifier, producer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sessions.Bootstrap(ctx); err != nil {
		slog.Warn("bootstrap active sessions", "error", err)
	}
	if err := visitors.Bootstrap(ctx, time.Now()); err != nil {
		slog.Warn("bootstrap temp visitors", "error", err)
	}

	go eng.Run(ctx)

	// Drain the recognition stream into the audit trail.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create recognition consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeRecognitions(ctx, "recognition-log", func(ctx context.Context, msg jetstream.Msg) error {
		var entry models.RecognitionLog
		if err := json.Unmarshal(msg.Data(), &entry); err != nil {
			return err
		}
		if err := db.InsertRecognitionLog(ctx, entry); err != nil {
			return err
		}
		if payload, err := json.Marshal(map[string]any{"type": "recognition", "data": entry}); err == nil {
			hub.Broadcast(payload)
		}
		return nil
	}, 4)
	if err != nil {
		slog.Warn("start recognition consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:    cfg.Server.APIKey,
		DB:        db,
		MinIO:     snapshots,
		Producer:  producer,
		Engine:    eng,
		Hub:       hub,
		Extractor: extractor,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}

	slog.Info("shutdown complete")
}
