package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knotline/knot/internal/config"
	"github.com/knotline/knot/internal/events"
	"github.com/knotline/knot/internal/notify"
	"github.com/knotline/knot/internal/presence"
	"github.com/knotline/knot/internal/server"
	"github.com/knotline/knot/internal/store/postgres"
	knotsync "github.com/knotline/knot/internal/sync"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the knot relation server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (KNOT_NATS_URL not set)")
		}

		// Create the server and wire the offline reaper to the bus.
		knotServer := server.NewKnotServer(store, publisher)
		tracker := knotServer.Presence
		tracker.StartReaper(&presence.ReaperConfig{
			OnOffline: func(sender string, lastSeen time.Time) {
				ev := events.SenderOffline{Sender: sender, LastSeen: lastSeen}
				if err := publisher.Publish(context.Background(), events.TopicSenderOffline, ev); err != nil {
					logger.Warn("publishing offline event failed", "sender", sender, "err", err)
				}
			},
		})

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: knotServer.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start export scheduler if any destinations are configured.
		var scheduler *knotsync.Scheduler
		if cfg.ExportInterval > 0 {
			var dests []knotsync.Destination

			if cfg.ExportS3Bucket != "" {
				s3Dest, err := knotsync.NewS3Destination(context.Background(), knotsync.S3Config{
					Bucket:   cfg.ExportS3Bucket,
					Key:      cfg.ExportS3Key,
					Region:   cfg.ExportS3Region,
					Endpoint: cfg.ExportS3Endpoint,
				})
				if err != nil {
					logger.Error("failed to create S3 export destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
				}
			}

			if cfg.ExportDir != "" {
				dests = append(dests, knotsync.NewDirDestination(cfg.ExportDir))
				logger.Info("export dir destination enabled", "dir", cfg.ExportDir)
			}

			if len(dests) > 0 {
				scheduler = knotsync.NewScheduler(store, dests, cfg.ExportInterval, logger)
				scheduler.Start()
				logger.Info("export scheduler started", "interval", cfg.ExportInterval)
			}
		}

		// Start the webhook forwarder if NATS and webhooks are configured.
		var notifyCancel context.CancelFunc
		if cfg.NATSURL != "" && len(cfg.WebhookURLs) > 0 {
			notifySub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create webhook subscriber", "err", err)
			} else {
				notifier := notify.New(cfg.WebhookURLs, logger)
				var notifyCtx context.Context
				notifyCtx, notifyCancel = context.WithCancel(context.Background())
				go func() {
					if err := notifier.StartSubscriber(notifyCtx, notifySub); err != nil {
						logger.Error("webhook forwarder error", "err", err)
					}
					notifySub.Close()
				}()
				logger.Info("webhook forwarder started", "webhooks", len(cfg.WebhookURLs))
			}
		}

		logger.Info("knot server started", "addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if notifyCancel != nil {
			notifyCancel()
			logger.Info("webhook forwarder stopped")
		}

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}

		tracker.Stop()
		logger.Info("presence reaper stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
