package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/commentfeed/internal/backup"
	"github.com/alfredjeanlab/commentfeed/internal/config"
	"github.com/alfredjeanlab/commentfeed/internal/events"
	"github.com/alfredjeanlab/commentfeed/internal/server"
	"github.com/alfredjeanlab/commentfeed/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the board HTTP and gRPC servers",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client connection.
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL, nats.Name("board-server"))
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (BOARD_NATS_URL not set)")
		}

		// Create server components.
		opts := []server.Option{server.WithLogger(logger)}
		if cfg.ReplicaID != "" {
			opts = append(opts, server.WithReplicaID(cfg.ReplicaID))
		}
		boardServer := server.NewBoardServer(store, publisher, opts...)
		grpcServer := server.NewGRPCServer(boardServer, cfg.AuthToken)

		// Start gRPC listener.
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			store.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           boardServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start backup scheduler if any destinations are configured.
		var scheduler *backup.Scheduler
		if cfg.BackupEnabled() {
			var dests []backup.Destination

			if cfg.BackupS3Bucket != "" {
				s3Dest, err := backup.NewS3Destination(context.Background(), backup.S3Options{
					Bucket:    cfg.BackupS3Bucket,
					Key:       cfg.BackupS3Key,
					Region:    cfg.BackupS3Region,
					Endpoint:  cfg.BackupS3Endpoint,
					ReplicaID: boardServer.ReplicaID(),
				})
				if err != nil {
					logger.Error("failed to create S3 backup destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("backup S3 destination enabled", "bucket", cfg.BackupS3Bucket, "key", s3Dest.Key())
				}
			}

			if cfg.BackupGitRepo != "" {
				dests = append(dests, backup.NewGitDestination(cfg.BackupGitRepo, cfg.BackupGitFile, cfg.BackupGitBranch))
				logger.Info("backup git destination enabled", "repo", cfg.BackupGitRepo, "file", cfg.BackupGitFile)
			}

			if len(dests) > 0 {
				scheduler = backup.NewScheduler(store, dests, cfg.BackupInterval, logger)
				scheduler.Start()
				logger.Info("backup scheduler started", "interval", cfg.BackupInterval)
			}
		}

		// Relay inserts made on other replicas to this replica's streams.
		var bridgeCancel context.CancelFunc
		if cfg.NATSURL != "" {
			sub, err := events.NewNATSSubscriber(cfg.NATSURL, nats.Name("board-bridge"))
			if err != nil {
				logger.Error("failed to create event bridge subscriber", "err", err)
			} else {
				var bridgeCtx context.Context
				bridgeCtx, bridgeCancel = context.WithCancel(context.Background())
				go func() {
					if err := boardServer.StartEventBridge(bridgeCtx, sub); err != nil {
						logger.Error("event bridge error", "err", err)
					}
					sub.Close()
				}()
				logger.Info("event bridge started", "replica_id", boardServer.ReplicaID())
			}
		}

		logger.Info("board server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"auth", cfg.AuthToken != "",
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if bridgeCancel != nil {
			bridgeCancel()
			logger.Info("event bridge stopped")
		}

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("backup scheduler stopped")
		}

		// Insert streams only end when their clients leave, so graceful
		// stop is bounded.
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			grpcServer.Stop()
		}
		logger.Info("gRPC server stopped")

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
