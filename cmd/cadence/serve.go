package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cadence/internal/config"
	"github.com/alfredjeanlab/cadence/internal/recurrence"
	"github.com/alfredjeanlab/cadence/internal/registration"
	"github.com/alfredjeanlab/cadence/internal/server"
	cadencesync "github.com/alfredjeanlab/cadence/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the cadence HTTP and gRPC servers",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// No API client needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		memoryStore, _ := cmd.Flags().GetBool("memory")
		runOnStart, _ := cmd.Flags().GetBool("run-on-start")
		cfg, logger, err := loadConfig(func(c *config.Config) {
			if memoryStore {
				c.Memory = true
			}
			if runOnStart {
				c.RunOnStart = true
			}
		})
		if err != nil {
			return err
		}

		st, err := openStack(cfg, logger, true)
		if err != nil {
			return err
		}
		defer st.Close()

		policy, err := registration.ParseRolePolicy(cfg.RolePolicy)
		if err != nil {
			return err
		}
		inputLoc, err := cfg.InputLocation()
		if err != nil {
			return err
		}

		srv := server.New(server.Options{
			Store:         st.store,
			Clock:         st.clock,
			Generator:     st.engine,
			Registrations: registration.NewService(st.store, st.clock, policy, st.recorder, logger),
			Recorder:      st.recorder,
			Hub:           st.hub,
			Logger:        logger,
			InputLocation: inputLoc,
			AdminToken:    cfg.AdminToken,
			RegisterRPS:   cfg.RegisterRPS,
			RegisterBurst: cfg.RegisterBurst,
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// gRPC health + reflection.
		var grpcStop func()
		if cfg.GRPCAddr != "" {
			grpcServer, healthServer := server.NewGRPCServer()
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return err
			}
			go server.WatchHealth(ctx, healthServer, st.store, 10*time.Second, logger)
			go func() {
				logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
			grpcStop = grpcServer.GracefulStop
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Periodic generation.
		var generator *recurrence.Scheduler
		if cfg.Schedule != "" {
			loc, err := cfg.ScheduleLocation()
			if err != nil {
				return err
			}
			generator, err = recurrence.NewScheduler(st.engine, recurrence.SchedulerConfig{
				Spec:        cfg.Schedule,
				Location:    loc,
				PassTimeout: cfg.PassTimeout,
				RunOnStart:  cfg.RunOnStart,
			}, logger)
			if err != nil {
				return err
			}
			generator.Start()
		}

		// Snapshot export.
		var syncer *cadencesync.Scheduler
		if cfg.SyncInterval > 0 {
			dests := syncDestinations(ctx, cfg, logger)
			if len(dests) > 0 {
				syncer = cadencesync.NewScheduler(st.store, dests, cfg.SyncInterval, logger)
				syncer.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
			}
		}

		logger.Info("cadence server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"role_policy", policy,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if generator != nil {
			generator.Stop()
			logger.Info("generation scheduler stopped")
		}
		if syncer != nil {
			syncer.Stop()
			logger.Info("sync scheduler stopped")
		}
		cancel()
		if grpcStop != nil {
			grpcStop()
			logger.Info("gRPC server stopped")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("memory", false, "use the in-memory store instead of Postgres")
	serveCmd.Flags().Bool("run-on-start", false, "run one generation pass at startup")
}

// syncDestinations builds the snapshot destinations enabled in cfg. A
// destination that fails to initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []cadencesync.Destination {
	var dests []cadencesync.Destination
	if cfg.SyncS3Bucket != "" {
		s3, err := cadencesync.NewS3Destination(ctx, cadencesync.S3Options{
			Bucket:        cfg.SyncS3Bucket,
			Key:           cfg.SyncS3Key,
			Region:        cfg.SyncS3Region,
			Endpoint:      cfg.SyncS3Endpoint,
			ArchivePrefix: cfg.SyncS3ArchivePath,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3)
			logger.Info("S3 sync enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, cadencesync.NewGitDestination(cadencesync.GitOptions{
			Repo:   cfg.SyncGitRepo,
			File:   cfg.SyncGitFile,
			Branch: cfg.SyncGitBranch,
		}))
		logger.Info("git sync enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	return dests
}
