package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/bridge"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/diag"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/moduleinfo"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/registry"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/server"
	"github.com/nupi-ai/plugin-stt-whisper-bridge/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{}.Load()
	if err != nil {
		diag.NewLogger("error", os.Stderr).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := diag.NewLogger(cfg.LogLevel, os.Stdout)
	logger.Info("starting adapter",
		"module", moduleinfo.Info.Slug,
		"version", moduleinfo.Version(),
		"listen_addr", cfg.ListenAddr,
		"metrics_addr", cfg.MetricsAddr,
		"model_path", cfg.ModelPath,
		"language", cfg.Language,
	)

	var metrics *telemetry.Metrics
	if cfg.MetricsAddr != "" {
		mp, shutdown, err := telemetry.InitProvider(ctx)
		if err != nil {
			logger.Error("failed to initialise metrics provider", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to shut down metrics provider", "error", err)
			}
		}()
		if metrics, err = telemetry.NewMetrics(mp); err != nil {
			logger.Error("failed to create metrics", "error", err)
			os.Exit(1)
		}
	}
	recorder := telemetry.NewRecorder(logger, metrics)

	b, err := bridge.NewFromConfig(cfg, logger, recorder)
	if err != nil {
		logger.Error("failed to initialise bridge", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close bridge", "error", err)
		}
	}()

	if cfg.ModelPath != "" {
		handle, status := b.CreateContextWithStatus(cfg.ModelPath, cfg.Language)
		if handle == registry.InvalidHandle {
			logger.Warn("model preload failed", "model_path", cfg.ModelPath, "status", status.String())
		} else {
			logger.Info("model preloaded", "model_path", cfg.ModelPath, "handle", handle.String())
		}
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind listener", "error", err)
		os.Exit(1)
	}
	defer lis.Close()

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)

	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(server.ServiceName, healthgrpc.HealthCheckResponse_NOT_SERVING)

	server.RegisterBridgeServer(grpcServer, server.New(b, logger))

	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, healthgrpc.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested, stopping servers")
		healthServer.SetServingStatus(server.ServiceName, healthgrpc.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)

		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", "error", err)
			}
		}

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			logger.Warn("graceful stop timed out, forcing stop")
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server terminated with error", "error", err)
		os.Exit(1)
	}

	if snapshot := recorder.Snapshot(); snapshot.Transcriptions > 0 || snapshot.ContextsLoaded > 0 {
		logger.Info("telemetry totals",
			"contexts_loaded", snapshot.ContextsLoaded,
			"contexts_replaced", snapshot.ContextsReplaced,
			"contexts_released", snapshot.ContextsReleased,
			"load_failures", snapshot.LoadFailures,
			"transcriptions", snapshot.Transcriptions,
			"transcription_failures", snapshot.TranscriptionFailures,
			"empty_transcripts", snapshot.EmptyTranscripts,
			"total_samples", snapshot.TotalSamples,
		)
	}

	logger.Info("adapter stopped")
}
