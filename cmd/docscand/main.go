package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/app"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/core/async"
	"github.com/joseph-ayodele/docscan/internal/ingest"
	"github.com/joseph-ayodele/docscan/internal/server"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", "error", err)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Ping the store to ensure connectivity
	if err := a.Stores.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.UnaryLogger(logger)))
	server.RegisterAnalysisServer(grpcServer, server.NewAnalysisService(a.Processor, a.Exporter, a.Ingestor, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	var queue *async.ProcessorQueue
	if len(cfg.Watch.Dirs) > 0 {
		queue, err = watch(ctx, cfg.Watch, a.Ingestor, logger)
		if err != nil {
			logger.Error("failed to start directory watcher", "dirs", cfg.Watch.Dirs, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("docscand listening", "addr", addr, "store", cfg.Database.Driver)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	healthServer.Shutdown()
	if queue != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		queue.Shutdown(sctx)
		cancel()
	}
	grpcServer.GracefulStop()
}

// watch analyzes files dropped into the watched directories on behalf of one seller.
func watch(ctx context.Context, cfg common.WatchConfig, ing async.PathIngestor, logger *slog.Logger) (*async.ProcessorQueue, error) {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Dirs,
		InitialScan: true,
		Debounce:    cfg.Debounce,
		SkipHidden:  true,
	}, logger)
	if err != nil {
		return nil, err
	}

	dt, _ := constants.CanonicalDocumentType(cfg.DocumentType)
	opts := ingest.Options{
		SellerID:     cfg.SellerID,
		UploaderType: constants.UploaderSeller,
		DocumentType: dt,
		Tier:         constants.TierFree,
	}
	queue := async.NewProcessorQueue(ing, logger,
		async.WithWorkers(cfg.Workers),
		async.WithQueueSize(512),
		async.WithProcessTimeout(3*time.Minute),
	)

	go func() {
		for {
			select {
			case path, ok := <-events:
				if !ok {
					return
				}
				if err := queue.Enqueue(ctx, async.Job{Path: path, Options: opts}); err != nil {
					logger.Warn("dropped watched file", "path", path, "error", err)
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("watcher reported an error", "error", err)
			}
		}
	}()
	logger.Info("watching directories", "dirs", cfg.Dirs, "seller_id", cfg.SellerID, "document_type", dt)
	return queue, nil
}
