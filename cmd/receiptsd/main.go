package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/receipts-sync/internal/app"
	"github.com/joseph-ayodele/receipts-sync/internal/async"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
	"github.com/joseph-ayodele/receipts-sync/internal/events"
	"github.com/joseph-ayodele/receipts-sync/internal/ingest"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		common.NewLogger(common.LogConfig{}, os.Stderr).Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Cleanup()

	if err := a.DB.HealthCheck(ctx, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping store", "error", err)
		os.Exit(1)
	}

	queue := async.NewRefreshQueue(a.Store, logger,
		async.WithWorkers(cfg.Refresh.Workers),
		async.WithQueueSize(cfg.Refresh.QueueSize),
		async.WithRefreshTimeout(cfg.Refresh.Timeout),
	)

	// gRPC health
	lis, err := net.Listen("tcp", cfg.Health.Addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Health.Addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	// warm the unfiltered view so invalidations have something to refresh
	if _, err := a.Store.List(ctx, entity.ReceiptFilters{}); err != nil {
		logger.Warn("receiptsd.warmup.failed", "error", err)
	}

	if a.Broker != nil {
		go consume(ctx, a, queue, healthServer)
	} else {
		logger.Warn("receiptsd.amqp.disabled", "reason", "AMQP_URL not set or broker unreachable")
	}

	go refreshRates(ctx, a, cfg.Rates.TTL)

	if cfg.Ingest.Dir != "" {
		paths, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Ingest.Dir},
			InitialScan: true,
			SkipHidden:  cfg.Ingest.SkipHidden,
			Debounce:    cfg.Ingest.Debounce,
		}, logger)
		if err != nil {
			logger.Error("failed to watch ingest dir", "dir", cfg.Ingest.Dir, "error", err)
			os.Exit(1)
		}
		go ingestLoop(ctx, a, paths)
	}

	logger.Info("receiptsd started", "health_addr", cfg.Health.Addr, "display_currency", cfg.Display.Currency)
	<-ctx.Done()

	logger.Info("receiptsd stopping")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
}

// consume applies remote invalidations and schedules a refresh of every view
// they marked stale.
func consume(ctx context.Context, a *app.App, queue *async.RefreshQueue, hs *health.Server) {
	err := a.Broker.Consume(ctx, func(e events.Event) {
		a.Store.ApplyRemote(e)
		evCtx := common.WithRequestID(ctx, e.ReceiptID.String())
		if err := queue.EnqueueAll(evCtx, a.Store.Stale()); err != nil && !errors.Is(err, async.ErrClosed) {
			a.Logger.Warn("receiptsd.enqueue.failed", "receipt_id", e.ReceiptID, "error", err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("receiptsd.consume.stopped", "error", err)
		hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
}

// ingestLoop scans each image dropped into the watched directory.
func ingestLoop(ctx context.Context, a *app.App, paths <-chan string) {
	for path := range paths {
		res, err := a.Ingestor.IngestPath(common.WithRequestID(ctx, path), path)
		if err != nil {
			a.Logger.Warn("receiptsd.ingest.failed", "path", path, "error", err)
			continue
		}
		if res.Deduplicated {
			a.Logger.Info("receiptsd.ingest.duplicate", "path", path, "receipt_id", res.ReceiptID)
		}
	}
}

func refreshRates(ctx context.Context, a *app.App, every time.Duration) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := a.Rates.Refresh(ctx); err != nil {
			a.Logger.Warn("receiptsd.rates.refresh_failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
