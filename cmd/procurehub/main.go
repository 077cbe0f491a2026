package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/procurehub/procurehub/internal/app"
	"github.com/procurehub/procurehub/internal/bid"
	"github.com/procurehub/procurehub/internal/observability"
	"github.com/procurehub/procurehub/internal/platform/cache"
	"github.com/procurehub/procurehub/internal/platform/db"
	"github.com/procurehub/procurehub/internal/purchaseorder"
	"github.com/procurehub/procurehub/internal/requisition"
	"github.com/procurehub/procurehub/internal/shared"
	"github.com/procurehub/procurehub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	approvals := shared.NewApprovalRecorder(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)
	locker := shared.NewRecordLocker(redisClient, 30*time.Second)
	metrics := observability.NewMetrics()

	var rescoreQueue bid.RescoreQueue
	var refreshQueue requisition.RefreshQueue
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("jobs client", slog.Any("error", err))
	} else {
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		queue := &jobQueue{client: jobsClient}
		rescoreQueue = queue
		refreshQueue = queue
	}

	reqRepo := requisition.NewRepository(pool)
	reqService := requisition.NewService(reqRepo, reqRepo, auditLogger, logger)
	reqHandler := requisition.NewHandler(logger, reqService, refreshQueue, metrics)

	poRepo := purchaseorder.NewRepository(pool)
	poService := purchaseorder.NewService(poRepo, auditLogger, idempotency, locker, nil, logger)
	poHandler := purchaseorder.NewHandler(logger, poService, metrics)

	bidRepo := bid.NewRepository(pool)
	bidService := bid.NewService(bidRepo, approvals, auditLogger, bid.DefaultScoringConfig())
	bidHandler := bid.NewHandler(logger, bidService, rescoreQueue, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		RequisitionHandler:   reqHandler,
		PurchaseOrderHandler: poHandler,
		BidHandler:           bidHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// jobQueue adapts the asynq-backed client to the handler queue ports.
type jobQueue struct {
	client *jobs.Client
}

func (q *jobQueue) EnqueueBidRescore(ctx context.Context, bidID int64) error {
	_, err := q.client.EnqueueBidRescore(ctx, bidID)
	return err
}

func (q *jobQueue) EnqueueStockRefresh(ctx context.Context) error {
	_, err := q.client.EnqueueStockRefresh(ctx)
	return err
}
