package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/admission"
	"github.com/septivank/submetering-worker/internal/anomaly"
	"github.com/septivank/submetering-worker/internal/billing"
	"github.com/septivank/submetering-worker/internal/config"
	"github.com/septivank/submetering-worker/internal/db"
	"github.com/septivank/submetering-worker/internal/mq"
	"github.com/septivank/submetering-worker/internal/photostore"
	"github.com/septivank/submetering-worker/internal/repository"
	"github.com/septivank/submetering-worker/internal/service"
	"github.com/septivank/submetering-worker/internal/validator"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	processor *service.ProcessorService,
) (*mq.Consumer, error) {
	// Create context for consumer that will be cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.CommandQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.CommandExchange,
		RoutingKey:    cfg.RabbitMQ.CommandRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       processor.ProcessMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting worker consumer",
				zap.String("queue", cfg.RabbitMQ.CommandQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// ProvideDBPool creates the database pool and applies the schema on start
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(lc, logger, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.EnsureSchema(ctx, pool); err != nil {
				return err
			}
			logger.Info("database schema ensured")
			return nil
		},
	})
	return pool, nil
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *pgxpool.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.TimestampToleranceMinutes)
}

// ProvidePhotoStore creates the reading photo store
func ProvidePhotoStore(cfg *config.Config, logger *zap.Logger) *photostore.Dir {
	return photostore.NewDir(cfg.Photos.Dir, cfg.Photos.BaseURL, logger)
}

// ProvideAdmissionService creates the reading admission service
func ProvideAdmissionService(
	repo *repository.Repository,
	photos *photostore.Dir,
	validator *validator.Validator,
	logger *zap.Logger,
) *admission.Service {
	return admission.NewService(repo, repo, repo, photos, validator, logger)
}

// ProvideReportService creates the billing report service
func ProvideReportService(repo *repository.Repository, detector *anomaly.Detector, logger *zap.Logger) *service.ReportService {
	return service.NewReportService(repo, billing.NewBuilder(detector), logger)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	if err := cfg.RequireRabbitMQ(); err != nil {
		return nil, err
	}
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the event publisher and closes it on shutdown
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventExchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideProcessorService creates a new processor service instance
func ProvideProcessorService(
	admissionService *admission.Service,
	repo *repository.Repository,
	reports *service.ReportService,
	publisher *mq.Publisher,
	validator *validator.Validator,
	logger *zap.Logger,
) *service.ProcessorService {
	return service.NewProcessorService(admissionService, repo, repo, repo, reports, publisher, validator, logger)
}
