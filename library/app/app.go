package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/library-ledger/library/config"
	"github.com/Astemirdum/library-ledger/library/internal/events"
	"github.com/Astemirdum/library-ledger/library/internal/handler"
	"github.com/Astemirdum/library-ledger/library/internal/repository"
	"github.com/Astemirdum/library-ledger/library/internal/scheduler"
	"github.com/Astemirdum/library-ledger/library/internal/server"
	"github.com/Astemirdum/library-ledger/library/internal/service"
	"github.com/Astemirdum/library-ledger/library/migrations"
	"github.com/Astemirdum/library-ledger/pkg/kafka"
	"github.com/Astemirdum/library-ledger/pkg/logger"
	"github.com/Astemirdum/library-ledger/pkg/postgres"
)

const shutdownTimeout = 5 * time.Second

// Run serves the HTTP API until SIGINT or SIGTERM, together with the optional
// kafka consumer and availability repair job.
func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "library")
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	defer db.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enable {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return errors.Wrap(err, "kafka.NewProducer")
		}
		p := events.NewKafkaPublisher(producer, log)
		defer func() {
			if err := p.Close(); err != nil {
				log.Warn("producer close", zap.Error(err))
			}
		}()
		publisher = p
	}

	svc, err := newService(cfg, db, publisher, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Kafka.Enable {
		consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.AvailabilityConsumerGroup)
		if err != nil {
			return errors.Wrap(err, "kafka.NewConsumer")
		}
		g.Go(func() error {
			return consumeAvailability(gctx, consumer, svc, log)
		})
	}

	repair := scheduler.NewAvailabilityRepair(svc.FixAvailability, cfg.Ledger.RepairSchedule, log)
	if err := repair.Start(gctx); err != nil {
		return errors.Wrap(err, "repair.Start")
	}
	defer repair.Stop()

	h := handler.New(svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ", zap.String("addr", cfg.Server.Addr()))
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Graceful shutdown")
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown", zap.Error(err))
		return err
	}
	log.Info("Graceful shutdown finished")
	return nil
}

func consumeAvailability(ctx context.Context, group sarama.ConsumerGroup, svc *service.Service, log *zap.Logger) error {
	defer func() {
		if err := group.Close(); err != nil {
			log.Warn("consumer group close", zap.Error(err))
		}
	}()
	return kafka.Consume(ctx, group, handler.NewConsumer(svc.RecomputeAvailability, log), kafka.AvailabilityTopic)
}

func newService(cfg *config.Config, db *pgxpool.Pool, publisher events.Publisher, log *zap.Logger) (*service.Service, error) {
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return nil, errors.Wrap(err, "repository.NewRepository")
	}
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return nil, err
	}
	return service.NewService(repo, log,
		service.WithFineRate(cfg.Ledger.FinePerDay),
		service.WithLocation(loc),
		service.WithPublisher(publisher),
	), nil
}

// Migrate applies pending migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "library")
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	db.Close()
	log.Info("migrations applied")
	return nil
}

// FixAvailability runs one bulk recompute and reports how many books changed.
func FixAvailability(ctx context.Context, cfg *config.Config) (int64, error) {
	log := logger.NewLogger(cfg.Log, "library")
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return 0, errors.Wrap(err, "db init")
	}
	defer db.Close()

	svc, err := newService(cfg, db, events.NopPublisher{}, log)
	if err != nil {
		return 0, err
	}
	return svc.FixAvailability(ctx)
}
