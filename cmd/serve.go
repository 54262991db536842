package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/internal/repositories/matchconfig"
	"github.com/Ramsey-B/clover/internal/repositories/reconciliation"
	"github.com/Ramsey-B/clover/internal/repositories/record"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/resultcache"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/server"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the import consumer",
		Long: `Starts the clover API. Postgres is required; Redis, the graph database
and Kafka are started when configured. Dependencies start in order and are
retried with Fibonacci backoff.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// services collects what the startup steps build
type services struct {
	db        *database.DatabaseInstance
	redis     *redis.Client
	graph     *graph.Client
	producer  *kafka.Producer
	consumer  *kafka.Consumer
	server    *server.Server
	dedupe    *dedupe.Service
	duplicate *graph.DuplicateService
}

func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to flush traces")
		}
	}()

	svc := &services{}
	checker := health.NewChecker(cfg.Version)
	s := startup.NewStartup(log, cfg.StartupMaxAttempts)
	apiRequires := []string{"migrations"}

	s.AddDependency(startup.Func{
		Name: "database",
		OnStart: func(ctx context.Context) error {
			db, err := database.Connect(ctx, cfg.Database(), log)
			if err != nil {
				return err
			}
			svc.db = db
			checker.AddCheck("database", db.PingContext)
			return nil
		},
		OnStop: func(ctx context.Context) error { return svc.db.Close() },
	})
	s.AddDependency(startup.Func{
		Name:     "migrations",
		Requires: []string{"database"},
		OnStart: func(ctx context.Context) error {
			return database.NewMigrationService(log, cfg.Migration()).MigratePostgres(svc.db.DB.DB, cfg.DatabaseName)
		},
	})

	if cfg.RedisHost != "" {
		apiRequires = append(apiRequires, "redis")
		s.AddDependency(startup.Func{
			Name: "redis",
			OnStart: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, cfg.Redis(), log)
				if err != nil {
					return err
				}
				svc.redis = client
				checker.AddCheck("redis", client.Ping)
				return nil
			},
			OnStop: func(ctx context.Context) error { return svc.redis.Close() },
		})
	}

	if cfg.GraphDBHost != "" {
		apiRequires = append(apiRequires, "graph")
		s.AddDependency(startup.Func{
			Name: "graph",
			OnStart: func(ctx context.Context) error {
				client, err := graph.NewClient(cfg.Graph(), log)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				svc.graph = client
				svc.duplicate = graph.NewDuplicateService(client, log)
				checker.AddCheck("graph", client.VerifyConnectivity)
				return nil
			},
			OnStop: func(ctx context.Context) error { return svc.graph.Close(ctx) },
		})
	}

	if cfg.KafkaProducerEnabled {
		apiRequires = append(apiRequires, "producer")
		s.AddDependency(startup.Func{
			Name: "producer",
			OnStart: func(ctx context.Context) error {
				svc.producer = kafka.NewProducer(cfg.Producer(), log)
				return nil
			},
			OnStop: func(ctx context.Context) error { return svc.producer.Close() },
		})
	}

	s.AddDependency(startup.Func{
		Name:     "api",
		Requires: apiRequires,
		OnStart: func(ctx context.Context) error {
			svc.dedupe = a.dedupeService(svc)
			srv, err := server.New(cfg.Server(), a.routeDependencies(svc), checker, log)
			if err != nil {
				return err
			}
			svc.server = srv
			return svc.server.Start(ctx)
		},
		OnStop: func(ctx context.Context) error { return svc.server.Stop(ctx) },
	})

	if cfg.KafkaConsumerEnabled {
		s.AddDependency(startup.Func{
			Name:     "consumer",
			Requires: []string{"api"},
			OnStart: func(ctx context.Context) error {
				var locker processor.Locker
				if svc.redis != nil {
					locker = redis.NewLocker(svc.redis, "clover:lock:import:")
				}
				p := processor.NewImportProcessor(svc.dedupe, locker, processor.Options{
					Persist: cfg.PersistImports,
					LockTTL: cfg.ImportLockTTL,
				}, log)
				svc.consumer = kafka.NewConsumer(cfg.Consumer(), log, p.Handle)
				return svc.consumer.Start(ctx)
			},
			OnStop: func(ctx context.Context) error { return svc.consumer.Stop() },
		})
	}

	if err := s.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.Stop(stopCtx)
		return err
	}
	checker.SetReady(true)
	log.WithField("port", cfg.Port).Info("clover is ready")

	<-ctx.Done()
	log.Info("Shutting down")
	checker.SetReady(false)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Stop(stopCtx)
}

func (a *app) dedupeService(svc *services) *dedupe.Service {
	cfg, log := a.cfg, a.logger

	deps := dedupe.Dependencies{
		Records: record.NewRepository(svc.db, log, cfg.ImportBatchSize),
		Configs: matchconfig.NewRepository(svc.db, log),
		Runs:    reconciliation.NewRepository(svc.db, log),
	}
	if svc.duplicate != nil {
		deps.Graph = svc.duplicate
	}
	if svc.producer != nil {
		deps.Publisher = svc.producer
	}
	if svc.redis != nil {
		deps.Cache = resultcache.New(svc.redis, cfg.CacheTTL, log)
	}
	return dedupe.NewService(dedupe.Config{Workers: cfg.MatchWorkers}, deps, log)
}

func (a *app) routeDependencies(svc *services) server.Dependencies {
	log := a.logger

	deps := server.Dependencies{
		Dedupe:          svc.dedupe,
		MatchConfigs:    matchconfig.NewRepository(svc.db, log),
		Reconciliations: reconciliation.NewRepository(svc.db, log),
	}
	if svc.duplicate != nil {
		deps.Graph = svc.duplicate
	}
	return deps
}
