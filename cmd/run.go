package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"commitbet/config"
	"commitbet/database"
	"commitbet/events"
	"commitbet/infrastructure"
	"commitbet/infrastructure/observability"
	"commitbet/repository"
	"commitbet/repository/memory"
	"commitbet/server"
	"commitbet/service"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run initializes and serves the market API until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	if err := cfg.ConfigureLogging(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"store":       cfg.StoreDriver,
	}).Info("Starting commitbet...")

	// Initialize metrics
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to shut down metrics provider")
		}
	}()

	// Initialize event bus
	eventBus := events.NewBus()

	// Initialize storage
	uowFactory, closeStore, err := OpenStore(ctx, cfg, eventBus, metrics)
	if err != nil {
		return err
	}
	defer closeStore()

	// Forward committed events to NATS
	if cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := natsClient.Connect(connectCtx)
		cancel()
		if err != nil {
			return err
		}
		defer natsClient.Close()

		mapper := infrastructure.NewEventSubjectMapper()
		if err := natsClient.EnsureStream(infrastructure.StreamName, []string{infrastructure.SubjectPrefix + ".>"}); err != nil {
			return err
		}
		infrastructure.NewEventForwarder(natsClient, mapper, metrics).Register(eventBus)
		log.WithField("subjects", strings.Join(mapper.GetAllSubjects(), ",")).Info("Forwarding market events to NATS")
	}

	// Announce markets on Discord
	if cfg.DiscordWebhookURL != "" {
		notifier, err := infrastructure.NewDiscordNotifier(cfg.DiscordWebhookURL)
		if err != nil {
			return fmt.Errorf("failed to initialize Discord notifier: %w", err)
		}
		notifier.Register(eventBus)
		log.Info("Discord market announcements enabled")
	}

	// Serialize market operations across instances
	var locker service.MarketLocker
	if cfg.RedisAddr != "" {
		rdb, err := infrastructure.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = infrastructure.NewRedisLocker(rdb, cfg.LockTTL)
		log.WithField("ttl", cfg.LockTTL).Info("Redis market locking enabled")
	}

	// Initialize services
	marketService := service.NewMarketService(uowFactory, service.SystemClock{}, locker, metrics)
	accountService := service.NewAccountService(uowFactory, cfg.StartingBalance)

	srv := server.New(server.Config{Addr: cfg.HTTPAddr, APIKey: cfg.APIKey}, marketService, accountService)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Shutdown completed")
	return nil
}

// OpenStore returns the unit of work factory for the configured store driver and
// a function releasing its resources
func OpenStore(ctx context.Context, cfg *config.Config, eventBus *events.Bus, meter repository.QueryMeter) (service.UnitOfWorkFactory, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("Using in-memory store, state is lost on exit")
		return memory.NewUnitOfWorkFactory(memory.NewStore(), eventBus), func() {}, nil

	case config.StoreDriverPostgres:
		databaseURL := cfg.GetDatabaseURL()
		if err := database.RunMigrationsWithURL(databaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		db, err := database.NewConnection(ctx, databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Database connection established")

		return repository.NewUnitOfWorkFactory(db, eventBus, meter), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
