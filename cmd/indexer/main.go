package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/soundvine/discovery-indexer/internal/adapter"
	"github.com/soundvine/discovery-indexer/internal/chain"
	"github.com/soundvine/discovery-indexer/internal/config"
	"github.com/soundvine/discovery-indexer/internal/entity"
	"github.com/soundvine/discovery-indexer/internal/indexer"
	"github.com/soundvine/discovery-indexer/internal/logger"
	"github.com/soundvine/discovery-indexer/internal/messaging"
	"github.com/soundvine/discovery-indexer/internal/metadata"
	"github.com/soundvine/discovery-indexer/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "", "Path to env file directory")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadIndexerConfig(*configPath, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	if err := logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Service:   "discovery-indexer",
	}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.Info("Starting discovery indexer")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
		cfg.Database.ConnMaxIdleTime,
	); err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	dataStore := store.NewPGStore(db)
	logger.Info("Connected to database")

	// Connect to redis
	redisClient := adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis connection", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	logger.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr))

	// Connect to the chain RPC
	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		logger.Fatal("Failed to connect to chain rpc", zap.Error(err))
	}
	defer ethClient.Close()
	logger.Info("Connected to chain rpc", zap.Int64("chain_id", cfg.Chain.ChainID))

	chainClient := chain.NewClient(ethClient, cfg.Indexing.ReceiptPoolSize, cfg.Chain.FinalPoaBlock)
	decoder, err := chain.NewDecoder(cfg.Chain.EntityManagerAddress)
	if err != nil {
		logger.Fatal("Failed to build event decoder", zap.Error(err))
	}

	// Connect to NATS for challenge dispatch
	publisher, err := messaging.NewNATSPublisher(ctx, adapter.NewNatsJetStream(), cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to nats", zap.Error(err))
	}
	defer publisher.Close()
	logger.Info("Connected to nats", zap.String("stream", cfg.NATS.StreamName))

	resolver := metadata.NewResolver(
		adapter.NewHTTPClient(cfg.Metadata.HTTPTimeout),
		cfg.Metadata.GatewayURLs,
		cfg.Metadata.Phase1Timeout,
		cfg.Metadata.Phase2Timeout,
		cfg.Metadata.PoolSize,
	)

	engine := indexer.NewEngine(
		dataStore,
		chainClient,
		decoder,
		resolver,
		entity.NewDispatcher(cfg.Chain.VerifierAddress),
		publisher,
		indexer.NewLock(redisClient, adapter.NewClock(), cfg.Indexing.LockLease, cfg.Indexing.LockWait),
		indexer.NewCursors(redisClient, cfg.Indexing.CursorTTL),
		indexer.NewSkipState(redisClient),
		cfg.Indexing,
	)

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.Error(err, zap.String("component", "engine"))
		cancel()
	}

	// Give the current cycle a moment to wind down
	time.Sleep(time.Second)

	logger.Info("Discovery indexer stopped")
}
