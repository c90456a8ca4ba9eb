package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis configuration for the indexing lock, the health
// cursors, and the shared skip-transaction error state
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChainConfig holds the entity manager chain configuration
type ChainConfig struct {
	RPCURL string `mapstructure:"rpc_url"`
	// EntityManagerAddress is the contract whose ManageEntity logs drive indexing
	EntityManagerAddress string `mapstructure:"entity_manager_address"`
	// VerifierAddress is the only signer allowed to issue Verify actions
	VerifierAddress string `mapstructure:"verifier_address"`
	ChainID         int64  `mapstructure:"chain_id"`
	// FinalPoaBlock marks the POA -> POS cutover; transactions at or below it
	// keep the order the node returned them in, above it they sort ascending
	// by receipt index
	FinalPoaBlock int64 `mapstructure:"final_poa_block"`
}

// MetadataConfig holds the off-chain metadata resolver configuration
type MetadataConfig struct {
	// GatewayURLs are the content node gateways queried for CID blobs
	GatewayURLs []string `mapstructure:"gateway_urls"`
	// Phase1Timeout bounds the targeted replica-set fetch pass
	Phase1Timeout time.Duration `mapstructure:"phase1_timeout"`
	// Phase2Timeout bounds the broadcast fallback pass
	Phase2Timeout time.Duration `mapstructure:"phase2_timeout"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	PoolSize      int           `mapstructure:"pool_size"`
}

// NATSConfig holds NATS JetStream configuration for challenge events
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	Subject        string        `mapstructure:"subject"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// IndexingConfig holds the reconciliation engine tunables
type IndexingConfig struct {
	// PollInterval is the pause between reconciliation cycles
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// ProcessingWindow caps how many blocks a single cycle may advance
	ProcessingWindow int64 `mapstructure:"processing_window"`
	// RevertCeiling aborts reverts deeper than this many blocks
	RevertCeiling int `mapstructure:"revert_ceiling"`
	// ReceiptPoolSize is the concurrency for transaction receipt fetches
	ReceiptPoolSize int `mapstructure:"receipt_pool_size"`
	// LockLease is the expiry on the distributed indexing lock
	LockLease time.Duration `mapstructure:"lock_lease"`
	// LockWait bounds how long a worker blocks waiting for the lock
	LockWait time.Duration `mapstructure:"lock_wait"`
	// CursorTTL is the expiry on the redis health cursors; a cursor older
	// than this reads as a stalled indexer
	CursorTTL time.Duration `mapstructure:"cursor_ttl"`
	// StartBlockHash seeds the genesis row when the blocks table is empty
	StartBlockHash string `mapstructure:"start_block_hash"`
}

// IndexerConfig holds configuration for the discovery indexer
type IndexerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Chain      ChainConfig    `mapstructure:"chain"`
	Metadata   MetadataConfig `mapstructure:"metadata"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Indexing   IndexingConfig `mapstructure:"indexing"`
}

// LoadIndexerConfig loads configuration for the discovery indexer
func LoadIndexerConfig(configFile string, envPath string) (*IndexerConfig, error) {
	v := configureViper("indexer", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("metadata.phase1_timeout", "5s")
	v.SetDefault("metadata.phase2_timeout", "30s")
	v.SetDefault("metadata.http_timeout", "10s")
	v.SetDefault("metadata.pool_size", 20)
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "CHALLENGE_EVENTS")
	v.SetDefault("nats.subject", "challenges.events")
	v.SetDefault("indexing.poll_interval", "500ms")
	v.SetDefault("indexing.processing_window", 100)
	v.SetDefault("indexing.revert_ceiling", 100)
	v.SetDefault("indexing.receipt_pool_size", 20)
	v.SetDefault("indexing.lock_lease", "600s")
	v.SetDefault("indexing.lock_wait", "25s")
	v.SetDefault("indexing.cursor_ttl", "60s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config IndexerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if config.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if config.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}
	if config.Chain.RPCURL == "" {
		return nil, errors.New("chain.rpc_url is required")
	}
	if config.Chain.EntityManagerAddress == "" {
		return nil, errors.New("chain.entity_manager_address is required")
	}

	return &config, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("DISCOVERY_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		// Chain
		"chain.rpc_url",
		"chain.entity_manager_address",
		"chain.verifier_address",
		"chain.chain_id",
		"chain.final_poa_block",
		// Metadata
		"metadata.gateway_urls",
		"metadata.phase1_timeout",
		"metadata.phase2_timeout",
		"metadata.http_timeout",
		"metadata.pool_size",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.subject",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Indexing
		"indexing.poll_interval",
		"indexing.processing_window",
		"indexing.revert_ceiling",
		"indexing.receipt_pool_size",
		"indexing.lock_lease",
		"indexing.lock_wait",
		"indexing.cursor_ttl",
		"indexing.start_block_hash",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
