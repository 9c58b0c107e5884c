package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=2444"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=12h"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	StaticDir string `env:"STATIC_DIR"`

	MaxImageBytes int64         `env:"MAX_IMAGE_BYTES, default=5242880"`
	ProofSecret   string        `env:"PROOF_SECRET"`
	ProofTTL      time.Duration `env:"PROOF_TTL,       default=0s"`

	Blob      BlobConfig
	Ledger    LedgerConfig
	Mongo     MongoConfig
	SQL       SQLConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Chain     ChainConfig
	Session   SessionConfig
}

type BlobConfig struct {
	// Backend is one of badger, fs, s3, gcs, ipfs.
	Backend    string `env:"BLOB_BACKEND,     default=badger"`
	BadgerDir  string `env:"BLOB_BADGER_DIR,  default=./data/blobs"`
	ChunkSize  int64  `env:"BLOB_CHUNK_SIZE,  default=262144"`
	FSDir      string `env:"BLOB_FS_DIR,      default=./data/blobs"`
	S3Bucket   string `env:"BLOB_S3_BUCKET"`
	S3Region   string `env:"BLOB_S3_REGION,   default=us-east-1"`
	S3Endpoint string `env:"BLOB_S3_ENDPOINT"`
	S3Prefix   string `env:"BLOB_S3_PREFIX,   default=certificates/"`
	GCSBucket  string `env:"BLOB_GCS_BUCKET"`
	GCSPrefix  string `env:"BLOB_GCS_PREFIX,  default=certificates/"`
	IPFSAPI    string `env:"BLOB_IPFS_API,    default=http://localhost:5001"`
}

type LedgerConfig struct {
	// Backend is one of mongo, sqlite, postgres.
	Backend string `env:"LEDGER_BACKEND, default=sqlite"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI,      default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,       default=certificate_system"`
	AppName  string `env:"MONGO_APP_NAME, default=certsvc"`
}

type SQLConfig struct {
	DSN string `env:"SQL_DSN, default=file:certificates.db?_pragma=busy_timeout(5000)"`
}

type RedisConfig struct {
	// Addr empty disables Redis; the rate limiter then runs in-process.
	Addr     string `env:"REDIS_ADDR"`
	Username string `env:"REDIS_USERNAME"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,  default=0"`
	TLS      bool   `env:"REDIS_TLS, default=false"`
}

type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS,   default=2"`
	Burst int     `env:"RATE_LIMIT_BURST, default=10"`
}

// ChainConfig describes the deployment network and the credential provider
// endpoint used by the wallet-side CLI.
type ChainConfig struct {
	ProviderURL    string `env:"CHAIN_PROVIDER_URL, default=ws://127.0.0.1:8545"`
	ChainID        string `env:"CHAIN_ID,           default=0x7a69"`
	ChainName      string `env:"CHAIN_NAME,         default=Hardhat Local"`
	RPCURL         string `env:"CHAIN_RPC_URL,      default=http://127.0.0.1:8545"`
	CurrencyName   string `env:"CHAIN_CURRENCY_NAME,     default=Ether"`
	CurrencySymbol string `env:"CHAIN_CURRENCY_SYMBOL,   default=ETH"`
	CurrencyDec    int    `env:"CHAIN_CURRENCY_DECIMALS, default=18"`
}

type SessionConfig struct {
	File string `env:"SESSION_FILE, default=.certctl/session.yaml"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadContext(context.Background())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadContext is Load without the panic, reading through envconfig's default
// lookuper.
func LoadContext(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom reads configuration from an explicit lookuper, for tests.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	return &cfg, nil
}
