package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "tripshare"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoOpTimeout    = 5 * time.Second

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultLedgerStore       = LedgerStoreMemory
	DefaultRoundDuration     = 4 * time.Second
	DefaultValidityWindow    = 100
	DefaultSubmitTimeout     = 10 * time.Second
	DefaultSubmitMaxAttempts = 3
	DefaultSubmitBackoff     = 500 * time.Millisecond
	DefaultKeyringFile       = "keyring.yaml"

	DefaultKafkaEnabled       = false
	DefaultKafkaBookingsTopic = "tripshare.bookings"
	DefaultKafkaIndexerGroup  = "tripshare-indexer"
)

const (
	LedgerStoreMemory = "memory"
	LedgerStoreMongo  = "mongo"
)
