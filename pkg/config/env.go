package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoOpTimeout    = "MONGO_OP_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvLedgerStore         = "LEDGER_STORE"
	EnvRoundDuration       = "ROUND_DURATION"
	EnvValidityWindow      = "VALIDITY_WINDOW_ROUNDS"
	EnvSubmitTimeout       = "SUBMIT_TIMEOUT"
	EnvSubmitMaxAttempts   = "SUBMIT_MAX_ATTEMPTS"
	EnvSubmitBackoff       = "SUBMIT_BACKOFF"
	EnvExpectedProgramHash = "EXPECTED_PROGRAM_HASH"
	EnvKeyringFile         = "KEYRING_FILE"

	EnvKafkaEnabled       = "KAFKA_ENABLED"
	EnvKafkaBookingsTopic = "KAFKA_BOOKINGS_TOPIC"
	EnvKafkaIndexerGroup  = "KAFKA_INDEXER_GROUP"
)
