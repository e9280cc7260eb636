package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tripshare/pkg/client"
	"tripshare/pkg/logger"
)

// maxValidityWindow mirrors the ledger's longest accepted validity window.
const maxValidityWindow = 1000

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	MongoOpTimeout    time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LedgerStore         string
	RoundDuration       time.Duration
	ValidityWindow      int
	SubmitTimeout       time.Duration
	SubmitMaxAttempts   int
	SubmitBackoff       time.Duration
	ExpectedProgramHash string
	KeyringFile         string

	KafkaEnabled       bool
	KafkaBookingsTopic string
	KafkaIndexerGroup  string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoOpTimeout:    getEnvDuration(EnvMongoOpTimeout, DefaultMongoOpTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		LedgerStore:         strings.ToLower(getEnvStr(EnvLedgerStore, DefaultLedgerStore)),
		RoundDuration:       getEnvDuration(EnvRoundDuration, DefaultRoundDuration),
		ValidityWindow:      getEnvNum(EnvValidityWindow, DefaultValidityWindow),
		SubmitTimeout:       getEnvDuration(EnvSubmitTimeout, DefaultSubmitTimeout),
		SubmitMaxAttempts:   getEnvNum(EnvSubmitMaxAttempts, DefaultSubmitMaxAttempts),
		SubmitBackoff:       getEnvDuration(EnvSubmitBackoff, DefaultSubmitBackoff),
		ExpectedProgramHash: getEnvStr(EnvExpectedProgramHash, ""),
		KeyringFile:         getEnvStr(EnvKeyringFile, DefaultKeyringFile),

		KafkaEnabled:       getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaBookingsTopic: getEnvStr(EnvKafkaBookingsTopic, DefaultKafkaBookingsTopic),
		KafkaIndexerGroup:  getEnvStr(EnvKafkaIndexerGroup, DefaultKafkaIndexerGroup),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// UsesMongo reports whether this process needs a MongoDB connection for the ledger.
func (cfg *Config) UsesMongo() bool {
	return cfg.LedgerStore == LedgerStoreMongo
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positiveDurations := []struct {
		name string
		d    time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"MongoOpTimeout", cfg.MongoOpTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"RoundDuration", cfg.RoundDuration},
		{"SubmitTimeout", cfg.SubmitTimeout},
	}
	for _, p := range positiveDurations {
		if p.d <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.d))
		}
	}
	if cfg.SubmitBackoff < 0 {
		errors = append(errors, fmt.Sprintf("SubmitBackoff cannot be negative, got: %s", cfg.SubmitBackoff))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.LedgerStore != LedgerStoreMemory && cfg.LedgerStore != LedgerStoreMongo {
		errors = append(errors, fmt.Sprintf("LedgerStore must be %q or %q, got: %s", LedgerStoreMemory, LedgerStoreMongo, cfg.LedgerStore))
	}
	if cfg.ValidityWindow <= 0 || cfg.ValidityWindow > maxValidityWindow {
		errors = append(errors, fmt.Sprintf("ValidityWindow must be between 1 and %d rounds, got: %d", maxValidityWindow, cfg.ValidityWindow))
	}
	if cfg.SubmitMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("SubmitMaxAttempts must be positive, got: %d", cfg.SubmitMaxAttempts))
	}
	if h := cfg.ExpectedProgramHash; h != "" && !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(h) {
		errors = append(errors, fmt.Sprintf("ExpectedProgramHash must be 64 lowercase hex characters, got: %s", h))
	}
	if cfg.KeyringFile == "" {
		errors = append(errors, "KeyringFile cannot be empty")
	}

	if cfg.KafkaEnabled && cfg.KafkaBookingsTopic == "" {
		errors = append(errors, "KafkaBookingsTopic cannot be empty when Kafka is enabled")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"mongo_op_timeout", cfg.MongoOpTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"ledger_store", cfg.LedgerStore,
		"round_duration", cfg.RoundDuration,
		"validity_window", cfg.ValidityWindow,
		"submit_timeout", cfg.SubmitTimeout,
		"submit_max_attempts", cfg.SubmitMaxAttempts,
		"submit_backoff", cfg.SubmitBackoff,
		"expected_program_hash_set", cfg.ExpectedProgramHash != "",
		"keyring_file", cfg.KeyringFile,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_bookings_topic", cfg.KafkaBookingsTopic,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
