package main

import (
	"context"

	"tripshare/internal/bookings/events"
	"tripshare/internal/bookings/handler"
	"tripshare/internal/bookings/service"
	"tripshare/internal/bookings/validator"
	"tripshare/internal/contract"
	"tripshare/internal/escrow"
	"tripshare/internal/keys"
	"tripshare/internal/ledger"
	"tripshare/internal/ledger/mongostore"
	"tripshare/pkg/app"
	"tripshare/pkg/config"
	"tripshare/pkg/kafka"
	kafka_config "tripshare/pkg/kafka/config"
	kafka_middleware "tripshare/pkg/kafka/middleware"
	"tripshare/pkg/metrics"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Bookings service")

	registry := metrics.NewRegistry()
	keyring, err := keys.LoadKeyring(cfg.KeyringFile)
	if err != nil {
		cfg.Log.Fatal("Failed to load keyring", "file", cfg.KeyringFile, "error", err)
	}
	chain, err := initLedger(cfg, keyring, metrics.NewLedger(registry))
	if err != nil {
		cfg.Log.Fatal("Failed to initialize ledger", "error", err)
	}

	bookingService := initServices(cfg, chain, keyring, metrics.NewOrchestrator(registry), metrics.NewKafka(registry))

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewBookingHandler(bookingService, cfg.Log),
		app.WithMetrics(registry),
		app.WithReadinessCheck(app.ReadinessCheck{
			Name: "ledger",
			Check: func(ctx context.Context) error {
				_, err := chain.Round(ctx)
				return err
			},
		}),
		app.WithWorker(app.Worker{
			Name: "ledger-clock",
			Run:  func(ctx context.Context) { chain.RunClock(ctx, cfg.RoundDuration) },
		}),
	)
	serverApp.Run()
}

func initLedger(cfg *config.Config, keyring *keys.Keyring, m *metrics.Ledger) (*ledger.Ledger, error) {
	var store ledger.Store = ledger.NewMemoryStore()
	if cfg.UsesMongo() {
		cfg.SetMongo()
		store = mongostore.New(cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.MongoOpTimeout, cfg.Log)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoConnTimeout)
	defer cancel()

	chain, err := ledger.New(ctx, store, cfg.Log,
		ledger.WithProgramLoader(escrow.Load),
		ledger.WithApprovalProgram(contract.NewProgram()),
		ledger.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	if err := chain.Genesis(ctx, keyring.Genesis()); err != nil {
		return nil, err
	}

	cfg.Log.Info("Ledger ready", "store", cfg.LedgerStore, "accounts", keyring.Names())
	return chain, nil
}

func initServices(cfg *config.Config, chain *ledger.Ledger, keyring *keys.Keyring, m *metrics.Orchestrator, km *metrics.Kafka) service.BookingService {
	settings, err := service.SettingsFromConfig(cfg)
	if err != nil {
		cfg.Log.Fatal("Invalid booking settings", "error", err)
	}

	bookingService := service.NewBookingService(
		chain,
		keyring,
		validator.NewBookingValidator(cfg.Log),
		initPublisher(cfg, km),
		settings,
		cfg.Log,
		service.WithMetrics(m),
	)

	cfg.Log.Info("Booking service initialized", "program_hash", settings.ExpectedProgram.String())
	return bookingService
}

func initPublisher(cfg *config.Config, km *metrics.Kafka) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events will not be published")
		return events.NopPublisher{}
	}

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kcfg, cfg.KafkaBookingsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.MetricsProducerMiddleware(km))
	cfg.Client.Track("kafka-producer", producer)

	return events.NewKafkaPublisher(producer)
}
