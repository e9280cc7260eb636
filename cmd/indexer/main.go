package main

import (
	"context"
	"errors"

	"tripshare/internal/indexer/handler"
	"tripshare/internal/indexer/repository"
	"tripshare/internal/indexer/service"
	"tripshare/pkg/app"
	"tripshare/pkg/config"
	"tripshare/pkg/kafka"
	kafka_config "tripshare/pkg/kafka/config"
	kafka_middleware "tripshare/pkg/kafka/middleware"
	"tripshare/pkg/metrics"
)

const ServiceName = "indexer"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.Log.Info("Starting Activity indexer")

	registry := metrics.NewRegistry()
	activityService := service.NewActivityService(repository.NewMongoActivityRepository(cfg), cfg.Log)
	consumer := initConsumer(cfg, activityService, metrics.NewKafka(registry))

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewActivityHandler(activityService, cfg.Log),
		app.WithMetrics(registry),
		app.WithWorker(app.Worker{
			Name: "booking-events-consumer",
			Run: func(ctx context.Context) {
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					cfg.Log.Error("Consumer stopped with error", "error", err)
				}
			},
		}),
	)
	serverApp.Run()
}

func initConsumer(cfg *config.Config, svc service.ActivityService, km *metrics.Kafka) *kafka.Consumer {
	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)

	consumer, err := kafka.NewConsumer(kcfg, cfg.KafkaBookingsTopic, cfg.KafkaIndexerGroup, svc.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafka_middleware.MetricsConsumerMiddleware(km))
	cfg.Client.Track("kafka-consumer", consumer)

	cfg.Log.Info("Kafka consumer initialized", "topic", cfg.KafkaBookingsTopic, "group", cfg.KafkaIndexerGroup)
	return consumer
}
