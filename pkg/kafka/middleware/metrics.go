package kafka_middleware

import (
	"context"
	"time"

	"tripshare/pkg/kafka"
	"tripshare/pkg/metrics"
)

func MetricsProducerMiddleware(m *metrics.Kafka) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.Published(msg.Topic, err, time.Since(start))
		return err
	}
}

func MetricsConsumerMiddleware(m *metrics.Kafka) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.Consumed(msg.Topic, err, time.Since(start))
		return err
	}
}
