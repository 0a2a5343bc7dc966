// internal/ingest/dlq.go
package ingest

import (
	"context"
	"time"

	"notification-dispatch/internal/common/logger"

	"github.com/segmentio/kafka-go"
)

// DeadLetter publishes events that exhausted their consumer-level retries.
type DeadLetter struct {
	writer *kafka.Writer
	log    logger.Logger
}

func NewDeadLetter(brokers []string, topic string, log logger.Logger) *DeadLetter {
	return &DeadLetter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
		log: log.WithFields(map[string]interface{}{"component": "dead-letter"}),
	}
}

// Publish writes the raw event to the DLQ topic with the failure reason as a
// header. Best-effort: a DLQ outage must not wedge the consumer.
func (d *DeadLetter) Publish(ctx context.Context, key, value []byte, reason string) {
	err := d.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: "dead-letter-reason", Value: []byte(reason)},
		},
	})
	if err != nil {
		d.log.Error("dead-letter publish failed", map[string]interface{}{
			"reason": reason, "error": err.Error(),
		})
	}
}

func (d *DeadLetter) Close() error {
	return d.writer.Close()
}
