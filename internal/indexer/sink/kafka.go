package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// produceTimeout bounds a single produce call so a dead broker cannot wedge
// the sink forever.
const produceTimeout = 10 * time.Second

// Kafka publishes indexed events to one topic. Messages are keyed by event
// kind, so records of the same kind land on the same partition in log order.
type Kafka struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafka creates a Kafka sink writing to topic on the given brokers.
func NewKafka(brokers []string, topic string, logger *zap.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		logger: logger,
	}
}

// Deliver publishes the record envelope. It is shaped to sit behind
// Monitor.OnAny and runs synchronously so partition order follows log order.
func (k *Kafka) Deliver(rec model.Record, _ model.Event) {
	value, err := json.Marshal(rec)
	if err != nil {
		k.logger.Error("kafka: marshal record", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), produceTimeout)
	defer cancel()

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Kind),
		Value: value,
	})
	if err != nil {
		k.logger.Warn("kafka: produce failed",
			zap.Uint64("position", rec.Position),
			zap.String("kind", string(rec.Kind)),
			zap.Error(err),
		)
		return
	}
	k.logger.Debug("kafka: produced",
		zap.Uint64("position", rec.Position),
		zap.String("kind", string(rec.Kind)),
	)
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
