package tradebus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tradecollector/internal/bitget/memorystore"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Config struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	BatchTimeout time.Duration
}

// Publisher emits every flushed trade as one Kafka message keyed by symbol,
// so trades of a symbol stay ordered within their partition.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewPublisher(cfg Config, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxAttempts,
		BatchTimeout:           cfg.BatchTimeout,
	}

	logger.Info("Kafka publisher created", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) Name() string { return "kafka" }

// WriteTrades publishes records in one batch.
func (p *Publisher) WriteTrades(ctx context.Context, records []memorystore.TradeRecord) error {
	msgs, err := toMessages(records)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	p.logger.Debug("Kafka messages sent", zap.Int("count", len(msgs)))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toMessages(records []memorystore.TradeRecord) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal trade: %w", err)
		}
		msg := kafka.Message{Key: []byte(r.Symbol), Value: b}
		if t, err := memorystore.ParseRecordedAt(r.RecordedAt); err == nil {
			msg.Time = t
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
