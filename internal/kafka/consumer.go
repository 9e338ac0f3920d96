package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
}

// NotificationHandler decodes NotificationEvents and hands them to deliver.
// Undecodable messages are logged and skipped so one bad payload cannot
// wedge the consumer group.
func NotificationHandler(logger *zap.Logger, deliver func(context.Context, NotificationEvent) error) func(context.Context, kafka.Message) error {
	return func(ctx context.Context, msg kafka.Message) error {
		var event NotificationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Warn("skipping undecodable notification", zap.ByteString("key", msg.Key), zap.Error(err))
			return nil
		}
		return deliver(ctx, event)
	}
}
