package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"campus-marketplace/internal/entity"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes order events keyed by order.<orderID> so that every
// event of one order lands on the same partition. The type travels in the value.
type KafkaPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, now: time.Now}
}

func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, eventType string, order *entity.Order) error {
	value, err := json.Marshal(entity.OrderEvent{
		Type:       eventType,
		Order:      order,
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entity.OrderEventKey(order.ID)),
		Value: value,
	})
}
