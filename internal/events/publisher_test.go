package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-marketplace/internal/entity"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestPublishOrderEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	order := &entity.Order{
		ID:          42,
		SellerID:    3,
		StudentID:   9,
		ProductID:   7,
		Quantity:    2,
		Price:       decimal.RequireFromString("12.50"),
		TotalAmount: decimal.RequireFromString("25"),
		Status:      entity.OrderStatusCancelled,
	}
	require.NoError(t, p.PublishOrderEvent(context.Background(), entity.EventOrderCancelled, order))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order.42", string(w.msgs[0].Key))

	var event entity.OrderEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, entity.EventOrderCancelled, event.Type)
	assert.True(t, event.OccurredAt.Equal(at))
	assert.Equal(t, int64(7), event.Order.ProductID)
	assert.Equal(t, 2, event.Order.Quantity)
	assert.True(t, event.Order.TotalAmount.Equal(decimal.NewFromInt(25)))
}

func TestPublishOrderEventWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewKafkaPublisher(w)

	err := p.PublishOrderEvent(context.Background(), entity.EventOrderCreated, &entity.Order{ID: 1})
	assert.EqualError(t, err, "leader not available")
}
