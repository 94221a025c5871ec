package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"campus-marketplace/internal/entity"
)

// Catalog is what the consumer needs from the product catalog.
type Catalog interface {
	InvalidateProducts(ctx context.Context, ids ...int64)
	RestockProduct(ctx context.Context, productID int64, quantity int) error
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer keeps the product cache in line with order events published by
// other instances and optionally returns stock of cancelled orders.
type Consumer struct {
	reader          MessageReader
	catalog         Catalog
	restockOnCancel bool
}

func NewConsumer(reader MessageReader, catalog Catalog, restockOnCancel bool) *Consumer {
	return &Consumer{reader: reader, catalog: catalog, restockOnCancel: restockOnCancel}
}

// Run reads order events until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Msgf("Error reading message: %v", err)
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// processMessage handles one order event. Malformed messages are logged and skipped.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	orderID, err := entity.ParseOrderEventKey(string(msg.Key))
	if err != nil {
		log.Error().Msgf("Error parsing message key: %v", err)
		return
	}

	var event entity.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Error().Msgf("Error unmarshalling message: %v", err)
		return
	}
	if event.Order == nil || event.Order.ID != orderID {
		log.Error().Msgf("Order event %s does not carry order %d", msg.Key, orderID)
		return
	}
	order := event.Order

	switch event.Type {
	case entity.EventOrderCreated, entity.EventOrderStatusChanged:
		c.catalog.InvalidateProducts(ctx, order.ProductID)
	case entity.EventOrderCancelled:
		if c.restockOnCancel {
			if err := c.catalog.RestockProduct(ctx, order.ProductID, order.Quantity); err != nil {
				log.Error().Msgf("Error restocking product %d for order %d: %v", order.ProductID, orderID, err)
			}
			return
		}
		c.catalog.InvalidateProducts(ctx, order.ProductID)
	default:
		log.Warn().Msgf("Unknown order event type: %s", event.Type)
	}
}
