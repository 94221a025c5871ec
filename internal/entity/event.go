package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Order event types, carried in OrderEvent.Type.
const (
	EventOrderCreated       = "created"
	EventOrderStatusChanged = "status"
	EventOrderCancelled     = "cancelled"
)

type OrderEvent struct {
	Type       string    `json:"type"`
	Order      *Order    `json:"order"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderEventKey is the message key of every event of one order. It holds no
// event type so that all of them hash to the same partition and stay ordered.
func OrderEventKey(orderID int64) string {
	return fmt.Sprintf("order.%d", orderID)
}

// ParseOrderEventKey returns the order id of a key built by OrderEventKey.
func ParseOrderEventKey(key string) (int64, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 || parts[0] != "order" {
		return 0, fmt.Errorf("malformed order event key %q", key)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed order id in key %q: %w", key, err)
	}
	return id, nil
}
