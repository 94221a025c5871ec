package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// orderStateTransitions lists the statuses a seller may move an order to.
// Delivered and Cancelled are terminal.
var orderStateTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusDelivered},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CancellableStatuses are the statuses from which a student may cancel.
var CancellableStatuses = []OrderStatus{OrderStatusPending, OrderStatusProcessing}

// ParseOrderStatus accepts only the five exact labels.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !slices.Contains(orderStatuses, st) {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// CanTransition reports whether an order in status from may move to to.
// Re-applying the current status is allowed.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	return slices.Contains(orderStateTransitions[from], to)
}

const (
	PaymentMethodCOD = "Cash on Delivery"

	PaymentStatusPending   = "Pending"
	PaymentStatusCompleted = "Completed"
	PaymentStatusFailed    = "Failed"
)

type PaymentDetails struct {
	PaymentID     string `json:"payment_id"`
	PaymentMethod string `json:"payment_method"`
	PaymentStatus string `json:"payment_status"`
}

// NewPlaceholderPayment builds the cash-on-delivery descriptor every order starts with.
func NewPlaceholderPayment(now time.Time) PaymentDetails {
	return PaymentDetails{
		PaymentID:     fmt.Sprintf("PAY-%d", now.UnixMilli()),
		PaymentMethod: PaymentMethodCOD,
		PaymentStatus: PaymentStatusPending,
	}
}

type Order struct {
	ID          int64           `json:"id"`
	SellerID    int64           `json:"seller_id"`
	StudentID   int64           `json:"student_id"`
	ProductID   int64           `json:"product_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	Payment     PaymentDetails  `json:"payment_details"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Product is resolved at read time and never stored with the order.
	Product *ProductSummary `json:"product,omitempty"`
}

// NewOrder snapshots the product price so later catalog edits never alter the order.
func NewOrder(studentID int64, p *Product, quantity int, now time.Time) *Order {
	return &Order{
		SellerID:    p.SellerID,
		StudentID:   studentID,
		ProductID:   p.ID,
		Quantity:    quantity,
		Price:       p.Price,
		TotalAmount: p.Price.Mul(decimal.NewFromInt(int64(quantity))),
		Status:      OrderStatusPending,
		Payment:     NewPlaceholderPayment(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

/*
Mysql Table

CREATE TABLE orders (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	seller_id BIGINT NOT NULL,
	student_id BIGINT NOT NULL,
	product_id BIGINT NOT NULL,
	quantity INT NOT NULL,
	price DECIMAL(12,2) NOT NULL,
	total_amount DECIMAL(12,2) NOT NULL,
	status VARCHAR(20) NOT NULL,
	payment_id VARCHAR(64) NOT NULL,
	payment_method VARCHAR(50) NOT NULL,
	payment_status VARCHAR(20) NOT NULL,
	created_at TIMESTAMP, updated_at TIMESTAMP
);
*/
