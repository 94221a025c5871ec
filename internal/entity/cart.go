package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID          int64           `json:"id"`
	StudentID   int64           `json:"student_id"`
	Lines       []CartLine      `json:"products"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CartLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // captured when the line was added
	Product   *Product        `json:"product,omitempty"`
}

// NewCart returns the empty cart of a student that has never added anything.
func NewCart(studentID int64) *Cart {
	return &Cart{StudentID: studentID, Lines: []CartLine{}, TotalAmount: decimal.Zero}
}

// Line returns the index of the line holding productID, or -1.
func (c *Cart) Line(productID int64) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Recalculate derives TotalAmount from the lines. Call it after every mutation.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	c.TotalAmount = total
}

// RemoveProducts drops every line whose product is in ids and returns how many were dropped.
func (c *Cart) RemoveProducts(ids map[int64]bool) int {
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if !ids[l.ProductID] {
			kept = append(kept, l)
		}
	}
	removed := len(c.Lines) - len(kept)
	c.Lines = kept
	c.Recalculate()
	return removed
}

/*
CREATE TABLE carts (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	student_id BIGINT NOT NULL UNIQUE,
	total_amount DECIMAL(12,2) NOT NULL
);

CREATE TABLE cart_lines (
	cart_id BIGINT NOT NULL REFERENCES carts(id),
	position INT NOT NULL,
	product_id BIGINT NOT NULL,
	quantity INT NOT NULL,
	price DECIMAL(12,2) NOT NULL,
	UNIQUE (cart_id, product_id)
);
*/
