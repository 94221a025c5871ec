package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultProductImage is used when a seller does not upload any image and
// when an order refers to a product that can no longer be resolved.
const DefaultProductImage = "/images/default_product.png"

func init() {
	// prices travel as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID          int64           `json:"id"`
	SellerID    int64           `json:"seller_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Inventory   int             `json:"inventory"`
	IsActive    bool            `json:"is_active"`
	Images      []string        `json:"images"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductSummary is the display projection attached to cart lines and orders.
type ProductSummary struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Images []string        `json:"images"`
}

// Summary returns the display projection of p.
func (p *Product) Summary() *ProductSummary {
	return &ProductSummary{ID: p.ID, Name: p.Name, Price: p.Price, Images: p.Images}
}

// UnavailableProduct is shown in place of a product row that no longer exists.
func UnavailableProduct(id int64) *ProductSummary {
	return &ProductSummary{
		ID:     id,
		Name:   "Product unavailable",
		Price:  decimal.Zero,
		Images: []string{DefaultProductImage},
	}
}

// ProductFilter narrows the public catalog listing.
type ProductFilter struct {
	Category string
	Search   string
	SortBy   string // price, name or created_at
	Desc     bool
	Page     int
	Limit    int
}

type ProductPage struct {
	Products []*Product `json:"products"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	Pages    int        `json:"pages"`
}

/*
Schema MySQL for products table:
CREATE TABLE products (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	seller_id BIGINT NOT NULL,
	name VARCHAR(255) NOT NULL,
	description TEXT NOT NULL,
	category VARCHAR(100) NOT NULL,
	price DECIMAL(12,2) NOT NULL,
	inventory INT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	images JSON NOT NULL,
	created_at TIMESTAMP, updated_at TIMESTAMP,
	CHECK (price >= 0), CHECK (inventory >= 0)
);
*/
