package migrations

import (
	"database/sql"
	"fmt"
	"time"
)

var tables = []struct {
	name  string
	query string
}{
	{"products", `
		CREATE TABLE IF NOT EXISTS products (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			seller_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			category VARCHAR(100) NOT NULL,
			price DECIMAL(12,2) NOT NULL,
			inventory INT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			images JSON NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_products_seller (seller_id),
			INDEX idx_products_active_category (is_active, category),
			CONSTRAINT chk_products_price CHECK (price >= 0),
			CONSTRAINT chk_products_inventory CHECK (inventory >= 0)
		);
	`},
	{"carts", `
		CREATE TABLE IF NOT EXISTS carts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			student_id BIGINT NOT NULL UNIQUE,
			total_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`},
	{"cart_lines", `
		CREATE TABLE IF NOT EXISTS cart_lines (
			cart_id BIGINT NOT NULL,
			position INT NOT NULL,
			product_id BIGINT NOT NULL,
			quantity INT NOT NULL,
			price DECIMAL(12,2) NOT NULL,
			PRIMARY KEY (cart_id, product_id),
			CONSTRAINT chk_cart_lines_quantity CHECK (quantity >= 1),
			FOREIGN KEY (cart_id) REFERENCES carts(id) ON DELETE CASCADE
		);
	`},
	{"orders", `
		CREATE TABLE IF NOT EXISTS orders (
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
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_orders_student (student_id, created_at),
			INDEX idx_orders_seller (seller_id, status)
		);
	`},
}

// AutoMigrate creates the marketplace tables if they do not exist, retrying
// each statement while the database is still warming up.
func AutoMigrate(db *sql.DB, retries int) error {
	for _, table := range tables {
		_, err := db.Exec(table.query)
		for i := 0; err != nil && i < retries; i++ {
			time.Sleep(1 * time.Second)
			_, err = db.Exec(table.query)
		}
		if err != nil {
			return fmt.Errorf("migrate %s table: %w", table.name, err)
		}
	}
	return nil
}
