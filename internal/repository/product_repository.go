package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"campus-marketplace/internal/entity"
)

const productColumns = `id, seller_id, name, description, category, price, inventory, is_active, images, created_at, updated_at`

var productSortColumns = map[string]string{
	"price":      "price",
	"name":       "name",
	"created_at": "created_at",
	"createdAt":  "created_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*entity.Product, error) {
	product := &entity.Product{}
	var images []byte
	err := row.Scan(&product.ID, &product.SellerID, &product.Name, &product.Description, &product.Category,
		&product.Price, &product.Inventory, &product.IsActive, &images, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if product.Images, err = decodeImages(images); err != nil {
		return nil, err
	}
	return product, nil
}

func decodeImages(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{entity.DefaultProductImage}, nil
	}
	var images []string
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, fmt.Errorf("decode product images: %w", err)
	}
	return images, nil
}

func encodeImages(images []string) (string, error) {
	if len(images) == 0 {
		images = []string{entity.DefaultProductImage}
	}
	raw, err := json.Marshal(images)
	return string(raw), err
}

func (r *ProductRepository) GetProductByID(ctx context.Context, id int64) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return product, nil
}

// ListProducts returns one page of active products plus the total match count.
func (r *ProductRepository) ListProducts(ctx context.Context, filter entity.ProductFilter) ([]*entity.Product, int, error) {
	where := []string{"is_active = TRUE"}
	var args []interface{}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		where = append(where, "(name LIKE ? OR description LIKE ?)")
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM products WHERE ` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortColumn, ok := productSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`,
		productColumns, whereClause, sortColumn, direction, direction)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := []*entity.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}
	return products, total, rows.Err()
}

func (r *ProductRepository) ListSellerProducts(ctx context.Context, sellerID int64) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE seller_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*entity.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (r *ProductRepository) CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	images, err := encodeImages(product.Images)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `INSERT INTO products (seller_id, name, description, category, price, inventory, is_active, images, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, product.SellerID, product.Name, product.Description, product.Category,
		product.Price, product.Inventory, product.IsActive, images, now, now)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	product.ID = id
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

// UpdateProduct rewrites the editable fields of a product owned by product.SellerID.
func (r *ProductRepository) UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	images, err := encodeImages(product.Images)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	query := `UPDATE products SET name = ?, description = ?, category = ?, price = ?, inventory = ?, images = ?, updated_at = ? WHERE id = ? AND seller_id = ?`
	res, err := r.db.ExecContext(ctx, query, product.Name, product.Description, product.Category, product.Price,
		product.Inventory, images, now, product.ID, product.SellerID)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}

	product.UpdatedAt = now
	return product, nil
}

func (r *ProductRepository) SetProductActive(ctx context.Context, sellerID, productID int64, active bool) error {
	query := `UPDATE products SET is_active = ?, updated_at = ? WHERE id = ? AND seller_id = ?`
	res, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), productID, sellerID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DecrementInventory takes quantity units out of stock only if enough remain,
// so concurrent buyers can never drive inventory below zero.
func (r *ProductRepository) DecrementInventory(ctx context.Context, productID int64, quantity int) error {
	query := `UPDATE products SET inventory = inventory - ?, updated_at = ? WHERE id = ? AND inventory >= ?`
	res, err := r.db.ExecContext(ctx, query, quantity, time.Now().UTC(), productID, quantity)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientInventory
	}
	return nil
}

func (r *ProductRepository) IncrementInventory(ctx context.Context, productID int64, quantity int) error {
	query := `UPDATE products SET inventory = inventory + ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, quantity, time.Now().UTC(), productID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
