package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"campus-marketplace/internal/entity"
)

const orderSelect = `
	SELECT o.id, o.seller_id, o.student_id, o.product_id, o.quantity, o.price, o.total_amount, o.status,
		o.payment_id, o.payment_method, o.payment_status, o.created_at, o.updated_at,
		p.name, p.price, p.images
	FROM orders o
	LEFT JOIN products p ON p.id = o.product_id`

// OrderFilter selects orders for one student or one seller.
type OrderFilter struct {
	StudentID int64
	SellerID  int64
	Status    entity.OrderStatus
	// ByUpdated orders by last update instead of creation, newest first either way.
	ByUpdated bool
}

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db}
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	order := &entity.Order{}
	var (
		pName   sql.NullString
		pPrice  decimal.NullDecimal
		pImages []byte
	)
	err := row.Scan(&order.ID, &order.SellerID, &order.StudentID, &order.ProductID, &order.Quantity, &order.Price,
		&order.TotalAmount, &order.Status, &order.Payment.PaymentID, &order.Payment.PaymentMethod,
		&order.Payment.PaymentStatus, &order.CreatedAt, &order.UpdatedAt, &pName, &pPrice, &pImages)
	if err != nil {
		return nil, err
	}

	if !pName.Valid {
		order.Product = entity.UnavailableProduct(order.ProductID)
		return order, nil
	}
	images, err := decodeImages(pImages)
	if err != nil {
		return nil, err
	}
	order.Product = &entity.ProductSummary{ID: order.ProductID, Name: pName.String, Price: pPrice.Decimal, Images: images}
	return order, nil
}

func (r *OrderRepository) GetOrderByID(ctx context.Context, id int64) (*entity.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return order, nil
}

func (r *OrderRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]*entity.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.StudentID != 0 {
		where = append(where, "o.student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.SellerID != 0 {
		where = append(where, "o.seller_id = ?")
		args = append(args, filter.SellerID)
	}
	if filter.Status != "" {
		where = append(where, "o.status = ?")
		args = append(args, string(filter.Status))
	}

	query := orderSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if filter.ByUpdated {
		query += ` ORDER BY o.updated_at DESC, o.id DESC`
	} else {
		query += ` ORDER BY o.created_at DESC, o.id DESC`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*entity.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *entity.Order) (*entity.Order, error) {
	query := `INSERT INTO orders (seller_id, student_id, product_id, quantity, price, total_amount, status, payment_id, payment_method, payment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, order.SellerID, order.StudentID, order.ProductID, order.Quantity,
		order.Price, order.TotalAmount, string(order.Status), order.Payment.PaymentID, order.Payment.PaymentMethod,
		order.Payment.PaymentStatus, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	order.ID = id
	return order, nil
}

// UpdateOrderStatus moves a seller's order from one status to another. It
// matches no row, and returns ErrNotFound, when the order is not the seller's
// or its status changed since it was read.
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id, sellerID int64, from, to entity.OrderStatus) error {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND seller_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, string(to), time.Now().UTC(), id, sellerID, string(from))
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CancelOrder cancels a student's order in a single conditional update, so the
// status check and the write cannot interleave with a seller update.
func (r *OrderRepository) CancelOrder(ctx context.Context, id, studentID int64) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(entity.CancellableStatuses)), ", ")
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND student_id = ? AND status IN (` + placeholders + `)`
	args := []interface{}{string(entity.OrderStatusCancelled), time.Now().UTC(), id, studentID}
	for _, st := range entity.CancellableStatuses {
		args = append(args, string(st))
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}
