package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"campus-marketplace/internal/entity"
)

type CartRepository struct {
	db DBTX
}

func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db}
}

// GetCartByStudentID loads the student's cart with every line joined to the
// live product row. Lines whose product no longer exists carry a nil Product.
func (r *CartRepository) GetCartByStudentID(ctx context.Context, studentID int64) (*entity.Cart, error) {
	return r.getCart(ctx, studentID, false)
}

// GetCartForUpdate is GetCartByStudentID with the cart row and its lines locked
// until the surrounding transaction ends. Concurrent writers of the same cart
// queue behind it instead of rewriting the cart from a stale read.
func (r *CartRepository) GetCartForUpdate(ctx context.Context, studentID int64) (*entity.Cart, error) {
	return r.getCart(ctx, studentID, true)
}

func (r *CartRepository) getCart(ctx context.Context, studentID int64, lock bool) (*entity.Cart, error) {
	cartQuery := `SELECT id, student_id, total_amount, updated_at FROM carts WHERE student_id = ?`
	lineQuery := `
		SELECT l.product_id, l.quantity, l.price,
			p.id, p.seller_id, p.name, p.description, p.category, p.price, p.inventory, p.is_active, p.images, p.created_at, p.updated_at
		FROM cart_lines l
		LEFT JOIN products p ON p.id = l.product_id
		WHERE l.cart_id = ?
		ORDER BY l.position`
	if lock {
		// locking reads see the latest committed lines, not the transaction snapshot
		cartQuery += ` FOR UPDATE`
		lineQuery += `
		FOR UPDATE OF l`
	}

	cart := &entity.Cart{Lines: []entity.CartLine{}}
	err := r.db.QueryRowContext(ctx, cartQuery, studentID).Scan(&cart.ID, &cart.StudentID, &cart.TotalAmount, &cart.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.db.QueryContext(ctx, lineQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line                           entity.CartLine
			pID, pSellerID                 sql.NullInt64
			pName, pDescription, pCategory sql.NullString
			pPrice                         decimal.NullDecimal
			pInventory                     sql.NullInt64
			pActive                        sql.NullBool
			pImages                        []byte
			pCreatedAt, pUpdatedAt         sql.NullTime
		)
		err := rows.Scan(&line.ProductID, &line.Quantity, &line.Price,
			&pID, &pSellerID, &pName, &pDescription, &pCategory, &pPrice, &pInventory, &pActive, &pImages, &pCreatedAt, &pUpdatedAt)
		if err != nil {
			return nil, err
		}
		if pID.Valid {
			images, err := decodeImages(pImages)
			if err != nil {
				return nil, err
			}
			line.Product = &entity.Product{
				ID:          pID.Int64,
				SellerID:    pSellerID.Int64,
				Name:        pName.String,
				Description: pDescription.String,
				Category:    pCategory.String,
				Price:       pPrice.Decimal,
				Inventory:   int(pInventory.Int64),
				IsActive:    pActive.Bool,
				Images:      images,
				CreatedAt:   pCreatedAt.Time,
				UpdatedAt:   pUpdatedAt.Time,
			}
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

// SaveCart upserts the cart row and replaces its lines. Run it inside a
// transaction so readers never observe a half-written cart.
func (r *CartRepository) SaveCart(ctx context.Context, cart *entity.Cart) (*entity.Cart, error) {
	now := time.Now().UTC()

	if cart.ID == 0 {
		upsertQuery := `INSERT INTO carts (student_id, total_amount, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), total_amount = VALUES(total_amount), updated_at = VALUES(updated_at)`
		res, err := r.db.ExecContext(ctx, upsertQuery, cart.StudentID, cart.TotalAmount, now)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		cart.ID = id
	} else {
		updateQuery := `UPDATE carts SET total_amount = ?, updated_at = ? WHERE id = ?`
		if _, err := r.db.ExecContext(ctx, updateQuery, cart.TotalAmount, now, cart.ID); err != nil {
			return nil, err
		}
	}

	deleteQuery := `DELETE FROM cart_lines WHERE cart_id = ?`
	if _, err := r.db.ExecContext(ctx, deleteQuery, cart.ID); err != nil {
		return nil, err
	}

	if len(cart.Lines) > 0 {
		// Insert lines with batch
		var sb strings.Builder
		sb.WriteString(`INSERT INTO cart_lines (cart_id, position, product_id, quantity, price) VALUES `)
		values := make([]interface{}, 0, len(cart.Lines)*5)
		for i, line := range cart.Lines {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, ?, ?, ?)")
			values = append(values, cart.ID, i, line.ProductID, line.Quantity, line.Price)
		}
		if _, err := r.db.ExecContext(ctx, sb.String(), values...); err != nil {
			return nil, err
		}
	}

	cart.UpdatedAt = now
	return cart, nil
}
