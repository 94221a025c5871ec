package service

import (
	"context"
	"database/sql"

	"campus-marketplace/internal/entity"
	"campus-marketplace/internal/repository"
)

type ProductStore interface {
	GetProductByID(ctx context.Context, id int64) (*entity.Product, error)
	ListProducts(ctx context.Context, filter entity.ProductFilter) ([]*entity.Product, int, error)
	ListSellerProducts(ctx context.Context, sellerID int64) ([]*entity.Product, error)
	CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error)
	UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error)
	SetProductActive(ctx context.Context, sellerID, productID int64, active bool) error
	DecrementInventory(ctx context.Context, productID int64, quantity int) error
	IncrementInventory(ctx context.Context, productID int64, quantity int) error
}

type CartStore interface {
	GetCartByStudentID(ctx context.Context, studentID int64) (*entity.Cart, error)
	// GetCartForUpdate must be called inside RunInTx before the cart is rewritten.
	GetCartForUpdate(ctx context.Context, studentID int64) (*entity.Cart, error)
	SaveCart(ctx context.Context, cart *entity.Cart) (*entity.Cart, error)
}

type OrderStore interface {
	GetOrderByID(ctx context.Context, id int64) (*entity.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error)
	CreateOrder(ctx context.Context, order *entity.Order) (*entity.Order, error)
	UpdateOrderStatus(ctx context.Context, id, sellerID int64, from, to entity.OrderStatus) error
	CancelOrder(ctx context.Context, id, studentID int64) error
}

// Stores groups the repositories bound to one connection or transaction.
type Stores struct {
	Products ProductStore
	Carts    CartStore
	Orders   OrderStore
}

// TxRunner executes fn against stores bound to a single transaction. An error
// returned by fn rolls back every write made through those stores.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(Stores) error) error
}

func newSQLStores(db repository.DBTX) Stores {
	return Stores{
		Products: repository.NewProductRepository(db),
		Carts:    repository.NewCartRepository(db),
		Orders:   repository.NewOrderRepository(db),
	}
}

// NewSQLStores binds the MySQL repositories to db outside any transaction.
func NewSQLStores(db *sql.DB) Stores {
	return newSQLStores(db)
}

type sqlTxRunner struct {
	db *sql.DB
}

func NewSQLTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) RunInTx(ctx context.Context, fn func(Stores) error) error {
	return repository.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(newSQLStores(tx))
	})
}
