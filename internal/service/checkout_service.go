package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"campus-marketplace/internal/entity"
	"campus-marketplace/internal/repository"
)

const idempotencyTTL = 24 * time.Hour

// ProductCache is the part of the catalog that checkout keeps in sync.
type ProductCache interface {
	InvalidateProducts(ctx context.Context, ids ...int64)
}

type BuyNowRequest struct {
	StudentID      int64
	ProductID      int64
	Quantity       int
	IdempotencyKey string
}

type BuySelectedRequest struct {
	StudentID      int64
	ProductIDs     []int64
	IdempotencyKey string
}

// CheckoutService turns purchase intents into orders. Every checkout commits
// its orders, stock decrements and cart changes in one transaction.
type CheckoutService struct {
	tx        TxRunner
	rdb       *redis.Client
	publisher EventPublisher
	cache     ProductCache
	now       func() time.Time
}

// NewCheckoutService creates a new instance of CheckoutService. rdb,
// publisher and cache are optional.
func NewCheckoutService(tx TxRunner, rdb *redis.Client, publisher EventPublisher, cache ProductCache) *CheckoutService {
	return &CheckoutService{
		tx:        tx,
		rdb:       rdb,
		publisher: publisher,
		cache:     cache,
		now:       time.Now,
	}
}

// BuyNow places a single-product order without touching the cart.
func (s *CheckoutService) BuyNow(ctx context.Context, req BuyNowRequest) (*entity.Order, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidQuantity)
	}

	var order *entity.Order
	err := s.withIdempotencyKey(ctx, req.StudentID, req.IdempotencyKey, func() error {
		return s.tx.RunInTx(ctx, func(st Stores) error {
			product, err := st.Products.GetProductByID(ctx, req.ProductID)
			if err != nil {
				return mapNotFound(err, "product %d", req.ProductID)
			}
			if !product.IsActive {
				return fmt.Errorf("%w: %q cannot be purchased", ErrInactive, product.Name)
			}
			if req.Quantity > product.Inventory {
				return insufficientStock(product)
			}

			order, err = placeOrder(ctx, st, req.StudentID, product, req.Quantity, s.now())
			return err
		})
	})
	if err != nil {
		logUnexpected(err, "Error placing order for product %d", req.ProductID)
		return nil, err
	}

	s.afterCommit(ctx, []*entity.Order{order})
	return order, nil
}

// BuySelected checks out the cart lines whose product is in req.ProductIDs.
// Ids that are not in the cart are ignored. Every cart line, selected or not,
// must still reference an existing active product. Unselected lines stay in
// the cart.
func (s *CheckoutService) BuySelected(ctx context.Context, req BuySelectedRequest) ([]*entity.Order, error) {
	if len(req.ProductIDs) == 0 {
		return nil, fmt.Errorf("%w: no products selected for purchase", ErrNoValidSelection)
	}
	selected := make(map[int64]bool, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		selected[id] = true
	}

	var orders []*entity.Order
	err := s.withIdempotencyKey(ctx, req.StudentID, req.IdempotencyKey, func() error {
		return s.tx.RunInTx(ctx, func(st Stores) error {
			orders = nil

			cart, err := st.Carts.GetCartForUpdate(ctx, req.StudentID)
			if errors.Is(err, repository.ErrNotFound) || (err == nil && len(cart.Lines) == 0) {
				return fmt.Errorf("%w: cart is empty or not found", ErrEmptyCart)
			}
			if err != nil {
				return err
			}

			for _, line := range cart.Lines {
				if line.Product == nil {
					return fmt.Errorf("%w: cart holds product %d which no longer exists", ErrNotFound, line.ProductID)
				}
				if !line.Product.IsActive {
					return fmt.Errorf("%w: the product %q is inactive and cannot be purchased", ErrInactive, line.Product.Name)
				}
			}

			now := s.now()
			for _, line := range cart.Lines {
				if !selected[line.ProductID] {
					continue
				}
				if line.Quantity > line.Product.Inventory {
					return insufficientStock(line.Product)
				}
				order, err := placeOrder(ctx, st, req.StudentID, line.Product, line.Quantity, now)
				if err != nil {
					return err
				}
				orders = append(orders, order)
			}

			if len(orders) == 0 {
				return fmt.Errorf("%w: none of the selected products are in the cart", ErrNoValidSelection)
			}

			cart.RemoveProducts(selected)
			_, err = st.Carts.SaveCart(ctx, cart)
			return err
		})
	})
	if err != nil {
		logUnexpected(err, "Error checking out cart of student %d", req.StudentID)
		return nil, err
	}

	s.afterCommit(ctx, orders)
	return orders, nil
}

// placeOrder writes the order and takes its quantity out of stock. The
// decrement is conditional, so a concurrent purchase that drained the stock
// after it was read fails the whole transaction instead of overselling.
func placeOrder(ctx context.Context, st Stores, studentID int64, product *entity.Product, quantity int, now time.Time) (*entity.Order, error) {
	order, err := st.Orders.CreateOrder(ctx, entity.NewOrder(studentID, product, quantity, now))
	if err != nil {
		return nil, err
	}

	if err := st.Products.DecrementInventory(ctx, product.ID, quantity); err != nil {
		if errors.Is(err, repository.ErrInsufficientInventory) {
			return nil, fmt.Errorf("%w: not enough stock for %s", ErrInsufficientStock, product.Name)
		}
		return nil, mapNotFound(err, "product %d", product.ID)
	}

	order.Product = product.Summary()
	return order, nil
}

func (s *CheckoutService) afterCommit(ctx context.Context, orders []*entity.Order) {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ProductID)
	}
	if s.cache != nil {
		s.cache.InvalidateProducts(ctx, ids...)
	}
	for _, o := range orders {
		publish(ctx, s.publisher, entity.EventOrderCreated, o)
	}
}

// withIdempotencyKey claims key before running fn so a replayed checkout is
// rejected. The key is released again when fn fails so the client may retry.
func (s *CheckoutService) withIdempotencyKey(ctx context.Context, studentID int64, key string, fn func() error) error {
	if key == "" || s.rdb == nil {
		return fn()
	}

	redisKey := fmt.Sprintf("idempotent-key:%d:%s", studentID, key)
	ok, err := s.rdb.SetNX(ctx, redisKey, "exists", idempotencyTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: idempotent key already exists", ErrConflict)
	}

	if err := fn(); err != nil {
		if delErr := s.rdb.Del(ctx, redisKey).Err(); delErr != nil {
			logger.Error().Err(delErr).Msgf("Error releasing idempotent key %s", key)
		}
		return err
	}
	return nil
}
