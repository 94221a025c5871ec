package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-marketplace/internal/entity"
)

type checkoutFixture struct {
	store     *memStore
	publisher *recordingPublisher
	svc       *CheckoutService
}

func newCheckoutFixture(t *testing.T, rdb *redis.Client) *checkoutFixture {
	t.Helper()
	m := newMemStore()
	m.addProduct(entity.Product{ID: 1, SellerID: 3, Name: "P", Price: price(10), Inventory: 5, IsActive: true})
	m.addProduct(entity.Product{ID: 2, SellerID: 4, Name: "B", Price: price(4), Inventory: 10, IsActive: true})
	m.addProduct(entity.Product{ID: 3, SellerID: 4, Name: "Retired", Price: price(7), Inventory: 10, IsActive: false})

	pub := &recordingPublisher{}
	svc := NewCheckoutService(m, rdb, pub, nil)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return &checkoutFixture{store: m, publisher: pub, svc: svc}
}

func TestBuyNowScenario(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	order, err := f.svc.BuyNow(ctx, BuyNowRequest{StudentID: student, ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	assert.True(t, order.TotalAmount.Equal(price(30)))
	assert.True(t, order.Price.Equal(price(10)))
	assert.Equal(t, int64(3), order.SellerID)
	assert.Equal(t, entity.OrderStatusPending, order.Status)
	assert.Equal(t, entity.PaymentDetails{
		PaymentID:     "PAY-1700000000000",
		PaymentMethod: "Cash on Delivery",
		PaymentStatus: "Pending",
	}, order.Payment)
	assert.Equal(t, 2, f.store.product(1).Inventory)

	_, err = f.svc.BuyNow(ctx, BuyNowRequest{StudentID: student, ProductID: 1, Quantity: 3})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, f.store.product(1).Inventory)
	assert.Equal(t, 1, f.store.orderCount())

	assert.Equal(t, []string{fmt.Sprintf("order.created.%d", order.ID)}, f.publisher.events)
}

func TestBuyNowFailuresMutateNothing(t *testing.T) {
	cases := []struct {
		name string
		req  BuyNowRequest
		want error
	}{
		{"missing product", BuyNowRequest{StudentID: student, ProductID: 42, Quantity: 1}, ErrNotFound},
		{"inactive product", BuyNowRequest{StudentID: student, ProductID: 3, Quantity: 1}, ErrInactive},
		{"over inventory", BuyNowRequest{StudentID: student, ProductID: 1, Quantity: 6}, ErrInsufficientStock},
		{"zero quantity", BuyNowRequest{StudentID: student, ProductID: 1, Quantity: 0}, ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCheckoutFixture(t, nil)
			_, err := f.svc.BuyNow(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 5, f.store.product(1).Inventory)
			assert.Zero(t, f.store.orderCount())
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestBuyNowRollsBackOrderWhenStockWasTakenConcurrently(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	// another buyer drains the stock between the read and the decrement
	racing := &racingStore{memStore: f.store, drain: 1}
	f.svc.tx = racing

	_, err := f.svc.BuyNow(ctx, BuyNowRequest{StudentID: student, ProductID: 1, Quantity: 3})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Zero(t, f.store.orderCount(), "order must be rolled back with the failed decrement")
	assert.Empty(t, f.publisher.events)
}

// racingStore empties a product's stock right after it is read inside a transaction.
type racingStore struct {
	*memStore
	drain int64
}

func (r *racingStore) RunInTx(ctx context.Context, fn func(Stores) error) error {
	return r.memStore.RunInTx(ctx, func(st Stores) error {
		st.Products = &drainingProducts{ProductStore: st.Products, store: r.memStore, drain: r.drain}
		return fn(st)
	})
}

type drainingProducts struct {
	ProductStore
	store *memStore
	drain int64
}

func (d *drainingProducts) GetProductByID(ctx context.Context, id int64) (*entity.Product, error) {
	p, err := d.ProductStore.GetProductByID(ctx, id)
	if err == nil && id == d.drain {
		d.store.mu.Lock()
		d.store.products[id].Inventory = 0
		d.store.mu.Unlock()
	}
	return p, err
}

func TestConcurrentBuyNowNeverOversells(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(studentID int64) {
			defer wg.Done()
			if _, err := f.svc.BuyNow(ctx, BuyNowRequest{StudentID: studentID, ProductID: 1, Quantity: 2}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInsufficientStock)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, f.store.product(1).Inventory)
	assert.GreaterOrEqual(t, f.store.product(1).Inventory, 0)
}

func TestBuySelectedIgnoresIdsOutsideCart(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.store.putCart(student,
		entity.CartLine{ProductID: 1, Quantity: 2, Price: price(10)},
		entity.CartLine{ProductID: 2, Quantity: 1, Price: price(4)},
	)

	orders, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{1, 999}})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].ProductID)
	assert.Equal(t, 2, orders[0].Quantity)
	assert.True(t, orders[0].TotalAmount.Equal(price(20)))
	assert.Equal(t, 3, f.store.product(1).Inventory)
	assert.Equal(t, 10, f.store.product(2).Inventory)
	assert.Equal(t, 1, f.store.lockedCarts, "checkout reads the cart with a row lock")

	cart := f.store.carts[student]
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(2), cart.Lines[0].ProductID)
	assert.True(t, cart.TotalAmount.Equal(price(4)))
}

func TestBuySelectedUsesLivePrice(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.store.putCart(student, entity.CartLine{ProductID: 1, Quantity: 1, Price: price(8)})

	orders, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{1}})
	require.NoError(t, err)
	assert.True(t, orders[0].Price.Equal(price(10)))
}

func TestBuySelectedMultipleLines(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.store.putCart(student,
		entity.CartLine{ProductID: 1, Quantity: 2, Price: price(10)},
		entity.CartLine{ProductID: 2, Quantity: 3, Price: price(4)},
	)

	orders, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{2, 1}})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(3), orders[0].SellerID)
	assert.Equal(t, int64(4), orders[1].SellerID)
	assert.Empty(t, f.store.carts[student].Lines)
	assert.True(t, f.store.carts[student].TotalAmount.IsZero())
	assert.Len(t, f.publisher.events, 2)
}

func TestBuySelectedIsAllOrNothing(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.store.putCart(student,
		entity.CartLine{ProductID: 1, Quantity: 2, Price: price(10)},
		entity.CartLine{ProductID: 2, Quantity: 11, Price: price(4)},
	)

	_, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{1, 2}})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "B")
	assert.Contains(t, err.Error(), "available: 10")

	assert.Equal(t, 5, f.store.product(1).Inventory, "earlier line must be rolled back")
	assert.Zero(t, f.store.orderCount())
	assert.Len(t, f.store.carts[student].Lines, 2)
	assert.Empty(t, f.publisher.events)
}

func TestBuySelectedRollsBackOnStorageFailure(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.store.putCart(student,
		entity.CartLine{ProductID: 1, Quantity: 1, Price: price(10)},
		entity.CartLine{ProductID: 2, Quantity: 1, Price: price(4)},
	)
	boom := errors.New("connection reset")
	f.store.createOrderErr[2] = boom

	_, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{1, 2}})
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsDomainError(err))
	assert.Equal(t, 5, f.store.product(1).Inventory)
	assert.Zero(t, f.store.orderCount())
}

func TestBuySelectedPreconditions(t *testing.T) {
	t.Run("no selection", func(t *testing.T) {
		f := newCheckoutFixture(t, nil)
		_, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student})
		assert.ErrorIs(t, err, ErrNoValidSelection)
	})

	t.Run("no cart", func(t *testing.T) {
		f := newCheckoutFixture(t, nil)
		_, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{1}})
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newCheckoutFixture(t, nil)
		f.store.putCart(student)
		_, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{1}})
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("selection matches nothing", func(t *testing.T) {
		f := newCheckoutFixture(t, nil)
		f.store.putCart(student, entity.CartLine{ProductID: 1, Quantity: 1, Price: price(10)})
		_, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{2, 77}})
		assert.ErrorIs(t, err, ErrNoValidSelection)
		assert.Len(t, f.store.carts[student].Lines, 1)
	})

	t.Run("unselected inactive line blocks checkout", func(t *testing.T) {
		f := newCheckoutFixture(t, nil)
		f.store.putCart(student,
			entity.CartLine{ProductID: 1, Quantity: 1, Price: price(10)},
			entity.CartLine{ProductID: 3, Quantity: 1, Price: price(7)},
		)
		_, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{1}})
		assert.ErrorIs(t, err, ErrInactive)
		assert.Contains(t, err.Error(), "Retired")
		assert.Equal(t, 5, f.store.product(1).Inventory)
	})

	t.Run("line of deleted product blocks checkout", func(t *testing.T) {
		f := newCheckoutFixture(t, nil)
		f.store.putCart(student,
			entity.CartLine{ProductID: 1, Quantity: 1, Price: price(10)},
			entity.CartLine{ProductID: 55, Quantity: 1, Price: price(7)},
		)
		_, err := f.svc.BuySelected(context.Background(), BuySelectedRequest{StudentID: student, ProductIDs: []int64{1}})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Zero(t, f.store.orderCount())
	})
}

func TestCheckoutIdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := newCheckoutFixture(t, rdb)
	ctx := context.Background()

	req := BuyNowRequest{StudentID: student, ProductID: 1, Quantity: 1, IdempotencyKey: "abc"}
	_, err := f.svc.BuyNow(ctx, req)
	require.NoError(t, err)
	assert.True(t, mr.Exists("idempotent-key:9:abc"))

	_, err = f.svc.BuyNow(ctx, req)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 4, f.store.product(1).Inventory)

	// a failed attempt releases its key
	failing := BuyNowRequest{StudentID: student, ProductID: 1, Quantity: 50, IdempotencyKey: "def"}
	_, err = f.svc.BuyNow(ctx, failing)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.False(t, mr.Exists("idempotent-key:9:def"))
}

func TestPublishFailureDoesNotFailCheckout(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.publisher.err = errors.New("broker down")

	order, err := f.svc.BuyNow(context.Background(), BuyNowRequest{StudentID: student, ProductID: 2, Quantity: 1})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
}

type invalidationRecorder struct{ ids []int64 }

func (r *invalidationRecorder) InvalidateProducts(_ context.Context, ids ...int64) {
	r.ids = append(r.ids, ids...)
}

func TestCheckoutInvalidatesProductCache(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	rec := &invalidationRecorder{}
	f.svc.cache = rec

	_, err := f.svc.BuyNow(context.Background(), BuyNowRequest{StudentID: student, ProductID: 2, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, rec.ids)
}
