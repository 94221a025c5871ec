package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"campus-marketplace/internal/entity"
	"campus-marketplace/internal/repository"
)

// memStore is an in-memory stand-in for MySQL. RunInTx serialises
// transactions and restores a snapshot when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products map[int64]*entity.Product
	carts    map[int64]*entity.Cart // keyed by student
	orders   map[int64]*entity.Order
	nextID   int64

	createOrderErr map[int64]error // keyed by product
	listErr        error
	lockedCarts    int // GetCartForUpdate calls
}

var (
	_ ProductStore = (*memStore)(nil)
	_ CartStore    = (*memStore)(nil)
	_ OrderStore   = (*memStore)(nil)
	_ TxRunner     = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		products:       map[int64]*entity.Product{},
		carts:          map[int64]*entity.Cart{},
		orders:         map[int64]*entity.Order{},
		nextID:         100,
		createOrderErr: map[int64]error{},
	}
}

func (m *memStore) stores() Stores {
	return Stores{Products: m, Carts: m, Orders: m}
}

func (m *memStore) addProduct(p entity.Product) *entity.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Images == nil {
		p.Images = []string{entity.DefaultProductImage}
	}
	m.products[p.ID] = &p
	return &p
}

func (m *memStore) product(id int64) entity.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.products[id]
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) putCart(studentID int64, lines ...entity.CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cart := &entity.Cart{ID: m.nextID, StudentID: studentID, Lines: lines}
	cart.Recalculate()
	m.carts[studentID] = cart
}

func (m *memStore) RunInTx(ctx context.Context, fn func(Stores) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	products, carts, orders, nextID := m.snapshot()
	m.mu.Unlock()

	if err := fn(m.stores()); err != nil {
		m.mu.Lock()
		m.products, m.carts, m.orders, m.nextID = products, carts, orders, nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) snapshot() (map[int64]*entity.Product, map[int64]*entity.Cart, map[int64]*entity.Order, int64) {
	products := make(map[int64]*entity.Product, len(m.products))
	for id, p := range m.products {
		c := *p
		products[id] = &c
	}
	carts := make(map[int64]*entity.Cart, len(m.carts))
	for id, c := range m.carts {
		carts[id] = copyCart(c)
	}
	orders := make(map[int64]*entity.Order, len(m.orders))
	for id, o := range m.orders {
		c := *o
		orders[id] = &c
	}
	return products, carts, orders, m.nextID
}

func copyCart(c *entity.Cart) *entity.Cart {
	cp := *c
	cp.Lines = append([]entity.CartLine{}, c.Lines...)
	for i := range cp.Lines {
		cp.Lines[i].Product = nil
	}
	return &cp
}

// products

func (m *memStore) GetProductByID(_ context.Context, id int64) (*entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *memStore) ListProducts(_ context.Context, filter entity.ProductFilter) ([]*entity.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var all []*entity.Product
	for _, p := range m.products {
		if p.IsActive && (filter.Category == "" || p.Category == filter.Category) {
			c := *p
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (filter.Page - 1) * filter.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memStore) ListSellerProducts(_ context.Context, sellerID int64) ([]*entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.Product{}
	for _, p := range m.products {
		if p.SellerID == sellerID {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memStore) CreateProduct(_ context.Context, p *entity.Product) (*entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	c := *p
	m.products[p.ID] = &c
	return p, nil
}

func (m *memStore) UpdateProduct(_ context.Context, p *entity.Product) (*entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.products[p.ID]
	if !ok || cur.SellerID != p.SellerID {
		return nil, repository.ErrNotFound
	}
	c := *p
	m.products[p.ID] = &c
	return p, nil
}

func (m *memStore) SetProductActive(_ context.Context, sellerID, productID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok || p.SellerID != sellerID {
		return repository.ErrNotFound
	}
	p.IsActive = active
	return nil
}

func (m *memStore) DecrementInventory(_ context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok || p.Inventory < quantity {
		return repository.ErrInsufficientInventory
	}
	p.Inventory -= quantity
	return nil
}

func (m *memStore) IncrementInventory(_ context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Inventory += quantity
	return nil
}

// carts

func (m *memStore) GetCartByStudentID(_ context.Context, studentID int64) (*entity.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[studentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cart := copyCart(c)
	for i := range cart.Lines {
		if p, ok := m.products[cart.Lines[i].ProductID]; ok {
			pc := *p
			cart.Lines[i].Product = &pc
		}
	}
	return cart, nil
}

func (m *memStore) GetCartForUpdate(ctx context.Context, studentID int64) (*entity.Cart, error) {
	m.mu.Lock()
	m.lockedCarts++
	m.mu.Unlock()
	return m.GetCartByStudentID(ctx, studentID)
}

func (m *memStore) SaveCart(_ context.Context, cart *entity.Cart) (*entity.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cart.ID == 0 {
		m.nextID++
		cart.ID = m.nextID
	}
	m.carts[cart.StudentID] = copyCart(cart)
	return cart, nil
}

// orders

func (m *memStore) GetOrderByID(_ context.Context, id int64) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (m *memStore) ListOrders(_ context.Context, filter repository.OrderFilter) ([]*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*entity.Order{}
	for _, o := range m.orders {
		if filter.StudentID != 0 && o.StudentID != filter.StudentID {
			continue
		}
		if filter.SellerID != 0 && o.SellerID != filter.SellerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		c := *o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) CreateOrder(_ context.Context, o *entity.Order) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createOrderErr[o.ProductID]; err != nil {
		return nil, err
	}
	m.nextID++
	o.ID = m.nextID
	c := *o
	m.orders[o.ID] = &c
	return o, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id, sellerID int64, from, to entity.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.SellerID != sellerID || o.Status != from {
		return repository.ErrNotFound
	}
	o.Status = to
	return nil
}

func (m *memStore) CancelOrder(_ context.Context, id, studentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.StudentID != studentID || !slices.Contains(entity.CancellableStatuses, o.Status) {
		return repository.ErrNotFound
	}
	o.Status = entity.OrderStatusCancelled
	return nil
}

func (m *memStore) putOrder(o entity.Order) *entity.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &o
	return &o
}

// recordingPublisher captures published events as order.<type>.<orderID>.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, eventType string, order *entity.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf("order.%s.%d", eventType, order.ID))
	return p.err
}

func price(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
