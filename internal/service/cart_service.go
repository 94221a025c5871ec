package service

import (
	"context"
	"errors"
	"fmt"

	"campus-marketplace/internal/entity"
	"campus-marketplace/internal/repository"
)

type CartService struct {
	stores Stores
	tx     TxRunner
}

func NewCartService(stores Stores, tx TxRunner) *CartService {
	return &CartService{stores: stores, tx: tx}
}

// GetCart returns the student's cart with live product data. A student without
// a cart gets an empty one, and nothing is persisted.
func (s *CartService) GetCart(ctx context.Context, studentID int64) (*entity.Cart, error) {
	cart, err := s.stores.Carts.GetCartByStudentID(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return entity.NewCart(studentID), nil
	}
	if err != nil {
		logger.Error().Err(err).Msgf("Error getting cart of student %d", studentID)
		return nil, err
	}
	cart.Recalculate()
	return cart, nil
}

// AddToCart validates the product against the live catalog and merges the
// quantity into the existing line, or appends a line at the current price.
func (s *CartService) AddToCart(ctx context.Context, studentID, productID int64, quantity int) (*entity.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidQuantity)
	}

	var cart *entity.Cart
	err := s.tx.RunInTx(ctx, func(st Stores) error {
		product, err := st.Products.GetProductByID(ctx, productID)
		if err != nil {
			return mapNotFound(err, "product %d", productID)
		}
		if !product.IsActive {
			return fmt.Errorf("%w: %q cannot be added to the cart", ErrInactive, product.Name)
		}
		if quantity > product.Inventory {
			return insufficientStock(product)
		}

		cart, err = loadOrNewCart(ctx, st, studentID)
		if err != nil {
			return err
		}

		if i := cart.Line(productID); i >= 0 {
			cart.Lines[i].Quantity += quantity
		} else {
			cart.Lines = append(cart.Lines, entity.CartLine{ProductID: productID, Quantity: quantity, Price: product.Price})
		}

		cart, err = saveAndReload(ctx, st, cart)
		return err
	})
	if err != nil {
		logUnexpected(err, "Error adding product %d to cart of student %d", productID, studentID)
		return nil, err
	}
	return cart, nil
}

// UpdateQuantity overwrites the quantity of an existing line. Inventory is not
// re-checked here; checkout validates stock again.
func (s *CartService) UpdateQuantity(ctx context.Context, studentID, productID int64, quantity int) (*entity.Cart, error) {
	var cart *entity.Cart
	err := s.tx.RunInTx(ctx, func(st Stores) error {
		var err error
		cart, err = st.Carts.GetCartForUpdate(ctx, studentID)
		if err != nil {
			return mapNotFound(err, "cart of student %d", studentID)
		}

		i := cart.Line(productID)
		if i < 0 {
			return fmt.Errorf("%w: product %d is not in the cart", ErrNotFound, productID)
		}
		if quantity < 1 {
			return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidQuantity)
		}

		cart.Lines[i].Quantity = quantity
		cart, err = saveAndReload(ctx, st, cart)
		return err
	})
	if err != nil {
		logUnexpected(err, "Error updating product %d in cart of student %d", productID, studentID)
		return nil, err
	}
	return cart, nil
}

// RemoveFromCart drops the line for productID if present. Removing a product
// that is not in the cart is not an error.
func (s *CartService) RemoveFromCart(ctx context.Context, studentID, productID int64) (*entity.Cart, error) {
	var cart *entity.Cart
	err := s.tx.RunInTx(ctx, func(st Stores) error {
		var err error
		cart, err = st.Carts.GetCartForUpdate(ctx, studentID)
		if errors.Is(err, repository.ErrNotFound) {
			cart = entity.NewCart(studentID)
			return nil
		}
		if err != nil {
			return err
		}

		cart.RemoveProducts(map[int64]bool{productID: true})
		cart, err = saveAndReload(ctx, st, cart)
		return err
	})
	if err != nil {
		logUnexpected(err, "Error removing product %d from cart of student %d", productID, studentID)
		return nil, err
	}
	return cart, nil
}

func loadOrNewCart(ctx context.Context, st Stores, studentID int64) (*entity.Cart, error) {
	cart, err := st.Carts.GetCartForUpdate(ctx, studentID)
	if errors.Is(err, repository.ErrNotFound) {
		return entity.NewCart(studentID), nil
	}
	return cart, err
}

// saveAndReload recomputes the total, persists the cart and reads it back with
// product data attached to every line.
func saveAndReload(ctx context.Context, st Stores, cart *entity.Cart) (*entity.Cart, error) {
	cart.Recalculate()
	if _, err := st.Carts.SaveCart(ctx, cart); err != nil {
		return nil, err
	}
	return st.Carts.GetCartByStudentID(ctx, cart.StudentID)
}

func insufficientStock(p *entity.Product) error {
	return fmt.Errorf("%w: not enough stock for %s, available: %d", ErrInsufficientStock, p.Name, p.Inventory)
}
