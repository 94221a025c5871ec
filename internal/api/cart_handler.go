package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"campus-marketplace/internal/auth"
	"campus-marketplace/internal/entity"
	"campus-marketplace/internal/service"
)

const idempotencyHeader = "Idempotent-Key"

type Carts interface {
	GetCart(ctx context.Context, studentID int64) (*entity.Cart, error)
	AddToCart(ctx context.Context, studentID, productID int64, quantity int) (*entity.Cart, error)
	UpdateQuantity(ctx context.Context, studentID, productID int64, quantity int) (*entity.Cart, error)
	RemoveFromCart(ctx context.Context, studentID, productID int64) (*entity.Cart, error)
}

type Checkout interface {
	BuyNow(ctx context.Context, req service.BuyNowRequest) (*entity.Order, error)
	BuySelected(ctx context.Context, req service.BuySelectedRequest) ([]*entity.Order, error)
}

type CartHandler struct {
	carts    Carts
	checkout Checkout
}

func NewCartHandler(carts Carts, checkout Checkout) *CartHandler {
	return &CartHandler{carts: carts, checkout: checkout}
}

type cartLineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  *int  `json:"quantity"`
}

func (r cartLineRequest) valid() bool {
	return r.ProductID != 0 && r.Quantity != nil
}

// GetCart --> GET /api/student/cart
func (h *CartHandler) GetCart(c echo.Context) error {
	cart, err := h.carts.GetCart(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// AddToCart --> POST /api/student/cart/add
func (h *CartHandler) AddToCart(c echo.Context) error {
	var req cartLineRequest
	if err := c.Bind(&req); err != nil || !req.valid() {
		return badRequest(c, "productId and quantity are required")
	}

	cart, err := h.carts.AddToCart(c.Request().Context(), auth.UserID(c), req.ProductID, *req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// UpdateCartItem --> PUT /api/student/cart/update
func (h *CartHandler) UpdateCartItem(c echo.Context) error {
	var req cartLineRequest
	if err := c.Bind(&req); err != nil || !req.valid() {
		return badRequest(c, "productId and quantity are required")
	}

	cart, err := h.carts.UpdateQuantity(c.Request().Context(), auth.UserID(c), req.ProductID, *req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// RemoveFromCart --> DELETE /api/student/cart/remove/:productId
func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid product ID")
	}

	cart, err := h.carts.RemoveFromCart(c.Request().Context(), auth.UserID(c), productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// BuySelected --> POST /api/student/cart/buy-selected
func (h *CartHandler) BuySelected(c echo.Context) error {
	var body struct {
		SelectedProducts []int64 `json:"selectedProducts"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	orders, err := h.checkout.BuySelected(c.Request().Context(), service.BuySelectedRequest{
		StudentID:      auth.UserID(c),
		ProductIDs:     body.SelectedProducts,
		IdempotencyKey: c.Request().Header.Get(idempotencyHeader),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Purchase successful",
		"orders":  orders,
	})
}

// BuyNow --> POST /api/student/buy-now
func (h *CartHandler) BuyNow(c echo.Context) error {
	var req cartLineRequest
	if err := c.Bind(&req); err != nil || !req.valid() {
		return badRequest(c, "productId and quantity are required")
	}

	order, err := h.checkout.BuyNow(c.Request().Context(), service.BuyNowRequest{
		StudentID:      auth.UserID(c),
		ProductID:      req.ProductID,
		Quantity:       *req.Quantity,
		IdempotencyKey: c.Request().Header.Get(idempotencyHeader),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Purchase successful",
		"order":   order,
	})
}
