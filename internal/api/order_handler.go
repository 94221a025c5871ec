package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"campus-marketplace/internal/auth"
	"campus-marketplace/internal/entity"
)

type Orders interface {
	ListStudentOrders(ctx context.Context, studentID int64) ([]*entity.Order, error)
	GetStudentOrder(ctx context.Context, studentID, orderID int64) (*entity.Order, error)
	Cancel(ctx context.Context, orderID, studentID int64) (*entity.Order, error)
	ListSellerOrders(ctx context.Context, sellerID int64, status string) ([]*entity.Order, error)
	ListCompletedOrders(ctx context.Context, sellerID int64) ([]*entity.Order, error)
	SetStatus(ctx context.Context, orderID, sellerID int64, status string) (*entity.Order, error)
}

type OrderHandler struct {
	orders Orders
}

func NewOrderHandler(orders Orders) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func orderID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	return id, err == nil
}

// ListStudentOrders --> GET /api/orders
func (h *OrderHandler) ListStudentOrders(c echo.Context) error {
	orders, err := h.orders.ListStudentOrders(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// GetStudentOrder --> GET /api/orders/:orderId
func (h *OrderHandler) GetStudentOrder(c echo.Context) error {
	id, ok := orderID(c)
	if !ok {
		return badRequest(c, "Invalid order ID")
	}

	order, err := h.orders.GetStudentOrder(c.Request().Context(), auth.UserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// CancelOrder --> PUT /api/orders/:orderId/cancel
func (h *OrderHandler) CancelOrder(c echo.Context) error {
	id, ok := orderID(c)
	if !ok {
		return badRequest(c, "Invalid order ID")
	}

	order, err := h.orders.Cancel(c.Request().Context(), id, auth.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Order cancelled successfully",
		"order":   order,
	})
}

// ListSellerOrders --> GET /api/seller/orders?status=
func (h *OrderHandler) ListSellerOrders(c echo.Context) error {
	orders, err := h.orders.ListSellerOrders(c.Request().Context(), auth.UserID(c), c.QueryParam("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// ListCompletedOrders --> GET /api/seller/orders/completed
func (h *OrderHandler) ListCompletedOrders(c echo.Context) error {
	orders, err := h.orders.ListCompletedOrders(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// UpdateOrderStatus --> PUT /api/seller/orders/:orderId/status
func (h *OrderHandler) UpdateOrderStatus(c echo.Context) error {
	id, ok := orderID(c)
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	order, err := h.orders.SetStatus(c.Request().Context(), id, auth.UserID(c), body.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}
