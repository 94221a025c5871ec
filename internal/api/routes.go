package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"campus-marketplace/internal/auth"
)

type Handlers struct {
	Products *ProductHandler
	Carts    *CartHandler
	Orders   *OrderHandler
}

// Register mounts every route under /api. Student and seller routes require
// a token carrying the matching role.
func Register(e *echo.Echo, h Handlers, jwtSecret string) {
	g := e.Group("/api")

	g.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"service": "campus-marketplace",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	g.GET("/products", h.Products.BrowseProducts)
	g.GET("/products/:id", h.Products.GetProduct)

	jwt := auth.Middleware(jwtSecret)

	student := g.Group("/student", jwt, auth.RequireRole(auth.RoleStudent))
	student.GET("/cart", h.Carts.GetCart)
	student.POST("/cart/add", h.Carts.AddToCart)
	student.PUT("/cart/update", h.Carts.UpdateCartItem)
	student.DELETE("/cart/remove/:productId", h.Carts.RemoveFromCart)
	student.POST("/cart/buy-selected", h.Carts.BuySelected)
	student.POST("/buy-now", h.Carts.BuyNow)

	orders := g.Group("/orders", jwt, auth.RequireRole(auth.RoleStudent))
	orders.GET("", h.Orders.ListStudentOrders)
	orders.GET("/:orderId", h.Orders.GetStudentOrder)
	orders.PUT("/:orderId/cancel", h.Orders.CancelOrder)

	seller := g.Group("/seller", jwt, auth.RequireRole(auth.RoleSeller))
	seller.GET("/products", h.Products.ListSellerProducts)
	seller.POST("/products", h.Products.CreateProduct)
	seller.PUT("/products/:id", h.Products.UpdateProduct)
	seller.PUT("/products/:id/active", h.Products.SetProductActive)
	seller.GET("/orders", h.Orders.ListSellerOrders)
	seller.GET("/orders/completed", h.Orders.ListCompletedOrders)
	seller.PUT("/orders/:orderId/status", h.Orders.UpdateOrderStatus)
}
