package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"campus-marketplace/internal/auth"
	"campus-marketplace/internal/entity"
	"campus-marketplace/internal/service"
)

// Catalog is implemented by *service.CatalogService.
type Catalog interface {
	BrowseProducts(ctx context.Context, filter entity.ProductFilter) (*entity.ProductPage, error)
	GetProduct(ctx context.Context, id int64) (*entity.Product, error)
	ListSellerProducts(ctx context.Context, sellerID int64) ([]*entity.Product, error)
	CreateProduct(ctx context.Context, sellerID int64, in service.ProductInput) (*entity.Product, error)
	UpdateProduct(ctx context.Context, sellerID, productID int64, patch service.ProductPatch) (*entity.Product, error)
	SetActive(ctx context.Context, sellerID, productID int64, active bool) (*entity.Product, error)
}

type ProductHandler struct {
	catalog Catalog
}

func NewProductHandler(catalog Catalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// BrowseProducts --> GET /api/products?page=&limit=&category=&search=&sortBy=&order=
func (h *ProductHandler) BrowseProducts(c echo.Context) error {
	filter := entity.ProductFilter{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
		SortBy:   c.QueryParam("sortBy"),
		Desc:     strings.EqualFold(c.QueryParam("order"), "desc"),
	}
	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	page, err := h.catalog.BrowseProducts(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GetProduct --> GET /api/products/:id
func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid product ID")
	}

	product, err := h.catalog.GetProduct(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// ListSellerProducts --> GET /api/seller/products
func (h *ProductHandler) ListSellerProducts(c echo.Context) error {
	products, err := h.catalog.ListSellerProducts(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

// CreateProduct --> POST /api/seller/products
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var in service.ProductInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	product, err := h.catalog.CreateProduct(c.Request().Context(), auth.UserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct --> PUT /api/seller/products/:id
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid product ID")
	}
	var patch service.ProductPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	product, err := h.catalog.UpdateProduct(c.Request().Context(), auth.UserID(c), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// SetProductActive --> PUT /api/seller/products/:id/active
func (h *ProductHandler) SetProductActive(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid product ID")
	}
	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := c.Bind(&body); err != nil || body.IsActive == nil {
		return badRequest(c, "isActive is required")
	}

	product, err := h.catalog.SetActive(c.Request().Context(), auth.UserID(c), id, *body.IsActive)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}
