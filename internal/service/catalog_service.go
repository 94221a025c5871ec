package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"campus-marketplace/internal/entity"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// ProductInput carries the fields a seller supplies when listing a product.
type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Inventory   int             `json:"inventory"`
	Images      []string        `json:"images"`
}

// ProductPatch edits a product; nil fields keep their current value.
type ProductPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Inventory   *int             `json:"inventory"`
	Images      []string         `json:"images"`
}

type CatalogService struct {
	products ProductStore
	rdb      *redis.Client
	ttl      time.Duration
	sfGroup  singleflight.Group // collapses concurrent cache misses
}

// NewCatalogService creates a new instance of CatalogService. rdb may be nil,
// in which case every read goes to the database.
func NewCatalogService(products ProductStore, rdb *redis.Client, ttl time.Duration) *CatalogService {
	return &CatalogService{products: products, rdb: rdb, ttl: ttl}
}

func productCacheKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// GetProduct returns an active product, reading through the redis cache.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*entity.Product, error) {
	product, err := s.cachedProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
	}
	return product, nil
}

func (s *CatalogService) cachedProduct(ctx context.Context, id int64) (*entity.Product, error) {
	key := productCacheKey(id)

	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var product entity.Product
			if err := json.Unmarshal(data, &product); err == nil {
				return &product, nil
			}
			logger.Warn().Msgf("Discarding undecodable cache entry for product %d", id)
		case !errors.Is(err, redis.Nil):
			logger.Error().Err(err).Msgf("Error getting product %d from cache", id)
		}
	}

	val, err, _ := s.sfGroup.Do(key, func() (interface{}, error) {
		return s.products.GetProductByID(ctx, id)
	})
	if err != nil {
		if mapped := mapNotFound(err, "product %d", id); mapped != err {
			return nil, mapped
		}
		logger.Error().Err(err).Msgf("Error getting product by ID %d", id)
		return nil, err
	}
	product := val.(*entity.Product)

	if s.rdb != nil {
		data, err := json.Marshal(product)
		if err == nil {
			err = s.rdb.Set(ctx, key, data, s.ttl).Err()
		}
		if err != nil {
			logger.Error().Err(err).Msgf("Error setting product %d in cache", id)
		}
	}

	// singleflight shares the pointer between callers
	copied := *product
	return &copied, nil
}

// InvalidateProducts drops cached entries after stock or listing changes.
func (s *CatalogService) InvalidateProducts(ctx context.Context, ids ...int64) {
	if s.rdb == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productCacheKey(id)
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Error().Err(err).Msgf("Error invalidating cache for products %v", ids)
	}
}

// BrowseProducts lists active products for students.
func (s *CatalogService) BrowseProducts(ctx context.Context, filter entity.ProductFilter) (*entity.ProductPage, error) {
	if filter.Page < 1 {
		filter.Page = defaultPage
	}
	if filter.Limit < 1 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Category = strings.TrimSpace(filter.Category)
	if filter.SortBy == "" {
		filter.SortBy = "created_at"
		filter.Desc = true
	}

	products, total, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing products")
		return nil, err
	}

	return &entity.ProductPage{
		Products: products,
		Total:    total,
		Page:     filter.Page,
		Pages:    (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (s *CatalogService) ListSellerProducts(ctx context.Context, sellerID int64) ([]*entity.Product, error) {
	products, err := s.products.ListSellerProducts(ctx, sellerID)
	if err != nil {
		logger.Error().Err(err).Msgf("Error listing products of seller %d", sellerID)
		return nil, err
	}
	return products, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, sellerID int64, in ProductInput) (*entity.Product, error) {
	product := &entity.Product{
		SellerID:    sellerID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Inventory:   in.Inventory,
		IsActive:    true,
		Images:      in.Images,
	}
	if len(product.Images) == 0 {
		product.Images = []string{entity.DefaultProductImage}
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	created, err := s.products.CreateProduct(ctx, product)
	if err != nil {
		logger.Error().Err(err).Msg("Error creating product")
		return nil, err
	}
	return created, nil
}

// UpdateProduct edits a product owned by sellerID. Orders already placed keep
// their own price snapshot and are not affected.
func (s *CatalogService) UpdateProduct(ctx context.Context, sellerID, productID int64, patch ProductPatch) (*entity.Product, error) {
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, mapNotFound(err, "product %d", productID)
	}
	if product.SellerID != sellerID {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}

	if patch.Name != nil {
		product.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		product.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		product.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.Inventory != nil {
		product.Inventory = *patch.Inventory
	}
	if len(patch.Images) > 0 {
		product.Images = patch.Images
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	updated, err := s.products.UpdateProduct(ctx, product)
	if err != nil {
		if mapped := mapNotFound(err, "product %d", productID); mapped != err {
			return nil, mapped
		}
		logger.Error().Err(err).Msgf("Error updating product %d", productID)
		return nil, err
	}
	s.InvalidateProducts(ctx, productID)
	return updated, nil
}

// SetActive soft-deletes or restores a product owned by sellerID.
func (s *CatalogService) SetActive(ctx context.Context, sellerID, productID int64, active bool) (*entity.Product, error) {
	if err := s.products.SetProductActive(ctx, sellerID, productID, active); err != nil {
		if mapped := mapNotFound(err, "product %d", productID); mapped != err {
			return nil, mapped
		}
		logger.Error().Err(err).Msgf("Error toggling product %d", productID)
		return nil, err
	}
	s.InvalidateProducts(ctx, productID)

	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, mapNotFound(err, "product %d", productID)
	}
	return product, nil
}

// RestockProduct returns quantity units to a product, e.g. after a cancellation.
func (s *CatalogService) RestockProduct(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if err := s.products.IncrementInventory(ctx, productID, quantity); err != nil {
		return mapNotFound(err, "product %d", productID)
	}
	s.InvalidateProducts(ctx, productID)
	return nil
}

func validateProduct(p *entity.Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Description == "":
		return fmt.Errorf("%w: description is required", ErrInvalidProduct)
	case p.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalidProduct)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case !p.Price.Equal(p.Price.Round(2)):
		// prices are stored as DECIMAL(12,2)
		return fmt.Errorf("%w: price must have at most 2 decimal places", ErrInvalidProduct)
	case p.Inventory < 0:
		return fmt.Errorf("%w: inventory must not be negative", ErrInvalidProduct)
	}
	return nil
}
