// internal/services/catalog_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
	"github.com/dropmart/storefront-backend/internal/utils"
)

// maxCategoryDepth bounds the ancestor walk when validating a category
// assignment, so a corrupted parent chain cannot loop forever.
const maxCategoryDepth = 10

// CatalogService keeps the local catalog cache consistent with the
// marketplace's product, price and inventory truth.
type CatalogService struct {
	db     *gorm.DB
	client *marketplace.Client
	tokens *TokenService
}

// SyncOverrides carries the caller-supplied values of an explicit import
// action. Nil pointer fields mean "preserve the local value"; a routine
// background refresh passes nil overrides entirely.
type SyncOverrides struct {
	Title           string                  `json:"title,omitempty"`
	CategoryID      *uuid.UUID              `json:"category_id,omitempty"`
	PricingStrategy *models.PricingStrategy `json:"pricing_strategy,omitempty" validate:"omitempty,pricing_strategy"`
	MarkupValue     *float64                `json:"markup_value,omitempty"`
	Price           *float64                `json:"price,omitempty" validate:"omitempty,min=0"`
	IsInStore       *bool                   `json:"is_in_store,omitempty"`
}

func NewCatalogService(db *gorm.DB, client *marketplace.Client, tokens *TokenService) *CatalogService {
	return &CatalogService{
		db:     db,
		client: client,
		tokens: tokens,
	}
}

// SyncProduct fetches the remote product detail and upserts the catalog entry
// keyed by the remote product id. Local overrides survive the refresh unless
// the caller explicitly supplies new values.
func (s *CatalogService) SyncProduct(remoteProductID string, overrides *SyncOverrides) (*models.Product, error) {
	if overrides != nil {
		if err := utils.ValidateStruct(overrides); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
	}

	var remote *marketplace.RemoteProduct
	err := s.tokens.WithToken(func(token string) error {
		var fetchErr error
		remote, fetchErr = s.client.QueryProduct(token, remoteProductID)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	var product models.Product
	found := true
	if err := s.db.Preload("Variants").
		Where("remote_product_id = ?", remoteProductID).
		First(&product).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("database error: %w", err)
		}
		found = false
		product = models.Product{RemoteProductID: remoteProductID}
	}

	s.mergeProduct(&product, remote, overrides)

	if overrides != nil && overrides.CategoryID != nil {
		if err := s.validateCategory(*overrides.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = overrides.CategoryID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if found {
			if err := tx.Save(&product).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
		}
		if err := s.upsertVariants(tx, &product, remote.Variants); err != nil {
			return err
		}
		// The remote payload may omit variants we still carry locally, so
		// the parent aggregate is summed over the stored rows, not the
		// response.
		return recomputeProductStock(tx, product.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store product: %w", err)
	}

	if err := s.db.Preload("Variants").First(&product, product.ID).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"pid":      remoteProductID,
		"variants": len(product.Variants),
		"stock":    product.Stock,
	}).Info("Catalog entry synced")

	return &product, nil
}

// ImportProduct is the explicit catalog-import action: it syncs the product
// and places it in the store unless the caller says otherwise.
func (s *CatalogService) ImportProduct(remoteProductID string, overrides *SyncOverrides) (*models.Product, error) {
	if overrides == nil {
		overrides = &SyncOverrides{}
	}
	if overrides.IsInStore == nil {
		inStore := true
		overrides.IsInStore = &inStore
	}
	return s.SyncProduct(remoteProductID, overrides)
}

// mergeProduct applies the remote payload on top of the stored entry,
// preserving local overrides. Field precedence: explicit override, then
// remote truth for remote-owned fields, then the existing local value.
func (s *CatalogService) mergeProduct(product *models.Product, remote *marketplace.RemoteProduct, overrides *SyncOverrides) {
	explicitTitle := ""
	if overrides != nil {
		explicitTitle = overrides.Title
	}
	product.Title = resolveProductName(product.Title, explicitTitle, remote)

	if remote.Description != "" {
		product.Description = remote.Description
	}
	if len(remote.ProductImageSet) > 0 {
		product.Images = models.StringList(remote.ProductImageSet)
	} else if remote.ProductImage != "" {
		product.Images = models.StringList{remote.ProductImage}
	}
	if remote.Currency != "" {
		product.Currency = remote.Currency
	}

	product.CostPrice = parsePriceLower(remote.SellPrice.String())
	product.SuggestedPrice = parsePriceLower(remote.SuggestSellPrice.String())
	product.CompareAtPrice = parsePriceUpper(remote.CompareAtPrice.String())

	if overrides != nil {
		if overrides.PricingStrategy != nil {
			product.PricingStrategy = *overrides.PricingStrategy
		}
		if overrides.MarkupValue != nil {
			product.MarkupValue = *overrides.MarkupValue
		}
		if overrides.IsInStore != nil {
			product.IsInStore = *overrides.IsInStore
		}
	}
	if product.PricingStrategy == "" {
		product.PricingStrategy = models.PricingStrategyCustom
	}

	explicitPrice := 0.0
	if overrides != nil && overrides.Price != nil {
		explicitPrice = *overrides.Price
	}
	product.Price = derivePrice(product.PricingStrategy, product.MarkupValue,
		product.CostPrice, product.SuggestedPrice, product.Price, explicitPrice, 1)

	if raw, err := json.Marshal(remote); err == nil {
		var snapshot models.JSONB
		if json.Unmarshal(raw, &snapshot) == nil {
			product.RawRemoteData = snapshot
		}
	}

	now := time.Now()
	product.LastSyncedAt = &now
}

// upsertVariants merges the remote variants into the stored set. Variants
// absent from the remote response are left untouched, never deleted.
func (s *CatalogService) upsertVariants(tx *gorm.DB, product *models.Product, remoteVariants []marketplace.RemoteVariant) error {
	ratio := markupRatio(product.Price, product.CostPrice)

	for i := range remoteVariants {
		rv := &remoteVariants[i]

		var variant models.ProductVariant
		found := true
		if err := tx.Where("remote_variant_id = ?", rv.Vid).First(&variant).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
			variant = models.ProductVariant{
				ProductID:       product.ID,
				RemoteVariantID: rv.Vid,
			}
		}

		name := rv.VariantNameEn
		if name == "" {
			name = rv.VariantName
		}
		if name != "" {
			variant.Name = name
		}
		if rv.VariantSku != "" {
			variant.SKU = rv.VariantSku
		}
		if rv.VariantImage != "" {
			variant.Image = rv.VariantImage
		}

		variant.CostPrice = rv.VariantSellPrice
		variant.SuggestedPrice = rv.VariantSuggestSellPrice
		variant.Stock = variantStock(rv)
		variant.Price = derivePrice(product.PricingStrategy, product.MarkupValue,
			variant.CostPrice, variant.SuggestedPrice, variant.Price, 0, ratio)

		if found {
			if err := tx.Save(&variant).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Create(&variant).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

// derivePrice selects the stored selling price for one strategy pass.
//
//   - suggested forces the remote suggested price on every sync, falling back
//     to the ratio-preserving derivation when no suggested price exists
//   - markup_percentage and markup_fixed recompute from cost
//   - custom preserves an existing price, else derives by ratio
//
// An explicit caller-supplied price wins over everything.
func derivePrice(strategy models.PricingStrategy, markupValue, cost, suggested, existing, explicit, ratio float64) float64 {
	if explicit > 0 {
		return explicit
	}

	switch strategy {
	case models.PricingStrategySuggested:
		if suggested > 0 {
			return suggested
		}
		return round2(cost * ratio)
	case models.PricingStrategyMarkupPercentage:
		return round2(cost * (1 + markupValue/100))
	case models.PricingStrategyMarkupFixed:
		return round2(cost + markupValue)
	default: // custom
		if existing > 0 {
			return existing
		}
		return round2(cost * ratio)
	}
}

// markupRatio is the product's effective price/cost ratio, used to carry the
// same relative margin onto variants that have no price of their own yet.
func markupRatio(price, cost float64) float64 {
	if price > 0 && cost > 0 {
		return price / cost
	}
	return 1
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// variantStock sums the per-warehouse entries, preferring totalInventoryNum
// over the deprecated storageNum, then falls back to the aggregate field.
func variantStock(rv *marketplace.RemoteVariant) int {
	if len(rv.Inventories) > 0 {
		total := 0
		for _, inv := range rv.Inventories {
			total += stockOf(inv)
		}
		return total
	}
	if rv.InventoryNum > 0 {
		return rv.InventoryNum
	}
	return 0
}

func stockOf(inv marketplace.RemoteInventory) int {
	if inv.TotalInventoryNum > 0 {
		return inv.TotalInventoryNum
	}
	return inv.StorageNum
}

// parsePriceLower reads a price that may be a bare number or a "low-high"
// range string, taking the lower bound.
func parsePriceLower(raw string) float64 {
	low, _ := parsePriceRange(raw)
	return low
}

// parsePriceUpper takes the upper bound of a range; used for compare-at.
func parsePriceUpper(raw string) float64 {
	_, high := parsePriceRange(raw)
	return high
}

func parsePriceRange(raw string) (float64, float64) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0
	}

	if idx := strings.Index(raw, "-"); idx > 0 {
		low, err1 := strconv.ParseFloat(strings.TrimSpace(raw[:idx]), 64)
		high, err2 := strconv.ParseFloat(strings.TrimSpace(raw[idx+1:]), 64)
		if err1 == nil && err2 == nil {
			return low, high
		}
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v, v
	}
	return 0, 0
}

// resolveProductName picks the catalog entry's display name. A clean existing
// name is preserved across re-syncs; otherwise the English remote fields win,
// then the JSON-array first element of whatever is stored.
func resolveProductName(existing, explicit string, remote *marketplace.RemoteProduct) string {
	if explicit != "" {
		return explicit
	}
	if existing != "" && isCleanName(existing) {
		return existing
	}
	if remote.ProductNameEn != "" {
		return remote.ProductNameEn
	}
	if remote.EntryNameEn != "" {
		return remote.EntryNameEn
	}

	candidate := existing
	if candidate == "" {
		candidate = remote.ProductName
	}
	if first := firstJSONArrayElement(candidate); first != "" {
		return first
	}
	return candidate
}

// isCleanName reports whether a stored name is already a plain display string
// rather than a serialized localized-name array.
func isCleanName(name string) bool {
	return !strings.HasPrefix(strings.TrimSpace(name), "[")
}

func firstJSONArrayElement(raw string) string {
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return ""
	}
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// validateCategory checks the category exists and its parent chain is
// acyclic, walking at most maxCategoryDepth ancestors.
func (s *CatalogService) validateCategory(categoryID uuid.UUID) error {
	seen := map[uuid.UUID]bool{}
	current := &categoryID

	for depth := 0; current != nil; depth++ {
		if depth >= maxCategoryDepth {
			return errors.New("category parent chain exceeds maximum depth")
		}
		if seen[*current] {
			return errors.New("category parent chain contains a cycle")
		}
		seen[*current] = true

		var category models.Category
		if err := s.db.First(&category, *current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("category not found")
			}
			return fmt.Errorf("database error: %w", err)
		}
		current = category.ParentID
	}

	return nil
}

// SetVariantStock overwrites one variant's stock and recomputes the parent
// product's aggregate. Used by webhook reconciliation.
func (s *CatalogService) SetVariantStock(remoteVariantID string, stock int) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := s.db.Where("remote_variant_id = ?", remoteVariantID).First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("variant %s is not in the local catalog", remoteVariantID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := s.db.Model(&variant).Update("stock", stock).Error; err != nil {
		return nil, fmt.Errorf("failed to update variant stock: %w", err)
	}
	variant.Stock = stock

	if err := s.RecomputeProductStock(variant.ProductID); err != nil {
		return nil, err
	}
	return &variant, nil
}

// RecomputeProductStock sets the product's stock to the sum over its variants.
func (s *CatalogService) RecomputeProductStock(productID uuid.UUID) error {
	return recomputeProductStock(s.db, productID)
}

func recomputeProductStock(db *gorm.DB, productID uuid.UUID) error {
	var total int64
	if err := db.Model(&models.ProductVariant{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(stock), 0)").Scan(&total).Error; err != nil {
		return fmt.Errorf("failed to sum variant stock: %w", err)
	}

	return db.Model(&models.Product{}).Where("id = ?", productID).
		Updates(map[string]interface{}{
			"stock":        total,
			"is_available": total > 0,
		}).Error
}

// SetProductStock handles the legacy single-field inventory update. Without a
// variant id the availability flag follows the stock directly.
func (s *CatalogService) SetProductStock(remoteProductID string, stock int) error {
	result := s.db.Model(&models.Product{}).
		Where("remote_product_id = ?", remoteProductID).
		Updates(map[string]interface{}{
			"stock":        stock,
			"is_available": stock > 0,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update product stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product %s is not in the local catalog", remoteProductID)
	}
	return nil
}

type ProductSearchParams struct {
	utils.PaginationParams
	InStore    *bool
	Available  *bool
	CategoryID *uuid.UUID
}

// ListProducts pages through the catalog with optional store filters.
func (s *CatalogService) ListProducts(params ProductSearchParams) ([]models.Product, int64, error) {
	query := s.db.Model(&models.Product{}).Preload("Variants").Preload("Category")

	if params.InStore != nil {
		query = query.Where("is_in_store = ?", *params.InStore)
	}
	if params.Available != nil {
		query = query.Where("is_available = ?", *params.Available)
	}
	if params.CategoryID != nil {
		query = query.Where("category_id = ?", *params.CategoryID)
	}
	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ?", searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "title", "price", "stock", "last_synced_at"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}

func (s *CatalogService) GetProduct(id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.Preload("Variants").Preload("Category").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("product not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

type UpdateProductRequest struct {
	Title           string                  `json:"title,omitempty"`
	Price           *float64                `json:"price,omitempty" validate:"omitempty,min=0"`
	PricingStrategy *models.PricingStrategy `json:"pricing_strategy,omitempty" validate:"omitempty,pricing_strategy"`
	MarkupValue     *float64                `json:"markup_value,omitempty"`
	IsInStore       *bool                   `json:"is_in_store,omitempty"`
	CategoryID      *uuid.UUID              `json:"category_id,omitempty"`
}

// UpdateProduct edits the store-local override fields without a remote call.
func (s *CatalogService) UpdateProduct(id uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.PricingStrategy != nil {
		updates["pricing_strategy"] = *req.PricingStrategy
	}
	if req.MarkupValue != nil {
		updates["markup_value"] = *req.MarkupValue
	}
	if req.IsInStore != nil {
		updates["is_in_store"] = *req.IsInStore
	}
	if req.CategoryID != nil {
		if err := s.validateCategory(*req.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *req.CategoryID
	}

	if len(updates) > 0 {
		if err := s.db.Model(product).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
	}

	return s.GetProduct(id)
}

// LiveStock queries the marketplace for the current per-warehouse stock of
// every variant of one catalog entry, without mutating local state.
func (s *CatalogService) LiveStock(id uuid.UUID) ([]marketplace.VariantStock, error) {
	product, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	var entries []marketplace.VariantStock
	err = s.tokens.WithToken(func(token string) error {
		var queryErr error
		entries, queryErr = s.client.QueryStockByPid(token, product.RemoteProductID)
		return queryErr
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LiveVariantStock queries the marketplace for one variant's current
// per-warehouse stock.
func (s *CatalogService) LiveVariantStock(remoteVariantID string) ([]marketplace.RemoteInventory, error) {
	var entries []marketplace.RemoteInventory
	err := s.tokens.WithToken(func(token string) error {
		var queryErr error
		entries, queryErr = s.client.QueryStockByVid(token, remoteVariantID)
		return queryErr
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LiveStockBySKU is the SKU-keyed twin of LiveVariantStock.
func (s *CatalogService) LiveStockBySKU(sku string) ([]marketplace.RemoteInventory, error) {
	var entries []marketplace.RemoteInventory
	err := s.tokens.WithToken(func(token string) error {
		var queryErr error
		entries, queryErr = s.client.QueryStockBySku(token, sku)
		return queryErr
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// InStoreBatch returns up to limit in-store products in insertion order, for
// the scheduled resync.
func (s *CatalogService) InStoreBatch(limit int) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.Where("is_in_store = ?", true).
		Order("created_at ASC").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch in-store products: %w", err)
	}
	return products, nil
}
