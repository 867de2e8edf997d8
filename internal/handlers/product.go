// internal/handlers/product.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/services"
	"github.com/dropmart/storefront-backend/internal/utils"
)

type ProductHandler struct {
	catalogService *services.CatalogService
	cfg            *config.Config
}

func NewProductHandler(catalogService *services.CatalogService, cfg *config.Config) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
		cfg:            cfg,
	}
}

// GET /v1/products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.ProductSearchParams{
		PaginationParams: params,
	}

	if inStore := c.Query("in_store"); inStore != "" {
		if v, err := strconv.ParseBool(inStore); err == nil {
			filter.InStore = &v
		}
	}
	if available := c.Query("available"); available != "" {
		if v, err := strconv.ParseBool(available); err == nil {
			filter.Available = &v
		}
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		if id, err := uuid.Parse(categoryID); err == nil {
			filter.CategoryID = &id
		}
	}

	products, total, err := h.catalogService.ListProducts(filter)
	if err != nil {
		utils.InternalErrorResponse(c, internalErrorDetail(h.cfg, err))
		return
	}

	result := utils.CreatePaginationResult(products, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /v1/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	product, err := h.catalogService.GetProduct(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Product")
			return
		}
		utils.InternalErrorResponse(c, internalErrorDetail(h.cfg, err))
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

type importProductRequest struct {
	RemoteProductID string `json:"remote_product_id" validate:"required,remote_id"`
	services.SyncOverrides
}

// POST /v1/products/import
func (h *ProductHandler) ImportProduct(c *gin.Context) {
	var req importProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	product, err := h.catalogService.ImportProduct(req.RemoteProductID, &req.SyncOverrides)
	if err != nil {
		h.syncError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"product": product})
}

// POST /v1/products/:id/sync
func (h *ProductHandler) SyncProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	product, err := h.catalogService.GetProduct(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Product")
			return
		}
		utils.InternalErrorResponse(c, internalErrorDetail(h.cfg, err))
		return
	}

	synced, err := h.catalogService.SyncProduct(product.RemoteProductID, nil)
	if err != nil {
		h.syncError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": synced})
}

// PUT /v1/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	var req services.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	product, err := h.catalogService.UpdateProduct(id, &req)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "not found"):
			utils.NotFoundResponse(c, "Product")
		case strings.Contains(err.Error(), "validation failed"),
			strings.Contains(err.Error(), "category"):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, internalErrorDetail(h.cfg, err))
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

// GET /v1/products/:id/stock
//
// Without query parameters this returns live stock for every variant of the
// product; ?vid= or ?sku= narrows the lookup to a single variant.
func (h *ProductHandler) GetLiveStock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	if vid := c.Query("vid"); vid != "" {
		entries, err := h.catalogService.LiveVariantStock(vid)
		if err != nil {
			h.syncError(c, err)
			return
		}
		utils.SuccessResponse(c, gin.H{"stock": entries})
		return
	}
	if sku := c.Query("sku"); sku != "" {
		entries, err := h.catalogService.LiveStockBySKU(sku)
		if err != nil {
			h.syncError(c, err)
			return
		}
		utils.SuccessResponse(c, gin.H{"stock": entries})
		return
	}

	entries, err := h.catalogService.LiveStock(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Product")
			return
		}
		h.syncError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"stock": entries})
}

func (h *ProductHandler) syncError(c *gin.Context, err error) {
	var authErr *services.AuthConfigurationError
	switch {
	case errors.Is(err, services.ErrNoAPIKey):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.As(err, &authErr):
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_AUTH", upstreamErrorDetail(h.cfg, err), nil)
	case errors.Is(err, marketplace.ErrNotFound):
		utils.NotFoundResponse(c, "Marketplace product")
	case strings.Contains(err.Error(), "validation failed"):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_ERROR", upstreamErrorDetail(h.cfg, err), nil)
	}
}
