// internal/handlers/integration.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
	"github.com/dropmart/storefront-backend/internal/services"
	"github.com/dropmart/storefront-backend/internal/utils"
)

// IntegrationHandler is the admin surface for the marketplace connection:
// credential lifecycle, webhook subscription and warehouse lookups.
type IntegrationHandler struct {
	db           *gorm.DB
	cfg          *config.Config
	client       *marketplace.Client
	tokenService *services.TokenService
}

func NewIntegrationHandler(db *gorm.DB, cfg *config.Config, client *marketplace.Client, tokenService *services.TokenService) *IntegrationHandler {
	return &IntegrationHandler{
		db:           db,
		cfg:          cfg,
		client:       client,
		tokenService: tokenService,
	}
}

// errDetail hides upstream failure detail in production.
func (h *IntegrationHandler) errDetail(err error) string {
	return upstreamErrorDetail(h.cfg, err)
}

// upstreamErrorDetail is the shared detail policy for every handler that
// surfaces a marketplace failure.
func upstreamErrorDetail(cfg *config.Config, err error) string {
	if cfg.IsProduction() {
		return "marketplace request failed"
	}
	return err.Error()
}

// internalErrorDetail blanks internal error text in production; the response
// helper substitutes its generic message.
func internalErrorDetail(cfg *config.Config, err error) string {
	if cfg.IsProduction() {
		return ""
	}
	return err.Error()
}

// GET /v1/integration/token-status
func (h *IntegrationHandler) GetTokenStatus(c *gin.Context) {
	utils.SuccessResponse(c, h.tokenService.Status())
}

// PUT /v1/integration/api-key
//
// The key is persisted before the token fetch, so a key the marketplace
// rejects is kept for inspection and retry rather than silently dropped.
func (h *IntegrationHandler) SetAPIKey(c *gin.Context) {
	var req struct {
		APIKey string `json:"apiKey" validate:"required,min=8"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	if err := h.tokenService.SetAPIKey(req.APIKey); err != nil {
		utils.InternalErrorResponse(c, h.errDetail(err))
		return
	}

	if _, err := h.tokenService.ObtainInitialToken(req.APIKey); err != nil {
		var authErr *services.AuthConfigurationError
		detail := h.errDetail(err)
		if errors.As(err, &authErr) && !h.cfg.IsProduction() {
			detail = authErr.Message
		}
		utils.SuccessResponse(c, gin.H{
			"stored":    true,
			"connected": false,
			"error":     detail,
		})
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stored":    true,
		"connected": true,
		"status":    h.tokenService.Status(),
	})
}

// POST /v1/integration/refresh-token
func (h *IntegrationHandler) RefreshToken(c *gin.Context) {
	if _, err := h.tokenService.ForceRefresh(); err != nil {
		if errors.Is(err, services.ErrNoAPIKey) {
			utils.BadRequestResponse(c, err.Error(), nil)
			return
		}
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_ERROR", h.errDetail(err), nil)
		return
	}
	utils.SuccessResponse(c, h.tokenService.Status())
}

// POST /v1/integration/test-connection
//
// Runs one lightweight authenticated call so the admin can verify the stored
// credentials end to end.
func (h *IntegrationHandler) TestConnection(c *gin.Context) {
	var warehouses []marketplace.Warehouse
	err := h.tokenService.WithToken(func(token string) error {
		var listErr error
		warehouses, listErr = h.client.ListWarehouses(token)
		return listErr
	})
	if err != nil {
		if errors.Is(err, services.ErrNoAPIKey) {
			utils.BadRequestResponse(c, err.Error(), nil)
			return
		}
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_ERROR", h.errDetail(err), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"connected":  true,
		"warehouses": len(warehouses),
	})
}

// DELETE /v1/integration/token
func (h *IntegrationHandler) DeleteToken(c *gin.Context) {
	if err := h.tokenService.DeleteToken(); err != nil {
		utils.InternalErrorResponse(c, h.errDetail(err))
		return
	}
	utils.SuccessResponse(c, gin.H{"deleted": true})
}

// GET /v1/integration/webhook
//
// Returns the live subscription from the marketplace; if the marketplace is
// unreachable, falls back to the locally stored copy.
func (h *IntegrationHandler) GetWebhookConfig(c *gin.Context) {
	var settings *marketplace.WebhookSettings
	err := h.tokenService.WithToken(func(token string) error {
		var getErr error
		settings, getErr = h.client.GetWebhookSettings(token)
		return getErr
	})
	if err == nil {
		utils.SuccessResponse(c, gin.H{"source": "marketplace", "config": settings})
		return
	}

	var stored models.IntegrationSetting
	dbErr := h.db.Where("category = ? AND key = ?",
		models.SettingCategoryMarketplace, models.SettingKeyWebhookConfig).
		First(&stored).Error
	if dbErr != nil {
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_ERROR", h.errDetail(err), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"source": "local", "config": stored.Value})
}

// POST /v1/integration/webhook
//
// Persists the subscription locally, then pushes it to the marketplace. The
// callback URL is derived from the configured base URL and must be HTTPS.
func (h *IntegrationHandler) SetWebhookConfig(c *gin.Context) {
	var req struct {
		CallbackURL     string `json:"callback_url"`
		OrderStatusPush bool   `json:"order_status_push"`
		InventoryPush   bool   `json:"inventory_push"`
		ProductPush     bool   `json:"product_push"`
		LogisticsPush   bool   `json:"logistics_push"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	callback := req.CallbackURL
	if callback == "" {
		callback = h.cfg.Marketplace.WebhookBaseURL
	}
	if callback == "" {
		utils.BadRequestResponse(c, "No webhook callback URL is configured", nil)
		return
	}
	if !strings.HasPrefix(callback, "https://") {
		utils.BadRequestResponse(c, "Webhook callback URL must use https", nil)
		return
	}

	settings := &marketplace.WebhookSettings{
		CallbackURL:     callback,
		OrderStatusPush: req.OrderStatusPush,
		InventoryPush:   req.InventoryPush,
		ProductPush:     req.ProductPush,
		LogisticsPush:   req.LogisticsPush,
	}

	if err := h.storeWebhookConfig(settings); err != nil {
		utils.InternalErrorResponse(c, h.errDetail(err))
		return
	}

	err := h.tokenService.WithToken(func(token string) error {
		return h.client.SetWebhookSettings(token, settings)
	})
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_ERROR", h.errDetail(err), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"config": settings})
}

func (h *IntegrationHandler) storeWebhookConfig(settings *marketplace.WebhookSettings) error {
	value := models.JSONB{
		"callbackUrl":     settings.CallbackURL,
		"orderStatusPush": settings.OrderStatusPush,
		"inventoryPush":   settings.InventoryPush,
		"productPush":     settings.ProductPush,
		"logisticsPush":   settings.LogisticsPush,
	}

	var stored models.IntegrationSetting
	err := h.db.Where("category = ? AND key = ?",
		models.SettingCategoryMarketplace, models.SettingKeyWebhookConfig).
		First(&stored).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		stored = models.IntegrationSetting{
			Category:    models.SettingCategoryMarketplace,
			Key:         models.SettingKeyWebhookConfig,
			Value:       value,
			DataType:    "json",
			Description: "Marketplace webhook subscription configuration",
		}
		return h.db.Create(&stored).Error
	case err != nil:
		return err
	default:
		stored.Value = value
		return h.db.Save(&stored).Error
	}
}

// GET /v1/integration/warehouses
func (h *IntegrationHandler) ListWarehouses(c *gin.Context) {
	var warehouses []marketplace.Warehouse
	err := h.tokenService.WithToken(func(token string) error {
		var listErr error
		warehouses, listErr = h.client.ListWarehouses(token)
		return listErr
	})
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_ERROR", h.errDetail(err), nil)
		return
	}
	utils.SuccessResponse(c, gin.H{"warehouses": warehouses})
}

// GET /v1/integration/warehouses/:id
func (h *IntegrationHandler) GetWarehouse(c *gin.Context) {
	var warehouse *marketplace.Warehouse
	err := h.tokenService.WithToken(func(token string) error {
		var getErr error
		warehouse, getErr = h.client.GetWarehouse(token, c.Param("id"))
		return getErr
	})
	if err != nil {
		if errors.Is(err, marketplace.ErrNotFound) {
			utils.NotFoundResponse(c, "Warehouse")
			return
		}
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_ERROR", h.errDetail(err), nil)
		return
	}
	utils.SuccessResponse(c, gin.H{"warehouse": warehouse})
}
