// internal/handlers/order.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
	"github.com/dropmart/storefront-backend/internal/services"
	"github.com/dropmart/storefront-backend/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
	cfg          *config.Config
}

func NewOrderHandler(orderService *services.OrderService, cfg *config.Config) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		cfg:          cfg,
	}
}

// POST /v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(&req)
	if err != nil {
		if strings.Contains(err.Error(), "validation failed") {
			utils.BadRequestResponse(c, err.Error(), nil)
			return
		}
		utils.InternalErrorResponse(c, internalErrorDetail(h.cfg, err))
		return
	}

	utils.CreatedResponse(c, gin.H{"order": order})
}

// GET /v1/orders
func (h *OrderHandler) GetOrders(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.OrderSearchParams{
		PaginationParams: params,
	}

	if status := c.Query("status"); status != "" {
		s := models.OrderStatus(status)
		filter.Status = &s
	}
	if paymentStatus := c.Query("payment_status"); paymentStatus != "" {
		p := models.PaymentStatus(paymentStatus)
		filter.PaymentStatus = &p
	}

	orders, total, err := h.orderService.ListOrders(filter)
	if err != nil {
		utils.InternalErrorResponse(c, internalErrorDetail(h.cfg, err))
		return
	}

	result := utils.CreatePaginationResult(orders, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	order, err := h.orderService.GetOrder(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Order")
			return
		}
		utils.InternalErrorResponse(c, internalErrorDetail(h.cfg, err))
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}

// POST /v1/orders/:id/fulfill
//
// Bridges a paid local order to the marketplace and records the mapping.
func (h *OrderHandler) FulfillOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	mapping, err := h.orderService.CreateAndLink(id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMappingExists):
			utils.ConflictResponse(c, err.Error())
		case errors.Is(err, services.ErrOrderNotPaid):
			utils.BadRequestResponse(c, err.Error(), nil)
		case strings.Contains(err.Error(), "not found"):
			utils.NotFoundResponse(c, "Order")
		default:
			h.marketplaceError(c, err)
		}
		return
	}

	utils.CreatedResponse(c, gin.H{"mapping": mapping})
}

// POST /v1/orders/:id/sync-status
func (h *OrderHandler) SyncOrderStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	mapping, err := h.orderService.PollStatus(id)
	if err != nil {
		if errors.Is(err, services.ErrMappingNotFound) {
			utils.NotFoundResponse(c, "Order mapping")
			return
		}
		h.marketplaceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"mapping": mapping})
}

// POST /v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	c.ShouldBindJSON(&req)

	order, err := h.orderService.CancelOrder(id, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotCancellable):
			utils.ConflictResponse(c, err.Error())
		case strings.Contains(err.Error(), "not found"):
			utils.NotFoundResponse(c, "Order")
		default:
			utils.InternalErrorResponse(c, internalErrorDetail(h.cfg, err))
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}

// POST /v1/orders/:id/mark-paid
func (h *OrderHandler) MarkPaid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	order, err := h.orderService.MarkPaid(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Order")
			return
		}
		utils.InternalErrorResponse(c, internalErrorDetail(h.cfg, err))
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}

// POST /v1/orders/freight
func (h *OrderHandler) QuoteFreight(c *gin.Context) {
	var req marketplace.FreightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	options, err := h.orderService.QuoteFreight(&req)
	if err != nil {
		h.marketplaceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"options": options})
}

func (h *OrderHandler) marketplaceError(c *gin.Context, err error) {
	var authErr *services.AuthConfigurationError
	switch {
	case errors.Is(err, services.ErrNoAPIKey):
		utils.BadRequestResponse(c, err.Error(), nil)
	case errors.As(err, &authErr):
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_AUTH", upstreamErrorDetail(h.cfg, err), nil)
	case errors.Is(err, marketplace.ErrNotFound):
		utils.NotFoundResponse(c, "Marketplace order")
	default:
		utils.ErrorResponse(c, http.StatusBadGateway, "MARKETPLACE_ERROR", upstreamErrorDetail(h.cfg, err), nil)
	}
}
