// internal/handlers/webhook.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dropmart/storefront-backend/internal/services"
)

// WebhookHandler receives pushes from the marketplace. Every endpoint answers
// HTTP 200: the body's success flag reports the processing outcome, so the
// sender never retries over our internal failures.
type WebhookHandler struct {
	webhookService *services.WebhookService
}

func NewWebhookHandler(webhookService *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

func acknowledge(c *gin.Context, result *services.Result) {
	c.JSON(http.StatusOK, result)
}

// POST /webhooks/marketplace/order-status
func (h *WebhookHandler) OrderStatus(c *gin.Context) {
	var event services.OrderStatusEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		logrus.WithError(err).Warn("Order-status webhook payload did not parse")
		acknowledge(c, &services.Result{Success: false, Message: "unparseable payload"})
		return
	}

	acknowledge(c, h.webhookService.HandleOrderStatus(&event))
}

// POST /webhooks/marketplace/inventory
func (h *WebhookHandler) Inventory(c *gin.Context) {
	var event services.InventoryEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		logrus.WithError(err).Warn("Inventory webhook payload did not parse")
		acknowledge(c, &services.Result{Success: false, Message: "unparseable payload"})
		return
	}

	acknowledge(c, h.webhookService.HandleInventory(&event))
}

// POST /webhooks/marketplace/product
func (h *WebhookHandler) Product(c *gin.Context) {
	var event services.ProductEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		logrus.WithError(err).Warn("Product webhook payload did not parse")
		acknowledge(c, &services.Result{Success: false, Message: "unparseable payload"})
		return
	}

	acknowledge(c, h.webhookService.HandleProduct(&event))
}

// POST /webhooks/marketplace/logistics
func (h *WebhookHandler) Logistics(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logrus.WithError(err).Warn("Logistics webhook body could not be read")
		acknowledge(c, &services.Result{Success: false, Message: "unreadable payload"})
		return
	}

	acknowledge(c, h.webhookService.HandleLogistics(payload))
}
