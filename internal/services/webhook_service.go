// internal/services/webhook_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// WebhookService reconciles state pushed by the marketplace. Every handler
// returns a Result and never an error: the HTTP boundary acknowledges
// delivery regardless of processing outcome, so the sender never enters a
// retry storm over our internal failures.
type WebhookService struct {
	catalog *CatalogService
	orders  *OrderService
}

func NewWebhookService(catalog *CatalogService, orders *OrderService) *WebhookService {
	return &WebhookService{
		catalog: catalog,
		orders:  orders,
	}
}

// Result is the processing outcome reported back in the acknowledgement body.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func failure(format string, args ...interface{}) *Result {
	return &Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

func success(format string, args ...interface{}) *Result {
	return &Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

type OrderStatusEvent struct {
	OrderID        string `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl"`
	LogisticName   string `json:"logisticName"`
}

// HandleOrderStatus applies a pushed order-status change through the same
// status table as polling.
func (s *WebhookService) HandleOrderStatus(event *OrderStatusEvent) *Result {
	mapping, err := s.orders.FindMapping(event.OrderID, event.OrderNumber)
	if err != nil {
		if errors.Is(err, ErrMappingNotFound) {
			logrus.WithFields(logrus.Fields{
				"remote_order_id":     event.OrderID,
				"remote_order_number": event.OrderNumber,
			}).Warn("Order-status webhook for unmapped order")
			return failure("no local order is mapped to remote order %s", event.OrderID)
		}
		logrus.WithError(err).Error("Order-status webhook lookup failed")
		return failure("order lookup failed")
	}

	status := event.Status
	if status == "" {
		status = mapping.RemoteStatus
	}
	tracking := event.TrackingNumber
	if tracking == "" {
		tracking = mapping.RemoteTrackingNumber
	}

	if _, err := s.orders.ApplyRemoteStatus(mapping, status, tracking); err != nil {
		logrus.WithError(err).Error("Order-status webhook update failed")
		return failure("failed to apply order status")
	}

	return success("order %s updated to %s", mapping.OrderID, status)
}

// InventoryEvent covers both supported inventory shapes: the STOCK batch
// keyed by variant id, and the legacy single-product form.
type InventoryEvent struct {
	Type   string                         `json:"type"`
	Params map[string][]InventoryStockRow `json:"params"`

	// legacy shape
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Stock     *int   `json:"stock"`
}

type InventoryStockRow struct {
	TotalInventoryNum int `json:"totalInventoryNum"`
	StorageNum        int `json:"storageNum"`
}

// HandleInventory dispatches on the event shape and applies stock updates.
func (s *WebhookService) HandleInventory(event *InventoryEvent) *Result {
	if event.Type == "STOCK" && len(event.Params) > 0 {
		return s.handleStockBatch(event.Params)
	}
	return s.handleLegacyInventory(event)
}

func (s *WebhookService) handleStockBatch(params map[string][]InventoryStockRow) *Result {
	updated, failed := 0, 0

	for vid, rows := range params {
		total := 0
		for _, row := range rows {
			if row.TotalInventoryNum > 0 {
				total += row.TotalInventoryNum
			} else {
				total += row.StorageNum
			}
		}

		if _, err := s.catalog.SetVariantStock(vid, total); err != nil {
			logrus.WithError(err).WithField("vid", vid).Warn("Inventory webhook variant update failed")
			failed++
			continue
		}
		updated++
	}

	result := success("inventory updated for %d variants", updated)
	if failed > 0 {
		result = failure("inventory updated for %d variants, %d failed", updated, failed)
	}
	result.Data = map[string]int{"updated": updated, "failed": failed}
	return result
}

func (s *WebhookService) handleLegacyInventory(event *InventoryEvent) *Result {
	if event.Stock == nil {
		return failure("inventory event carries no stock value")
	}

	if event.VariantID != "" {
		if _, err := s.catalog.SetVariantStock(event.VariantID, *event.Stock); err != nil {
			logrus.WithError(err).WithField("vid", event.VariantID).Warn("Legacy inventory webhook failed")
			return failure("variant %s not updated", event.VariantID)
		}
		return success("variant %s stock set to %d", event.VariantID, *event.Stock)
	}

	if event.ProductID == "" {
		return failure("inventory event names neither a product nor a variant")
	}
	if err := s.catalog.SetProductStock(event.ProductID, *event.Stock); err != nil {
		logrus.WithError(err).WithField("pid", event.ProductID).Warn("Legacy inventory webhook failed")
		return failure("product %s not updated", event.ProductID)
	}
	return success("product %s stock set to %d", event.ProductID, *event.Stock)
}

type ProductEvent struct {
	Type        string `json:"type"`
	MessageType string `json:"messageType"`
	Params      struct {
		Pid string `json:"pid"`
		Vid string `json:"vid"`
	} `json:"params"`
}

// HandleProduct acknowledges product/variant metadata pushes. Catalog-field
// updates from this event are an extension point; today the event is only
// recorded.
func (s *WebhookService) HandleProduct(event *ProductEvent) *Result {
	logrus.WithFields(logrus.Fields{
		"type":         event.Type,
		"message_type": event.MessageType,
		"pid":          event.Params.Pid,
		"vid":          event.Params.Vid,
	}).Info("Product webhook received")
	return success("product event acknowledged")
}

// HandleLogistics delegates to the order-status handler when the payload
// identifies an order; otherwise it is acknowledged and recorded only.
func (s *WebhookService) HandleLogistics(payload json.RawMessage) *Result {
	var event OrderStatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		logrus.WithError(err).Warn("Logistics webhook payload did not parse")
		return failure("unparseable logistics payload")
	}

	if event.OrderID == "" && event.OrderNumber == "" {
		logrus.Info("Logistics webhook without order reference acknowledged")
		return success("logistics event acknowledged")
	}
	return s.HandleOrderStatus(&event)
}
