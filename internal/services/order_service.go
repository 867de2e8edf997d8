// internal/services/order_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
	"github.com/dropmart/storefront-backend/internal/utils"
)

// remoteStatusMap translates the marketplace's status vocabulary into the
// local order status enumeration. Unrecognized remote values leave the local
// status unchanged.
var remoteStatusMap = map[string]models.OrderStatus{
	"Pending":    models.OrderStatusPending,
	"Processing": models.OrderStatusProcessing,
	"Shipped":    models.OrderStatusShipped,
	"Delivered":  models.OrderStatusDelivered,
	"Cancelled":  models.OrderStatusCancelled,
}

// OrderService bridges locally created purchase orders to marketplace orders
// and keeps the 1:1 mapping between them current.
type OrderService struct {
	db     *gorm.DB
	client *marketplace.Client
	tokens *TokenService
}

func NewOrderService(db *gorm.DB, client *marketplace.Client, tokens *TokenService) *OrderService {
	return &OrderService{
		db:     db,
		client: client,
		tokens: tokens,
	}
}

type CreateOrderRequest struct {
	CustomerName  string                   `json:"customer_name" validate:"required"`
	CustomerEmail string                   `json:"customer_email" validate:"required,email"`
	ShippingInfo  map[string]interface{}   `json:"shipping_info" validate:"required"`
	Currency      string                   `json:"currency,omitempty"`
	Remark        string                   `json:"remark,omitempty"`
	Items         []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItemRequest struct {
	ProductID       *uuid.UUID `json:"product_id,omitempty"`
	RemoteVariantID string     `json:"remote_variant_id" validate:"required"`
	SKU             string     `json:"sku,omitempty"`
	Name            string     `json:"name,omitempty"`
	Quantity        int        `json:"quantity" validate:"required,min=1"`
	UnitPrice       float64    `json:"unit_price" validate:"required,min=0"`
}

// CreateOrder creates a local purchase order. No marketplace call is made
// here; bridging happens explicitly via CreateAndLink.
func (s *OrderService) CreateOrder(req *CreateOrderRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	order := &models.Order{
		OrderNumber:   generateOrderNumber(),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		ShippingInfo:  models.JSONB(req.ShippingInfo),
		Currency:      currency,
		Remark:        req.Remark,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
	}

	for _, item := range req.Items {
		order.Subtotal += item.UnitPrice * float64(item.Quantity)
		order.Items = append(order.Items, models.OrderItem{
			ProductID:       item.ProductID,
			RemoteVariantID: item.RemoteVariantID,
			SKU:             item.SKU,
			Name:            item.Name,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
		})
	}
	order.Total = order.Subtotal + order.ShippingFee

	if err := s.db.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

func generateOrderNumber() string {
	return fmt.Sprintf("SO-%s-%s", time.Now().Format("20060102"), uuid.NewString()[:8])
}

// CreateAndLink places a marketplace order for a paid local order and records
// the mapping. A second attempt for the same order is rejected before any
// network call.
func (s *OrderService) CreateAndLink(orderID uuid.UUID) (*models.OrderMapping, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}

	var existing models.OrderMapping
	err = s.db.Where("order_id = ?", orderID).First(&existing).Error
	if err == nil {
		return nil, ErrMappingExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if order.PaymentStatus != models.PaymentStatusPaid {
		return nil, ErrOrderNotPaid
	}

	remoteReq := buildRemoteOrder(order)

	var result *marketplace.CreateOrderResult
	var raw json.RawMessage
	err = s.tokens.WithToken(func(token string) error {
		var createErr error
		result, raw, createErr = s.client.CreateOrder(token, remoteReq)
		return createErr
	})
	if err != nil {
		return nil, err
	}

	mapping := &models.OrderMapping{
		OrderID:           orderID,
		RemoteOrderID:     result.OrderID,
		RemoteOrderNumber: result.OrderNumber,
		RemoteStatus:      result.OrderStatus,
	}
	var rawMap models.JSONB
	if json.Unmarshal(raw, &rawMap) == nil {
		mapping.RawResponse = rawMap
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(mapping).Error; err != nil {
			return err
		}
		return tx.Model(order).Updates(map[string]interface{}{
			"remote_order_id":     result.OrderID,
			"remote_order_number": result.OrderNumber,
			"remote_status":       result.OrderStatus,
			"status":              models.OrderStatusProcessing,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store order mapping: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":        orderID,
		"remote_order_id": result.OrderID,
	}).Info("Order bridged to marketplace")

	return mapping, nil
}

// buildRemoteOrder translates local shipping and line-item data into the
// marketplace's order-create shape.
func buildRemoteOrder(order *models.Order) *marketplace.CreateOrderRequest {
	shipping := func(key string) string {
		if v, ok := order.ShippingInfo[key].(string); ok {
			return v
		}
		return ""
	}

	req := &marketplace.CreateOrderRequest{
		OrderNumber:          order.OrderNumber,
		ShippingCustomerName: order.CustomerName,
		ShippingPhone:        shipping("phone"),
		ShippingCountryCode:  shipping("country_code"),
		ShippingProvince:     shipping("province"),
		ShippingCity:         shipping("city"),
		ShippingAddress:      shipping("address"),
		ShippingZip:          shipping("zip"),
		LogisticName:         shipping("logistic_name"),
		Remark:               order.Remark,
	}

	for _, item := range order.Items {
		req.Products = append(req.Products, marketplace.CreateOrderProduct{
			Vid:      item.RemoteVariantID,
			Quantity: item.Quantity,
		})
	}
	return req
}

// PollStatus queries the marketplace for the current status and detail of a
// bridged order and applies them to the mapping and the order record.
func (s *OrderService) PollStatus(orderID uuid.UUID) (*models.OrderMapping, error) {
	var mapping models.OrderMapping
	if err := s.db.Where("order_id = ?", orderID).First(&mapping).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var status string
	var detail *marketplace.RemoteOrder
	err := s.tokens.WithToken(func(token string) error {
		var remoteErr error
		status, remoteErr = s.client.GetOrderStatus(token, mapping.RemoteOrderID)
		if remoteErr != nil {
			return remoteErr
		}
		detail, remoteErr = s.client.GetOrderDetail(token, mapping.RemoteOrderID)
		return remoteErr
	})
	if err != nil {
		return nil, err
	}

	tracking := mapping.RemoteTrackingNumber
	if detail != nil && detail.TrackNumber != "" {
		tracking = detail.TrackNumber
	}

	return s.applyRemoteStatus(&mapping, status, tracking)
}

// ApplyRemoteStatus records a remote status observed via webhook without a
// round-trip call.
func (s *OrderService) ApplyRemoteStatus(mapping *models.OrderMapping, remoteStatus, trackingNumber string) (*models.OrderMapping, error) {
	return s.applyRemoteStatus(mapping, remoteStatus, trackingNumber)
}

func (s *OrderService) applyRemoteStatus(mapping *models.OrderMapping, remoteStatus, trackingNumber string) (*models.OrderMapping, error) {
	if err := s.db.Model(mapping).Updates(map[string]interface{}{
		"remote_status":          remoteStatus,
		"remote_tracking_number": trackingNumber,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update mapping: %w", err)
	}
	mapping.RemoteStatus = remoteStatus
	mapping.RemoteTrackingNumber = trackingNumber

	orderUpdates := map[string]interface{}{
		"remote_status":          remoteStatus,
		"remote_tracking_number": trackingNumber,
	}
	if localStatus, ok := remoteStatusMap[remoteStatus]; ok {
		orderUpdates["status"] = localStatus
	}

	if err := s.db.Model(&models.Order{}).
		Where("id = ?", mapping.OrderID).
		Updates(orderUpdates).Error; err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	return mapping, nil
}

// FindMapping locates a mapping by remote order id, falling back to the
// remote order number.
func (s *OrderService) FindMapping(remoteOrderID, remoteOrderNumber string) (*models.OrderMapping, error) {
	var mapping models.OrderMapping

	if remoteOrderID != "" {
		err := s.db.Where("remote_order_id = ?", remoteOrderID).First(&mapping).Error
		if err == nil {
			return &mapping, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("database error: %w", err)
		}
	}

	if remoteOrderNumber != "" {
		err := s.db.Where("remote_order_number = ?", remoteOrderNumber).First(&mapping).Error
		if err == nil {
			return &mapping, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("database error: %w", err)
		}
	}

	return nil, ErrMappingNotFound
}

// CancelOrder cancels a local order, attempting a best-effort remote
// cancellation first when a mapping exists. A remote failure is logged and
// does not block the local cancellation.
func (s *OrderService) CancelOrder(orderID uuid.UUID, reason string) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusShipped || order.Status == models.OrderStatusDelivered {
		return nil, ErrOrderNotCancellable
	}

	var mapping models.OrderMapping
	if err := s.db.Where("order_id = ?", orderID).First(&mapping).Error; err == nil {
		if err := s.cancelRemote(mapping.RemoteOrderID, reason); err != nil {
			logrus.WithError(err).WithField("remote_order_id", mapping.RemoteOrderID).
				Error("Remote order cancellation failed, cancelling locally anyway")
		}
	}

	if err := s.db.Model(order).Update("status", models.OrderStatusCancelled).Error; err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	order.Status = models.OrderStatusCancelled
	return order, nil
}

func (s *OrderService) cancelRemote(remoteOrderID, reason string) error {
	return s.tokens.WithToken(func(token string) error {
		return s.client.CancelOrder(token, remoteOrderID, reason)
	})
}

// QuoteFreight asks the marketplace for shipping options for a prospective
// order.
func (s *OrderService) QuoteFreight(req *marketplace.FreightRequest) ([]marketplace.FreightOption, error) {
	var options []marketplace.FreightOption
	err := s.tokens.WithToken(func(token string) error {
		var quoteErr error
		options, quoteErr = s.client.FreightCalculate(token, req)
		return quoteErr
	})
	if err != nil {
		return nil, err
	}
	return options, nil
}

func (s *OrderService) GetOrder(id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Items").Preload("Mapping").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("order not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &order, nil
}

type OrderSearchParams struct {
	utils.PaginationParams
	Status        *models.OrderStatus
	PaymentStatus *models.PaymentStatus
}

func (s *OrderService) ListOrders(params OrderSearchParams) ([]models.Order, int64, error) {
	query := s.db.Model(&models.Order{}).Preload("Items")

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *params.PaymentStatus)
	}
	if params.Search != "" {
		searchTerm := "%" + params.Search + "%"
		query = query.Where("order_number LIKE ? OR customer_email LIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "total", "status"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}

	return orders, total, nil
}

// PollableBatch returns up to limit bridged orders still in non-terminal
// states, in creation order, for the scheduled status poll.
func (s *OrderService) PollableBatch(limit int) ([]models.OrderMapping, error) {
	var mappings []models.OrderMapping
	err := s.db.
		Joins("JOIN orders ON orders.id = order_mappings.order_id").
		Where("orders.status NOT IN ?", []models.OrderStatus{
			models.OrderStatusDelivered, models.OrderStatusCancelled,
		}).
		Order("order_mappings.created_at ASC").
		Limit(limit).
		Find(&mappings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pollable orders: %w", err)
	}
	return mappings, nil
}

// MarkPaid flips the payment status; bridging requires a paid order.
func (s *OrderService) MarkPaid(orderID uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(order).Update("payment_status", models.PaymentStatusPaid).Error; err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	order.PaymentStatus = models.PaymentStatusPaid
	return order, nil
}
