// internal/models/order.go
package models

import (
	"github.com/google/uuid"
)

// Order is a locally created purchase order. The Remote* fields are a
// denormalized copy of the marketplace linkage kept on the order itself; the
// authoritative link lives in OrderMapping.
type Order struct {
	BaseModel
	OrderNumber   string        `json:"order_number" gorm:"size:64;not null;uniqueIndex"`
	CustomerName  string        `json:"customer_name" gorm:"size:255"`
	CustomerEmail string        `json:"customer_email" gorm:"size:255;index"`
	ShippingInfo  JSONB         `json:"shipping_info" gorm:"type:jsonb"`
	Subtotal      float64       `json:"subtotal" gorm:"type:decimal(10,2);default:0"`
	ShippingFee   float64       `json:"shipping_fee" gorm:"type:decimal(10,2);default:0"`
	Total         float64       `json:"total" gorm:"type:decimal(10,2);default:0"`
	Currency      string        `json:"currency" gorm:"size:8;default:'USD'"`
	Status        OrderStatus   `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(20);default:'unpaid';index"`
	Remark        string        `json:"remark" gorm:"type:text"`

	// Marketplace linkage
	RemoteOrderID        string `json:"remote_order_id" gorm:"size:64;index"`
	RemoteOrderNumber    string `json:"remote_order_number" gorm:"size:64"`
	RemoteStatus         string `json:"remote_status" gorm:"size:64"`
	RemoteTrackingNumber string `json:"remote_tracking_number" gorm:"size:128"`

	// Relationships
	Items   []OrderItem   `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	Mapping *OrderMapping `json:"mapping,omitempty" gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	BaseModel
	OrderID         uuid.UUID  `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID       *uuid.UUID `json:"product_id" gorm:"type:uuid;index"`
	RemoteVariantID string     `json:"remote_variant_id" gorm:"size:64"`
	SKU             string     `json:"sku" gorm:"size:128"`
	Name            string     `json:"name" gorm:"size:512"`
	Quantity        int        `json:"quantity" gorm:"not null"`
	UnitPrice       float64    `json:"unit_price" gorm:"type:decimal(10,2);not null"`
}

// OrderMapping is the 1:1 link between a local order and its marketplace
// order. It is created only after a successful remote create and is never
// recreated for the same local order.
type OrderMapping struct {
	BaseModel
	OrderID              uuid.UUID `json:"order_id" gorm:"type:uuid;not null;uniqueIndex"`
	RemoteOrderID        string    `json:"remote_order_id" gorm:"size:64;not null;uniqueIndex"`
	RemoteOrderNumber    string    `json:"remote_order_number" gorm:"size:64;index"`
	RemoteStatus         string    `json:"remote_status" gorm:"size:64"`
	RemoteTrackingNumber string    `json:"remote_tracking_number" gorm:"size:128"`
	RawResponse          JSONB     `json:"raw_response,omitempty" gorm:"type:jsonb"`

	// Relationships
	Order *Order `json:"order,omitempty" gorm:"foreignKey:OrderID"`
}
