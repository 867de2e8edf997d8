// internal/models/product.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the locally cached copy of one marketplace product, keyed by the
// remote product id. Price, category, pricing strategy and the in-store flag
// are store-local overrides that a routine resync must not clobber.
type Product struct {
	BaseModel
	RemoteProductID string     `json:"remote_product_id" gorm:"size:64;not null;uniqueIndex"`
	Title           string     `json:"title" gorm:"size:512;not null"`
	Description     string     `json:"description" gorm:"type:text"`
	Images          StringList `json:"images" gorm:"type:text"`
	CategoryID      *uuid.UUID `json:"category_id" gorm:"type:uuid;index"`

	Price           float64         `json:"price" gorm:"type:decimal(10,2);default:0"`
	CostPrice       float64         `json:"cost_price" gorm:"type:decimal(10,2);default:0"`
	SuggestedPrice  float64         `json:"suggested_price" gorm:"type:decimal(10,2);default:0"`
	CompareAtPrice  float64         `json:"compare_at_price" gorm:"type:decimal(10,2);default:0"`
	Currency        string          `json:"currency" gorm:"size:8;default:'USD'"`
	Stock           int             `json:"stock" gorm:"default:0"`
	PricingStrategy PricingStrategy `json:"pricing_strategy" gorm:"type:varchar(20);default:'custom'"`
	MarkupValue     float64         `json:"markup_value" gorm:"type:decimal(10,2);default:0"`

	IsInStore   bool `json:"is_in_store" gorm:"default:false;index"`
	IsAvailable bool `json:"is_available" gorm:"default:true"`

	RawRemoteData JSONB      `json:"raw_remote_data,omitempty" gorm:"type:jsonb"`
	LastSyncedAt  *time.Time `json:"last_synced_at"`

	// Relationships
	Category *Category        `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Variants []ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID"`
}

// ProductVariant mirrors one sellable variant of a marketplace product.
type ProductVariant struct {
	BaseModel
	ProductID       uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	RemoteVariantID string    `json:"remote_variant_id" gorm:"size:64;not null;uniqueIndex"`
	Name            string    `json:"name" gorm:"size:512"`
	SKU             string    `json:"sku" gorm:"size:128;index"`
	Image           string    `json:"image" gorm:"size:1024"`
	Price           float64   `json:"price" gorm:"type:decimal(10,2);default:0"`
	CostPrice       float64   `json:"cost_price" gorm:"type:decimal(10,2);default:0"`
	SuggestedPrice  float64   `json:"suggested_price" gorm:"type:decimal(10,2);default:0"`
	Stock           int       `json:"stock" gorm:"default:0"`
}

type Category struct {
	BaseModel
	Name     string     `json:"name" gorm:"size:255;not null"`
	Slug     string     `json:"slug" gorm:"size:255;index"`
	ParentID *uuid.UUID `json:"parent_id" gorm:"type:uuid;index"`

	// Relationships
	Parent   *Category  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children []Category `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}
