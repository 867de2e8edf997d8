// internal/marketplace/products.go
package marketplace

import (
	"net/url"
)

// RemoteProduct is the marketplace's product-detail payload. ProductName is
// frequently a JSON-array string of localized names; ProductNameEn carries the
// plain English name when present.
type RemoteProduct struct {
	Pid              string          `json:"pid"`
	ProductName      string          `json:"productName"`
	ProductNameEn    string          `json:"productNameEn"`
	EntryNameEn      string          `json:"entryNameEn"`
	Description      string          `json:"description"`
	ProductImage     string          `json:"productImage"`
	ProductImageSet  []string        `json:"productImageSet"`
	CategoryName     string          `json:"categoryName"`
	SellPrice        Price           `json:"sellPrice"`
	SuggestSellPrice Price           `json:"suggestSellPrice"`
	CompareAtPrice   Price           `json:"compareAtPrice"`
	Currency         string          `json:"currency"`
	ProductWeight    float64         `json:"productWeight"`
	Variants         []RemoteVariant `json:"variants"`
}

type RemoteVariant struct {
	Vid                     string            `json:"vid"`
	VariantName             string            `json:"variantName"`
	VariantNameEn           string            `json:"variantNameEn"`
	VariantSku              string            `json:"variantSku"`
	VariantImage            string            `json:"variantImage"`
	VariantSellPrice        float64           `json:"variantSellPrice"`
	VariantSuggestSellPrice float64           `json:"variantSuggestSellPrice"`
	InventoryNum            int               `json:"inventoryNum"`
	Inventories             []RemoteInventory `json:"inventories"`
}

// RemoteInventory is one per-warehouse stock entry. TotalInventoryNum is the
// current field; StorageNum is its deprecated predecessor and is only read
// when TotalInventoryNum is absent.
type RemoteInventory struct {
	AreaEn            string `json:"areaEn"`
	CountryCode       string `json:"countryCode"`
	TotalInventoryNum int    `json:"totalInventoryNum"`
	StorageNum        int    `json:"storageNum"`
}

// QueryProduct fetches the full product detail for one remote product id.
func (c *Client) QueryProduct(token, pid string) (*RemoteProduct, error) {
	var product RemoteProduct
	query := url.Values{"pid": {pid}}
	if err := c.get("/v1/product/query", token, query, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// QueryStockByVid returns the per-warehouse stock entries for one variant.
func (c *Client) QueryStockByVid(token, vid string) ([]RemoteInventory, error) {
	var entries []RemoteInventory
	query := url.Values{"vid": {vid}}
	if err := c.get("/v1/product/stock/queryByVid", token, query, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// QueryStockBySku returns the per-warehouse stock entries for one SKU.
func (c *Client) QueryStockBySku(token, sku string) ([]RemoteInventory, error) {
	var entries []RemoteInventory
	query := url.Values{"sku": {sku}}
	if err := c.get("/v1/product/stock/queryBySku", token, query, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// VariantStock pairs a variant with its warehouse entries in product-level
// stock responses.
type VariantStock struct {
	Vid         string            `json:"vid"`
	Inventories []RemoteInventory `json:"inventories"`
}

// QueryStockByPid returns stock entries for every variant of a product.
func (c *Client) QueryStockByPid(token, pid string) ([]VariantStock, error) {
	var entries []VariantStock
	query := url.Values{"pid": {pid}}
	if err := c.get("/v1/product/stock/queryByPid", token, query, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
