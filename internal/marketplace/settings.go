// internal/marketplace/settings.go
package marketplace

import (
	"net/url"
	"time"
)

type TokenData struct {
	AccessToken            string `json:"accessToken"`
	AccessTokenExpiryDate  string `json:"accessTokenExpiryDate"`
	RefreshToken           string `json:"refreshToken"`
	RefreshTokenExpiryDate string `json:"refreshTokenExpiryDate"`
}

// AccessExpiry parses the access token expiry timestamp. The marketplace has
// been observed omitting it; a conservative 24h fallback applies then.
func (t *TokenData) AccessExpiry() time.Time {
	if ts, err := time.Parse(time.RFC3339, t.AccessTokenExpiryDate); err == nil {
		return ts
	}
	return time.Now().Add(24 * time.Hour)
}

// GetAccessToken exchanges the API key for a fresh token pair.
func (c *Client) GetAccessToken(apiKey string) (*TokenData, error) {
	var data TokenData
	body := map[string]string{"apiKey": apiKey}
	if err := c.post("/v1/authentication/getAccessToken", "", body, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// RefreshAccessToken exchanges a refresh token for a fresh token pair.
func (c *Client) RefreshAccessToken(refreshToken string) (*TokenData, error) {
	var data TokenData
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.post("/v1/authentication/refreshAccessToken", "", body, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// WebhookSettings is the marketplace-side webhook subscription: per-topic
// switches plus the base callback URL the marketplace pushes to.
type WebhookSettings struct {
	CallbackURL     string `json:"callbackUrl"`
	OrderStatusPush bool   `json:"orderStatusPush"`
	InventoryPush   bool   `json:"inventoryPush"`
	ProductPush     bool   `json:"productPush"`
	LogisticsPush   bool   `json:"logisticsPush"`
}

// GetWebhookSettings reads the current subscription from the marketplace.
func (c *Client) GetWebhookSettings(token string) (*WebhookSettings, error) {
	var settings WebhookSettings
	if err := c.get("/v1/webhook/get", token, nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SetWebhookSettings pushes the subscription to the marketplace.
func (c *Client) SetWebhookSettings(token string, settings *WebhookSettings) error {
	return c.post("/v1/webhook/set", token, settings, nil)
}

type Warehouse struct {
	ID          string `json:"id"`
	NameEn      string `json:"nameEn"`
	CountryCode string `json:"countryCode"`
	Area        string `json:"area"`
}

// ListWarehouses returns the marketplace's global warehouses.
func (c *Client) ListWarehouses(token string) ([]Warehouse, error) {
	var warehouses []Warehouse
	if err := c.get("/v1/warehouse/list", token, nil, &warehouses); err != nil {
		return nil, err
	}
	return warehouses, nil
}

// GetWarehouse returns one warehouse by id.
func (c *Client) GetWarehouse(token, id string) (*Warehouse, error) {
	var warehouse Warehouse
	query := url.Values{"id": {id}}
	if err := c.get("/v1/warehouse/get", token, query, &warehouse); err != nil {
		return nil, err
	}
	return &warehouse, nil
}
