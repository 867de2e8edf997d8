// internal/marketplace/orders.go
package marketplace

import (
	"encoding/json"
	"net/http"
	"net/url"
)

type CreateOrderRequest struct {
	OrderNumber          string               `json:"orderNumber"`
	ShippingCustomerName string               `json:"shippingCustomerName"`
	ShippingPhone        string               `json:"shippingPhone"`
	ShippingCountryCode  string               `json:"shippingCountryCode"`
	ShippingProvince     string               `json:"shippingProvince"`
	ShippingCity         string               `json:"shippingCity"`
	ShippingAddress      string               `json:"shippingAddress"`
	ShippingZip          string               `json:"shippingZip"`
	LogisticName         string               `json:"logisticName,omitempty"`
	FromCountryCode      string               `json:"fromCountryCode,omitempty"`
	Remark               string               `json:"remark,omitempty"`
	Products             []CreateOrderProduct `json:"products"`
}

type CreateOrderProduct struct {
	Vid      string `json:"vid"`
	Quantity int    `json:"quantity"`
}

type CreateOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNum"`
	OrderStatus string `json:"orderStatus"`
}

// CreateOrder places a marketplace order. The raw envelope data is returned
// alongside the parsed result so callers can persist the full response.
func (c *Client) CreateOrder(token string, req *CreateOrderRequest) (*CreateOrderResult, json.RawMessage, error) {
	data, err := c.Do(http.MethodPost, "/v1/shopping/order/createOrder", token, req)
	if err != nil {
		return nil, nil, err
	}

	var result CreateOrderResult
	if err := decodeData(data, &result); err != nil {
		return nil, nil, err
	}
	return &result, data, nil
}

// CancelOrder requests cancellation of a marketplace order.
func (c *Client) CancelOrder(token, remoteOrderID, reason string) error {
	body := map[string]string{
		"orderId": remoteOrderID,
		"remark":  reason,
	}
	return c.post("/v1/shopping/order/cancelOrder", token, body, nil)
}

// GetOrderStatus returns the marketplace's status string for one order.
func (c *Client) GetOrderStatus(token, remoteOrderID string) (string, error) {
	var status string
	query := url.Values{"orderId": {remoteOrderID}}
	if err := c.get("/v1/shopping/order/getOrderStatus", token, query, &status); err != nil {
		return "", err
	}
	return status, nil
}

type RemoteOrder struct {
	OrderID       string  `json:"orderId"`
	OrderNumber   string  `json:"orderNum"`
	OrderStatus   string  `json:"orderStatus"`
	TrackNumber   string  `json:"trackNumber"`
	LogisticName  string  `json:"logisticName"`
	OrderAmount   float64 `json:"orderAmount"`
	PostageAmount float64 `json:"postageAmount"`
}

// GetOrderDetail returns the full marketplace order record.
func (c *Client) GetOrderDetail(token, remoteOrderID string) (*RemoteOrder, error) {
	var order RemoteOrder
	query := url.Values{"orderId": {remoteOrderID}}
	if err := c.get("/v1/shopping/order/getOrderDetail", token, query, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

type FreightRequest struct {
	StartCountryCode string               `json:"startCountryCode"`
	EndCountryCode   string               `json:"endCountryCode"`
	Zip              string               `json:"zip,omitempty"`
	Products         []CreateOrderProduct `json:"products"`
}

type FreightOption struct {
	LogisticName  string  `json:"logisticName"`
	LogisticPrice float64 `json:"logisticPrice"`
	LogisticAging string  `json:"logisticAging"`
}

// FreightCalculate quotes shipping options for a prospective order.
func (c *Client) FreightCalculate(token string, req *FreightRequest) ([]FreightOption, error) {
	var options []FreightOption
	if err := c.post("/v1/logistic/freightCalculate", token, req, &options); err != nil {
		return nil, err
	}
	return options, nil
}
