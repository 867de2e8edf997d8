// internal/handlers/webhook_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
	"github.com/dropmart/storefront-backend/internal/services"
)

// The webhook boundary contract: every delivery gets HTTP 200, and the body's
// success flag carries the processing outcome.
type WebhookHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

func (s *WebhookHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderMapping{},
		&models.MarketplaceCredential{},
		&models.IntegrationSetting{},
		&models.SyncRun{},
	))
	s.db = db

	cfg := &config.Config{
		Environment: "test",
		Marketplace: config.MarketplaceConfig{BaseURL: "http://127.0.0.1:1"},
	}
	client := marketplace.NewClient(cfg.Marketplace.BaseURL)
	tokens := services.NewTokenService(db, client, cfg)
	catalog := services.NewCatalogService(db, client, tokens)
	orders := services.NewOrderService(db, client, tokens)
	webhooks := services.NewWebhookService(catalog, orders)
	handler := NewWebhookHandler(webhooks)

	s.router = gin.New()
	hooks := s.router.Group("/webhooks/marketplace")
	{
		hooks.POST("/order-status", handler.OrderStatus)
		hooks.POST("/inventory", handler.Inventory)
		hooks.POST("/product", handler.Product)
		hooks.POST("/logistics", handler.Logistics)
	}
}

func (s *WebhookHandlerTestSuite) post(path string, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var response map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func (s *WebhookHandlerTestSuite) TestUnmappedOrderStillGets200() {
	w, response := s.post("/webhooks/marketplace/order-status",
		`{"orderId": "RO-ghost", "status": "Shipped"}`)

	s.Equal(http.StatusOK, w.Code)
	s.Equal(false, response["success"])
}

func (s *WebhookHandlerTestSuite) TestMalformedPayloadStillGets200() {
	w, response := s.post("/webhooks/marketplace/order-status", `{"orderId": 12`)

	s.Equal(http.StatusOK, w.Code)
	s.Equal(false, response["success"])
}

func (s *WebhookHandlerTestSuite) TestOrderStatusUpdatesMappedOrder() {
	order := &models.Order{
		OrderNumber:   "SO-20260824-xyz",
		Status:        models.OrderStatusProcessing,
		PaymentStatus: models.PaymentStatusPaid,
	}
	s.Require().NoError(s.db.Create(order).Error)
	s.Require().NoError(s.db.Create(&models.OrderMapping{
		OrderID:       order.ID,
		RemoteOrderID: "RO-55",
	}).Error)

	w, response := s.post("/webhooks/marketplace/order-status",
		`{"orderId": "RO-55", "status": "Shipped", "trackingNumber": "TN-1"}`)

	s.Equal(http.StatusOK, w.Code)
	s.Equal(true, response["success"])

	var refreshed models.Order
	s.Require().NoError(s.db.First(&refreshed, order.ID).Error)
	s.Equal(models.OrderStatusShipped, refreshed.Status)
	s.Equal("TN-1", refreshed.RemoteTrackingNumber)
}

func (s *WebhookHandlerTestSuite) TestInventoryStockBatch() {
	product := &models.Product{RemoteProductID: "P1", Title: "Socks"}
	s.Require().NoError(s.db.Create(product).Error)
	s.Require().NoError(s.db.Create(&models.ProductVariant{
		ProductID:       product.ID,
		RemoteVariantID: "V1",
	}).Error)

	w, response := s.post("/webhooks/marketplace/inventory",
		`{"type": "STOCK", "params": {"V1": [{"totalInventoryNum": 5}, {"totalInventoryNum": 3}]}}`)

	s.Equal(http.StatusOK, w.Code)
	s.Equal(true, response["success"])

	var refreshed models.Product
	s.Require().NoError(s.db.First(&refreshed, product.ID).Error)
	s.Equal(8, refreshed.Stock)
}

func (s *WebhookHandlerTestSuite) TestProductEventAcknowledged() {
	w, response := s.post("/webhooks/marketplace/product",
		`{"type": "PRODUCT", "messageType": "UPDATE", "params": {"pid": "P1"}}`)

	s.Equal(http.StatusOK, w.Code)
	s.Equal(true, response["success"])
}

func (s *WebhookHandlerTestSuite) TestLogisticsWithoutOrderReference() {
	w, response := s.post("/webhooks/marketplace/logistics", `{"carrier": "DHL"}`)

	s.Equal(http.StatusOK, w.Code)
	s.Equal(true, response["success"])
}

func TestWebhookHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(WebhookHandlerTestSuite))
}
