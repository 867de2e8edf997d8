// internal/handlers/product_test.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
	"github.com/dropmart/storefront-backend/internal/services"
)

// newProductRouter wires a product handler against an unreachable marketplace
// so import attempts fail at the network layer.
func newProductRouter(t *testing.T, environment string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.ProductVariant{},
		&models.MarketplaceCredential{},
		&models.IntegrationSetting{},
	))

	cfg := &config.Config{
		Environment: environment,
		Marketplace: config.MarketplaceConfig{
			BaseURL: "http://127.0.0.1:1",
			APIKey:  "test-api-key",
		},
	}
	client := marketplace.NewClient(cfg.Marketplace.BaseURL)
	tokens := services.NewTokenService(db, client, cfg)
	catalog := services.NewCatalogService(db, client, tokens)
	handler := NewProductHandler(catalog, cfg)

	r := gin.New()
	r.POST("/v1/products/import", handler.ImportProduct)
	return r
}

func importProduct(r *gin.Engine) *httptest.ResponseRecorder {
	body := bytes.NewBufferString(`{"remote_product_id":"P100"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/products/import", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestImportUpstreamFailureHidesDetailInProduction(t *testing.T) {
	w := importProduct(newProductRouter(t, "production"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "marketplace request failed")
	assert.NotContains(t, w.Body.String(), "127.0.0.1")
}

func TestImportUpstreamFailureKeepsDetailInDevelopment(t *testing.T) {
	w := importProduct(newProductRouter(t, "development"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "127.0.0.1")
}
