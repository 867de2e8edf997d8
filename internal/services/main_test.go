// internal/services/main_test.go
package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/models"
)

// newTestDB opens a fresh in-memory database per test. The unique DSN keeps
// suites isolated while cache=shared keeps every pooled connection on the same
// database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderMapping{},
		&models.MarketplaceCredential{},
		&models.IntegrationSetting{},
		&models.SyncRun{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func newTestConfig(baseURL string) *config.Config {
	return &config.Config{
		Environment: "test",
		Marketplace: config.MarketplaceConfig{
			BaseURL: baseURL,
			APIKey:  "test-api-key",
		},
	}
}

// writeEnvelope emits the marketplace's response envelope.
func writeEnvelope(w http.ResponseWriter, code int, result bool, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    code,
		"result":  result,
		"data":    data,
		"message": message,
	})
}
