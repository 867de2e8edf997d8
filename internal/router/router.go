// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/handlers"
	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/middleware"
	"github.com/dropmart/storefront-backend/internal/services"
	"github.com/dropmart/storefront-backend/internal/utils"
)

// Initialize wires the service graph and the HTTP routes. The returned
// scheduler is started and stopped by main alongside the HTTP server.
func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, *services.Scheduler) {
	// Initialize services
	client := marketplace.NewClient(cfg.Marketplace.BaseURL)
	tokenService := services.NewTokenService(db, client, cfg)
	catalogService := services.NewCatalogService(db, client, tokenService)
	orderService := services.NewOrderService(db, client, tokenService)
	webhookService := services.NewWebhookService(catalogService, orderService)
	scheduler := services.NewScheduler(db, cfg, tokenService, catalogService, orderService)

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	integrationHandler := handlers.NewIntegrationHandler(db, cfg, client, tokenService)
	productHandler := handlers.NewProductHandler(catalogService, cfg)
	orderHandler := handlers.NewOrderHandler(orderService, cfg)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Marketplace webhook routes: unauthenticated, always acknowledged
	webhooks := r.Group("/webhooks/marketplace")
	webhooks.Use(middleware.WebhookRateLimit())
	{
		webhooks.POST("/order-status", webhookHandler.OrderStatus)
		webhooks.POST("/inventory", webhookHandler.Inventory)
		webhooks.POST("/product", webhookHandler.Product)
		webhooks.POST("/logistics", webhookHandler.Logistics)
	}

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthRequired())
	{
		// Integration admin routes
		integration := v1.Group("/integration")
		integration.Use(middleware.AdminRequired())
		{
			integration.GET("/token-status", integrationHandler.GetTokenStatus)
			integration.PUT("/api-key", integrationHandler.SetAPIKey)
			integration.POST("/refresh-token", integrationHandler.RefreshToken)
			integration.POST("/test-connection", integrationHandler.TestConnection)
			integration.DELETE("/token", integrationHandler.DeleteToken)
			integration.GET("/webhook", integrationHandler.GetWebhookConfig)
			integration.POST("/webhook", integrationHandler.SetWebhookConfig)
			integration.GET("/warehouses", integrationHandler.ListWarehouses)
			integration.GET("/warehouses/:id", integrationHandler.GetWarehouse)
		}

		// Catalog routes
		products := v1.Group("/products")
		{
			products.GET("", productHandler.GetProducts)
			products.GET("/:id", productHandler.GetProduct)
			products.POST("/import", productHandler.ImportProduct)
			products.POST("/:id/sync", productHandler.SyncProduct)
			products.PUT("/:id", productHandler.UpdateProduct)
			products.GET("/:id/stock", productHandler.GetLiveStock)
		}

		// Order routes
		orders := v1.Group("/orders")
		{
			orders.POST("", orderHandler.CreateOrder)
			orders.GET("", orderHandler.GetOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.POST("/:id/fulfill", orderHandler.FulfillOrder)
			orders.POST("/:id/sync-status", orderHandler.SyncOrderStatus)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)
			orders.POST("/:id/mark-paid", orderHandler.MarkPaid)
			orders.POST("/freight", orderHandler.QuoteFreight)
		}
	}

	return r, scheduler
}
