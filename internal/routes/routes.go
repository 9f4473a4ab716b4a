package routes

import (
	"net/http"

	"github.com/01moynul/inventory-tracker/internal/handlers"
	"github.com/01moynul/inventory-tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware tells the browser that it is safe for the configured
// frontend origin to send data to us.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Strictly allow ONLY the configured frontend
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)

		// 2. Allow standard security credentials
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		// 3. Allow the headers we actually use (specifically "Authorization" for JWT tokens)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")

		// 4. Let the frontend read the export filename
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		// 5. Allow the HTTP methods we use in our API
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		// 6. Handle the "Preflight" OPTIONS request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers, corsOrigin string) *gin.Engine {
	router := gin.Default()

	// --- APPLY THE CORS GUARD ---
	// This must be the very first thing the router uses
	router.Use(CORSMiddleware(corsOrigin))
	router.Use(h.Metrics.Middleware())

	router.GET("/metrics", gin.WrapH(h.Metrics.Handler()))

	v1 := router.Group("/v1")
	{
		// --- Public Routes ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})
		v1.GET("/health", h.Health)
		v1.POST("/login", h.Login)

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware(h.Tokens, h.Sessions, h.Logger))
		{
			auth.POST("/logout", h.Logout)

			// --- Derived lists (registered before /items/:id) ---
			auth.GET("/items/low-stock", h.LowStockItems)
			auth.GET("/items/recent", h.RecentItems)
			auth.GET("/items/recommended", h.RecommendedItems)
			auth.GET("/categories", h.GetCategories)
			auth.GET("/dashboard-stats", h.GetDashboardStats)

			// --- CSV Exchange ---
			auth.GET("/items/export", h.ExportItems)
			auth.POST("/items/import", h.ImportItems)

			// --- Item CRUD ---
			auth.GET("/items", h.ListItems)
			auth.POST("/items", h.CreateItem)
			auth.DELETE("/items", h.DeleteAllItems)
			auth.GET("/items/:id", h.GetItem)
			auth.PUT("/items/:id", h.UpdateItem)
			auth.DELETE("/items/:id", h.DeleteItem)

			// --- SKU-addressed ---
			auth.GET("/items/sku/:sku", h.GetItemBySKU)
			auth.POST("/items/sku/:sku/adjust", h.AdjustQuantity)
		}
	}

	return router
}
