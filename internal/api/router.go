package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/api/handlers"
	"github.com/lii16com/arkilino/internal/api/middleware"
	"github.com/lii16com/arkilino/internal/config"
	"github.com/lii16com/arkilino/internal/service"
)

const serviceName = "arkilino-sync"

var endpoints = []string{
	"GET /health",
	"GET /products",
	"POST|PUT /products (admin)",
	"GET /orders (admin)",
	"POST /orders",
	"POST|PATCH /orders/:id/status (admin)",
	"GET /chat (admin)",
	"GET /chat?userId= (admin)",
	"POST /chat",
}

// NewRouter wires the sync endpoints. Reads of orders and chat and every
// catalog or status write sit behind the admin guard.
func NewRouter(cfg *config.Config, svc *service.SyncService, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	idempotency := middleware.NewIdempotencyStore(0)
	writeTimeout := cfg.Store.WriteTimeout
	admin := middleware.AdminGuard(cfg.Admin, logger)

	router.Use(
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
		middleware.CORS(cfg.Admin.Header),
		middleware.BodyLimit(cfg.BodyLimitBytes),
	)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "service": serviceName, "endpoints": endpoints})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	router.GET("/products", handlers.HandleListProducts(svc))
	router.GET("/orders", admin, handlers.HandleListOrders(svc))
	router.GET("/chat", admin, handlers.HandleGetChat(svc))

	// Writes accept an Idempotency-Key so clients can retry pushes safely
	writes := router.Group("")
	writes.Use(middleware.IdempotencyMiddleware(idempotency, logger))
	{
		replaceProducts := handlers.HandleReplaceProducts(svc, writeTimeout, logger)
		writes.POST("/products", admin, replaceProducts)
		writes.PUT("/products", admin, replaceProducts)

		writes.POST("/orders", handlers.HandleCreateOrder(svc, writeTimeout, logger))

		setStatus := handlers.HandleSetOrderStatus(svc, writeTimeout, logger)
		writes.POST("/orders/:id/status", admin, setStatus)
		writes.PATCH("/orders/:id/status", admin, setStatus)

		writes.POST("/chat", handlers.HandlePostChat(svc, writeTimeout, logger))
	}

	return router
}
