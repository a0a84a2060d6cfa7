package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/service"
)

// HandleListOrders handles GET /orders (admin), newest first
func HandleListOrders(svc *service.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.ListOrders(c.Request.Context()))
	}
}

// HandleCreateOrder handles POST /orders
func HandleCreateOrder(svc *service.SyncService, writeTimeout time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.OrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, "invalid order", err)
			return
		}

		ctx, cancel := writeContext(c, writeTimeout)
		defer cancel()
		id, err := svc.CreateOrder(ctx, req.ToOrder())
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "id": id})
	}
}

// HandleSetOrderStatus handles POST /orders/:id/status (admin)
func HandleSetOrderStatus(svc *service.SyncService, writeTimeout time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order id required"})
			return
		}

		var req service.StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, "invalid status", err)
			return
		}

		ctx, cancel := writeContext(c, writeTimeout)
		defer cancel()
		if err := svc.UpdateOrderStatus(ctx, id, req.Status); err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "id": id, "status": req.Status})
	}
}
