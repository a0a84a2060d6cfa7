package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/domain"
	"github.com/lii16com/arkilino/internal/service"
)

// HandleListProducts handles GET /products
func HandleListProducts(svc *service.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.ListProducts(c.Request.Context()))
	}
}

// HandleReplaceProducts handles POST /products (and PUT). The body must be the
// full catalog as a JSON array.
func HandleReplaceProducts(svc *service.SyncService, writeTimeout time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			respondBindError(c, "invalid product", err)
			return
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected array body"})
			return
		}

		var products []domain.Product
		if err := json.Unmarshal(raw, &products); err != nil {
			respondBindError(c, "invalid product", err)
			return
		}

		ctx, cancel := writeContext(c, writeTimeout)
		defer cancel()
		count, err := svc.ReplaceProducts(ctx, products)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, service.ProductsResponse{OK: true, Count: count})
	}
}
