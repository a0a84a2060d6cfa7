package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/service"
)

// HandleGetChat handles GET /chat (admin). With ?userId it returns that
// thread, otherwise one summary per thread.
func HandleGetChat(svc *service.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.Query("userId"); userID != "" {
			c.JSON(http.StatusOK, svc.GetThread(c.Request.Context(), userID))
			return
		}
		c.JSON(http.StatusOK, svc.ListThreadSummaries(c.Request.Context()))
	}
}

// HandlePostChat handles POST /chat
func HandlePostChat(svc *service.SyncService, writeTimeout time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindLabel(c, "invalid payload", err)
			return
		}

		ctx, cancel := writeContext(c, writeTimeout)
		defer cancel()
		if err := svc.AppendChat(ctx, req); err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
