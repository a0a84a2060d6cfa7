package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/service"
	"github.com/lii16com/arkilino/pkg/errors"
)

const (
	defaultWriteTimeout = 10 * time.Second
	// nginx's code for a client that closed the connection before the answer
	statusClientClosedRequest = 499
)

// writeContext bounds how long a handler waits for its queued mutation.
func writeContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// isTooLarge reports whether err came from the request body limit.
func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return stderrors.As(err, &maxErr)
}

// respondBindError answers a body that could not be decoded or bound.
func respondBindError(c *gin.Context, label string, err error) {
	if isTooLarge(err) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": label, "details": err.Error()})
}

// respondBindLabel is respondBindError without the decoder details.
func respondBindLabel(c *gin.Context, label string, err error) {
	if isTooLarge(err) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": label})
}

// respondError maps service errors onto status codes.
func respondError(c *gin.Context, err error, logger *zap.Logger) {
	var (
		validationErr *errors.ErrValidation
		conflictErr   *errors.ErrConflict
		notFoundErr   *errors.ErrNotFound
		storageErr    *errors.ErrStorage
	)
	switch {
	case stderrors.As(err, &validationErr):
		body := gin.H{"error": validationErr.Error()}
		if validationErr.HasFields() {
			body["details"] = validationErr.Fields
		}
		c.JSON(http.StatusBadRequest, body)
	case stderrors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error()})
	case stderrors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Resource + " not found"})
	case stderrors.As(err, &storageErr) && storageErr.Op == "load":
		logger.Error("Store unavailable, write skipped", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	case stderrors.As(err, &storageErr):
		logger.Error("Write not persisted", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist"})
	case stderrors.Is(err, context.DeadlineExceeded):
		logger.Warn("Write still queued at deadline", zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "write timed out"})
	case stderrors.Is(err, context.Canceled):
		// client went away; the queued mutation still runs
		logger.Debug("Client gone before write acknowledged", zap.String("path", c.Request.URL.Path))
		c.AbortWithStatus(statusClientClosedRequest)
	case stderrors.Is(err, service.ErrWriterClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
	default:
		logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
