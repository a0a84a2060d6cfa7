package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lii16com/arkilino/internal/config"
)

const AdminContextKey = "admin"

// AdminGuard lets a request through only when the admin header carries the
// configured secret. With no secret configured every request passes.
func AdminGuard(cfg config.AdminConfig, logger *zap.Logger) gin.HandlerFunc {
	header := cfg.Header
	if header == "" {
		header = "x-admin-pin"
	}
	return func(c *gin.Context) {
		if !cfg.Enabled() {
			c.Next()
			return
		}

		pin := c.GetHeader(header)
		if pin == "" || !verifyPIN(cfg, pin) {
			logger.Warn("Rejected admin request",
				zap.String("path", c.Request.URL.Path),
				zap.Bool("header_present", pin != ""))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Set(AdminContextKey, true)
		c.Next()
	}
}

// IsAdmin reports whether AdminGuard accepted the request's secret.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(AdminContextKey)
}

func verifyPIN(cfg config.AdminConfig, pin string) bool {
	if cfg.PINHash != "" {
		return VerifyPIN(pin, cfg.PINHash)
	}
	return subtle.ConstantTimeCompare([]byte(pin), []byte(cfg.PIN)) == 1
}

// HashPIN hashes an admin PIN for ADMIN_PIN_HASH.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPIN verifies a PIN against a bcrypt hash
func VerifyPIN(pin, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	return err == nil
}
