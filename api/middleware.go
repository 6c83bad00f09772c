package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	AccountHeader = "X-Account-ID"
	accountKey    = "account_id"
)

// RequireAccount rejects requests without an X-Account-ID header. Identity is
// asserted by the gateway in front of the service.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := strings.TrimSpace(c.GetHeader(AccountHeader))
		if account == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Message: AccountHeader + " header is required"})
			return
		}
		c.Set(accountKey, account)
		c.Next()
	}
}

func accountID(c *gin.Context) string {
	return c.GetString(accountKey)
}

// RequestLogger logs one line per request.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		if account := accountID(c); account != "" {
			entry = entry.WithField("account_id", account)
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request served")
		case status >= http.StatusBadRequest:
			entry.Warn("request served")
		default:
			entry.Info("request served")
		}
	}
}
