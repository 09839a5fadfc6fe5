package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todo-api/internal/auth"
)

const userIDKey = "userID"

// authMiddleware resolves the request credential to a user id or aborts with 401.
func authMiddleware(tokens *auth.Tokens, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := credential(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "No token, authorization denied"})
			return
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			logger.WithError(err).Debug("rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Token is not valid"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// credential reads x-auth-token, falling back to an Authorization bearer token.
func credential(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("x-auth-token")); token != "" {
		return token
	}
	const prefix = "bearer "
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Info("request")
	}
}
