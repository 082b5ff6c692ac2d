package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Identity headers set by the upstream gateway after authentication
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	RoleAdmin = "admin"
)

// requestLogger logs one line per request
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", "X-Requested-With", HeaderUserID, HeaderUserRole},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func userID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderUserID))
}

func isAdmin(c *gin.Context) bool {
	return userID(c) != "" && strings.EqualFold(strings.TrimSpace(c.GetHeader(HeaderUserRole)), RoleAdmin)
}

// requireUser rejects requests without a caller identity
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID(c) == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing user identity")
			return
		}
		c.Next()
	}
}

// requireAdmin rejects callers without the admin role
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID(c) == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing user identity")
			return
		}
		if !isAdmin(c) {
			abort(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

func forbidden(c *gin.Context) {
	abort(c, http.StatusForbidden, "forbidden", "not allowed")
}
