package webhook

import (
	"context"
	"net/http"

	"github.com/instadmio/instadm-appointment-setter/platform/httpkit"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	tenantParam     = "tenantId"
	tenantIDCtxKey  = "webhookTenantID"
	maxPayloadBytes = 1 << 20
)

// TenantContextMiddleware parses the :tenantId path segment and sets the
// tenant on both the gin context and the request context.
func TenantContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.Param(tenantParam))
		if err != nil {
			httpkit.HandleError(c, invalidPayload(tenantParam))
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), logger.TenantIDKey, tenantID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(tenantIDCtxKey, tenantID)
		c.Next()
	}
}

// LimitBodyMiddleware caps the request body size.
func LimitBodyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes)
		c.Next()
	}
}
