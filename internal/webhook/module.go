// Package webhook provides the Instagram DM webhook bounded context module.
// This file defines the module that encapsulates webhook setup and route registration.
package webhook

import (
	apphttp "github.com/instadmio/instadm-appointment-setter/internal/http"

	"github.com/gin-gonic/gin"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the webhook module around a configured service.
func NewModule(service *Service) *Module {
	return &Module{handler: NewHandler(service)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the webhook on /webhook/:tenantId and /api/webhook/:tenantId.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	for _, group := range []*gin.RouterGroup{ctx.Root, ctx.API} {
		wh := group.Group("/webhook/:" + tenantParam)
		wh.GET("", m.handler.HandleStatus)
		wh.POST("",
			ctx.WebhookRateLimiter.RateLimit(),
			TenantContextMiddleware(),
			LimitBodyMiddleware(),
			m.handler.HandleEvent,
		)
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
