// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"github.com/instadmio/instadm-appointment-setter/platform/config"
	"github.com/instadmio/instadm-appointment-setter/platform/logger"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the HTTP server settings.
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// WebhookRatePerMinute limits inbound webhook calls per client IP; 0 disables it.
	WebhookRatePerMinute int
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
