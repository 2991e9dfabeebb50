package router

import (
	"context"
	"net/http"
	"time"

	apphttp "github.com/instadmio/instadm-appointment-setter/internal/http"
	"github.com/instadmio/instadm-appointment-setter/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// New builds the gin engine and mounts every module.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(httpkit.CORS(app.Config))

	api := engine.Group("/api")
	api.GET("/health", healthHandler(app.Health))

	rctx := &apphttp.RouterContext{
		Engine:             engine,
		Root:               &engine.RouterGroup,
		API:                api,
		WebhookRateLimiter: httpkit.NewPerMinuteLimiter(app.WebhookRatePerMinute, app.Logger),
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(rctx)
		app.Logger.Info("module registered", "module", module.Name())
	}

	return engine
}

func healthHandler(health apphttp.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := health.Ping(ctx); err != nil {
			httpkit.Error(c, http.StatusServiceUnavailable, "database unavailable", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
