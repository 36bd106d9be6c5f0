package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"packages/internal/auth"
	"packages/internal/httpapi/middlewares"
	"packages/internal/remotesync"
)

func (a *API) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"ok":        true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/webhook/:id", a.handler.ReceiveWebhook,
		middlewares.NewWebhookRateLimit(a.cfg.WebhookRateLimit),
	).Name = remotesync.WebhookRoute

	a.registerInternalRoutes(e)
}

func (a *API) registerInternalRoutes(e *echo.Echo) {
	internal := e.Group("/api/internal")
	internal.Use(a.auth.Middleware)
	internal.Use(middlewares.NewAPIRateLimit(a.auth))

	internal.GET("/remotes", a.handler.ListRemotes)
	internal.GET("/remotes/:id", a.handler.GetRemote)
	internal.GET("/remotes/:id/runs", a.handler.ListSyncRuns)
	internal.GET("/packages", a.handler.ListPackages)
	internal.GET("/packages/:id", a.handler.GetPackage)
	internal.GET("/sync-runs/:id/snapshot", a.handler.GetSnapshot)
	internal.GET("/sync/status", a.handler.GetSyncStatus)
	internal.GET("/sync/config", a.handler.GetSyncConfig)

	admin := internal.Group("", auth.RequireAdmin)
	admin.POST("/remotes/:id/enabled", a.handler.SetRemoteEnabled)
	admin.POST("/remotes/:id/sync", a.handler.SyncRemote)
	admin.POST("/packages/:id/enabled", a.handler.SetPackageEnabled)
	admin.POST("/sync", a.handler.TriggerSync)
	admin.PUT("/sync/config", a.handler.SaveSyncConfig)
}
