package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"packages/internal/service"
)

func (h *Handler) TriggerSync(c echo.Context) error {
	if h.syncTrigger == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "sync not configured")
	}

	started, err := h.syncTrigger.TriggerSync(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !started {
		return c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"started": false,
			"message": "sync already running",
		})
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"ok":      true,
		"started": true,
	})
}

func (h *Handler) GetSyncStatus(c echo.Context) error {
	if h.syncTrigger == nil {
		return c.JSON(http.StatusOK, map[string]any{
			"configured": false,
			"running":    false,
		})
	}

	status := h.syncTrigger.Status()
	return c.JSON(http.StatusOK, map[string]any{
		"configured": true,
		"running":    status.Running,
		"lastResult": toSummaryView(status.LastResult),
		"lastError":  status.LastError,
	})
}

func (h *Handler) GetSyncConfig(c echo.Context) error {
	cfg, err := h.svc.GetSyncConfig(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) SaveSyncConfig(c echo.Context) error {
	var cfg service.SyncConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := h.svc.SaveSyncConfig(c.Request().Context(), cfg); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, cfg)
}
