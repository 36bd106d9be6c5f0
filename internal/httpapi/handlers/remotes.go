package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func (h *Handler) ListRemotes(c echo.Context) error {
	remotes, err := h.svc.ListRemotes(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	items := make([]remoteView, 0, len(remotes))
	for _, r := range remotes {
		items = append(items, toRemoteView(r))
	}
	return c.JSON(http.StatusOK, map[string]any{"remotes": items})
}

func (h *Handler) GetRemote(c echo.Context) error {
	remote, err := h.svc.GetRemote(c.Request().Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toRemoteView(remote))
}

func (h *Handler) SetRemoteEnabled(c echo.Context) error {
	enabled, err := bindEnabled(c)
	if err != nil {
		return err
	}
	toggle, err := h.svc.SetRemoteEnabled(c.Request().Context(), strings.TrimSpace(c.Param("id")), enabled)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"remote":       toRemoteView(toggle.Remote),
		"hookFailures": toggle.HookFailures,
	})
}

func (h *Handler) SyncRemote(c echo.Context) error {
	res, err := h.svc.SyncRemote(c.Request().Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toSyncResultView(res))
}

func (h *Handler) ListSyncRuns(c echo.Context) error {
	limit := clampInt(queryInt(c, "limit", 20), 1, 100)
	runs, err := h.svc.ListSyncRuns(c.Request().Context(), strings.TrimSpace(c.Param("id")), limit)
	if err != nil {
		return mapServiceError(err)
	}
	items := make([]syncRunView, 0, len(runs))
	for _, r := range runs {
		items = append(items, toSyncRunView(r))
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": items})
}

func (h *Handler) GetSnapshot(c echo.Context) error {
	rc, err := h.svc.OpenSnapshot(c.Request().Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		return mapServiceError(err)
	}
	defer rc.Close()
	return c.Stream(http.StatusOK, echo.MIMEApplicationJSON, rc)
}
