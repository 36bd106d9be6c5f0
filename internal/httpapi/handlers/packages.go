package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"packages/internal/service"
)

func (h *Handler) ListPackages(c echo.Context) error {
	q := service.PackageQuery{
		RemoteID: strings.TrimSpace(c.QueryParam("remote")),
		Enabled:  queryBool(c, "enabled"),
		Search:   c.QueryParam("q"),
		Limit:    clampInt(queryInt(c, "limit", 50), 1, 200),
		Offset:   clampInt(queryInt(c, "offset", 0), 0, 1_000_000),
	}
	packages, err := h.svc.ListPackages(c.Request().Context(), q)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"packages": toPackageViews(packages),
		"limit":    q.Limit,
		"offset":   q.Offset,
	})
}

func (h *Handler) GetPackage(c echo.Context) error {
	pkg, err := h.svc.GetPackage(c.Request().Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toPackageView(pkg))
}

func (h *Handler) SetPackageEnabled(c echo.Context) error {
	enabled, err := bindEnabled(c)
	if err != nil {
		return err
	}
	pkg, err := h.svc.SetPackageEnabled(c.Request().Context(), strings.TrimSpace(c.Param("id")), enabled)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, toPackageView(pkg))
}
