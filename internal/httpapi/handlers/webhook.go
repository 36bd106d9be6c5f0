package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ReceiveWebhook is the push callback registered with providers.
func (h *Handler) ReceiveWebhook(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	receipt, err := h.svc.ReceiveWebhook(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	if !receipt.Accepted {
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "ignored": true})
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"ok":       true,
		"pushedAt": toMillis(receipt.PushedAt),
	})
}
