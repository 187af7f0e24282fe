package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"certiread/internal/services"
)

type BadgeHandler struct {
	badges     *services.BadgeService
	serverName string
	baseURL    string
}

// GetBadge is called cross-origin by the badge client. Every successful
// call counts one impression, so responses must not be cached.
func (h *BadgeHandler) GetBadge(c echo.Context) error {
	view, err := h.badges.Resolve(c.Request().Context(), c.Param("code"))
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

type verifyPageData struct {
	ServerName string
	BaseURL    string
	Code       string
	View       *services.CertificateDetailView
}

// VerifyPage renders the human-facing certificate page and counts a click.
func (h *BadgeHandler) VerifyPage(c echo.Context) error {
	code := c.Param("code")
	view, err := h.badges.Inspect(c.Request().Context(), code)
	data := verifyPageData{ServerName: h.serverName, BaseURL: h.baseURL, Code: code, View: view}

	var notFound services.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return c.Render(http.StatusNotFound, "not_found.html", data)
	case err != nil:
		return respondError(c, err)
	}
	return c.Render(http.StatusOK, "verify.html", data)
}
