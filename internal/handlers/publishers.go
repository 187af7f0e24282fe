package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"certiread/internal/services"
)

type PublisherHandler struct {
	publishers *services.PublisherService
}

func (h *PublisherHandler) Register(c echo.Context) error {
	var req services.PublisherInput
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	pub, err := h.publishers.Register(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, pub)
}

func (h *PublisherHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, currentPublisher(c))
}
