package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"certiread/internal/services"
)

type AuthorHandler struct {
	authors *services.AuthorService
}

func (h *AuthorHandler) ListAuthors(c echo.Context) error {
	authors, err := h.authors.List(c.Request().Context(), currentPublisher(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, authors)
}

func (h *AuthorHandler) CreateAuthor(c echo.Context) error {
	var req services.AuthorInput
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	author, err := h.authors.Create(c.Request().Context(), currentPublisher(c).ID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, author)
}

func (h *AuthorHandler) UpdateAuthor(c echo.Context) error {
	var req services.AuthorInput
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	author, err := h.authors.Update(c.Request().Context(), currentPublisher(c).ID, c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, author)
}

func (h *AuthorHandler) DeleteAuthor(c echo.Context) error {
	if err := h.authors.Delete(c.Request().Context(), currentPublisher(c).ID, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
