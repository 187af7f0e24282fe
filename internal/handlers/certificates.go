package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"certiread/internal/services"
)

type CertificateHandler struct {
	certs *services.CertificateService
}

func (h *CertificateHandler) ListCertificates(c echo.Context) error {
	certs, err := h.certs.List(c.Request().Context(), currentPublisher(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, certs)
}

func (h *CertificateHandler) CreateCertificate(c echo.Context) error {
	var req services.CertificateInput
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	cert, err := h.certs.Create(c.Request().Context(), currentPublisher(c).ID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, cert)
}

func (h *CertificateHandler) GetCertificate(c echo.Context) error {
	cert, err := h.certs.Get(c.Request().Context(), currentPublisher(c).ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cert)
}

func (h *CertificateHandler) UpdateCertificate(c echo.Context) error {
	var req services.CertificatePatch
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	cert, err := h.certs.Update(c.Request().Context(), currentPublisher(c).ID, c.Param("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cert)
}

func (h *CertificateHandler) DeleteCertificate(c echo.Context) error {
	if err := h.certs.Delete(c.Request().Context(), currentPublisher(c).ID, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
