package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"certiread/internal/models"
	"certiread/internal/services"
)

type DomainHandler struct {
	domains *services.DomainService
}

type domainResponse struct {
	*models.Domain
	Instructions services.Instructions `json:"instructions"`
}

func (h *DomainHandler) withInstructions(d *models.Domain) domainResponse {
	return domainResponse{Domain: d, Instructions: h.domains.Instructions(d)}
}

func (h *DomainHandler) ListDomains(c echo.Context) error {
	domains, err := h.domains.List(c.Request().Context(), currentPublisher(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]domainResponse, 0, len(domains))
	for i := range domains {
		out = append(out, h.withInstructions(&domains[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DomainHandler) CreateDomain(c echo.Context) error {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	d, err := h.domains.Register(c.Request().Context(), currentPublisher(c).ID, req.Domain)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, h.withInstructions(d))
}

func (h *DomainHandler) GetDomain(c echo.Context) error {
	d, err := h.domains.Get(c.Request().Context(), currentPublisher(c).ID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.withInstructions(d))
}

func (h *DomainHandler) DeleteDomain(c echo.Context) error {
	if err := h.domains.Remove(c.Request().Context(), currentPublisher(c).ID, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// VerifyDomain answers 200 for both outcomes; "verified" tells them apart.
func (h *DomainHandler) VerifyDomain(c echo.Context) error {
	var req struct {
		DomainID string `json:"domainId"`
		Method   string `json:"method"`
	}
	if err := bindJSON(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.DomainID == "" {
		return respondError(c, services.ValidationError("domainId is required"))
	}
	res, err := h.domains.Verify(c.Request().Context(), currentPublisher(c).ID, req.DomainID,
		strings.ToUpper(strings.TrimSpace(req.Method)))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"verified": res.Outcome.Verified,
		"message":  res.Outcome.Message,
		"method":   res.Outcome.Method,
		"domain":   h.withInstructions(res.Domain),
	})
}
