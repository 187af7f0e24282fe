package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"certiread/internal/models"
	"certiread/internal/services"
	"certiread/internal/web"
)

const publisherKey = "publisher"

// Deps bundles what the HTTP layer needs.
type Deps struct {
	DB           *gorm.DB
	Publishers   *services.PublisherService
	Domains      *services.DomainService
	Certificates *services.CertificateService
	Authors      *services.AuthorService
	Badges       *services.BadgeService
	ServerName   string
	BaseURL      string
}

func RegisterRoutes(e *echo.Echo, d Deps) {
	health := &HealthHandler{db: d.DB}
	e.GET("/healthz", health.Check)

	badges := &BadgeHandler{badges: d.Badges, serverName: d.ServerName, baseURL: d.BaseURL}
	cors := middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet},
	})
	e.GET("/api/badge/:code", badges.GetBadge, cors)
	e.GET("/verify/:code", badges.VerifyPage)
	e.FileFS("/badge.js", "static/badge.js", web.FS, cors)

	publishers := &PublisherHandler{publishers: d.Publishers}
	e.POST("/api/register", publishers.Register)

	auth := middleware.BasicAuth(func(email, password string, c echo.Context) (bool, error) {
		pub, err := d.Publishers.Authenticate(c.Request().Context(), email, password)
		if errors.Is(err, services.ErrUnauthorized) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		c.Set(publisherKey, pub)
		return true, nil
	})

	api := e.Group("/api")
	api.GET("/me", publishers.Me, auth)

	domains := &DomainHandler{domains: d.Domains}
	api.GET("/domains", domains.ListDomains, auth)
	api.POST("/domains", domains.CreateDomain, auth)
	api.POST("/domains/verify", domains.VerifyDomain, auth)
	api.GET("/domains/:id", domains.GetDomain, auth)
	api.DELETE("/domains/:id", domains.DeleteDomain, auth)

	certs := &CertificateHandler{certs: d.Certificates}
	api.GET("/certifications", certs.ListCertificates, auth)
	api.POST("/certifications", certs.CreateCertificate, auth)
	api.GET("/certifications/:id", certs.GetCertificate, auth)
	api.PUT("/certifications/:id", certs.UpdateCertificate, auth)
	api.DELETE("/certifications/:id", certs.DeleteCertificate, auth)

	authors := &AuthorHandler{authors: d.Authors}
	api.GET("/authors", authors.ListAuthors, auth)
	api.POST("/authors", authors.CreateAuthor, auth)
	api.PUT("/authors/:id", authors.UpdateAuthor, auth)
	api.DELETE("/authors/:id", authors.DeleteAuthor, auth)
}

func currentPublisher(c echo.Context) *models.Publisher {
	pub, _ := c.Get(publisherKey).(*models.Publisher)
	return pub
}

func bindJSON(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return services.ValidationError("invalid request body")
	}
	return nil
}

// respondError maps service errors onto HTTP statuses. Unexpected errors are
// logged and answered with a generic message.
func respondError(c echo.Context, err error) error {
	var (
		validation services.ValidationError
		notFound   services.NotFoundError
		conflict   services.ConflictError
		quota      services.QuotaExceededError
	)
	switch {
	case errors.As(err, &validation):
		return jsonError(c, http.StatusBadRequest, validation.Error())
	case errors.Is(err, services.ErrDomainNotVerified):
		return jsonError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		return jsonError(c, http.StatusUnauthorized, err.Error())
	case errors.As(err, &quota):
		return jsonError(c, http.StatusForbidden, quota.Error())
	case errors.As(err, &notFound):
		return jsonError(c, http.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		return jsonError(c, http.StatusConflict, conflict.Error())
	}

	log.WithError(err).WithFields(log.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("request failed")
	return jsonError(c, http.StatusInternalServerError, "internal server error")
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

type HealthHandler struct {
	db *gorm.DB
}

func (h *HealthHandler) Check(c echo.Context) error {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		log.WithError(err).Warn("health check failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
