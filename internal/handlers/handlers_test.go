package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"

	"certiread/internal/services"
	"certiread/internal/testutil"
	"certiread/internal/web"
)

type txtTable map[string][]string

func (t txtTable) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if recs, ok := t[name]; ok {
		return recs, nil
	}
	return nil, errors.New("no such host")
}

type offlineTransport struct{}

func (offlineTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("network disabled in tests")
}

// =============================================================================
// HTTP API Test Suite
// =============================================================================

type APISuite struct {
	suite.Suite
	e   *echo.Echo
	dns txtTable
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	db := testutil.NewDB(s.T())
	s.dns = txtTable{}
	ch := services.NewChallenger(services.ChallengerConfig{}, s.dns, &http.Client{Transport: offlineTransport{}}, nil)
	certs := services.NewCertificateService(db, nil)

	s.e = echo.New()
	renderer, err := web.NewRenderer(web.FS)
	s.Require().NoError(err)
	s.e.Renderer = renderer

	RegisterRoutes(s.e, Deps{
		DB:           db,
		Publishers:   services.NewPublisherService(db, services.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32, SaltLen: 16}),
		Domains:      services.NewDomainService(db, ch),
		Certificates: certs,
		Authors:      services.NewAuthorService(db),
		Badges:       services.NewBadgeService(certs, nil),
		ServerName:   "Certiread",
		BaseURL:      "https://verify.example",
	})
}

type call struct {
	method string
	path   string
	body   any
	auth   bool
	header map[string]string
}

func (s *APISuite) do(c call) *httptest.ResponseRecorder {
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		s.Require().NoError(err)
		body = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.auth {
		req.SetBasicAuth("owner@example.com", "correct horse")
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *APISuite) decode(rec *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func (s *APISuite) register() {
	rec := s.do(call{method: http.MethodPost, path: "/api/register", body: map[string]string{
		"email":       "owner@example.com",
		"password":    "correct horse",
		"contactName": "Jane",
		"companyName": "Example Media",
	}})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

// verifiedDomain registers news.example and verifies it through DNS.
func (s *APISuite) verifiedDomain() string {
	rec := s.do(call{method: http.MethodPost, path: "/api/domains", auth: true, body: map[string]string{"domain": "news.example"}})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var d struct {
		ID                string `json:"id"`
		VerificationToken string `json:"verificationToken"`
		Instructions      struct {
			TXTValue string `json:"txtValue"`
		} `json:"instructions"`
	}
	s.decode(rec, &d)
	s.dns["news.example"] = []string{d.Instructions.TXTValue}

	rec = s.do(call{method: http.MethodPost, path: "/api/domains/verify", auth: true, body: map[string]string{"domainId": d.ID, "method": "dns"}})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	return d.ID
}

func (s *APISuite) certify(domainID string) string {
	rec := s.do(call{method: http.MethodPost, path: "/api/certifications", auth: true, body: map[string]any{
		"domainId":        domainID,
		"contentUrl":      "https://news.example/story",
		"contentTitle":    "Big <b>Story</b>",
		"creationProcess": []string{"HUMAN_WRITTEN"},
		"authorName":      "Jane Doe",
	}})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var cert struct {
		ID         string `json:"id"`
		UniqueCode string `json:"uniqueCode"`
	}
	s.decode(rec, &cert)
	s.Require().NotEmpty(cert.UniqueCode)
	return cert.ID + " " + cert.UniqueCode
}

// =============================================================================
// Auth Tests
// =============================================================================

func (s *APISuite) TestRegisterAndAuth() {
	s.register()

	s.Run("duplicate registration conflicts", func() {
		rec := s.do(call{method: http.MethodPost, path: "/api/register", body: map[string]string{
			"email": "owner@example.com", "password": "another one", "contactName": "X",
		}})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("registrants cannot pick a plan", func() {
		rec := s.do(call{method: http.MethodPost, path: "/api/register", body: map[string]string{
			"email": "upgrade@example.com", "password": "long enough", "contactName": "X", "plan": "ENTERPRISE",
		}})
		s.Require().Equal(http.StatusCreated, rec.Code)
		s.Contains(rec.Body.String(), `"plan":"FREE"`)
	})

	s.Run("missing credentials", func() {
		rec := s.do(call{method: http.MethodGet, path: "/api/domains"})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("wrong password", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/domains", nil)
		req.SetBasicAuth("owner@example.com", "wrong horse")
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("me", func() {
		rec := s.do(call{method: http.MethodGet, path: "/api/me", auth: true})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"email":"owner@example.com"`)
		s.NotContains(rec.Body.String(), "argon2id")
	})
}

// =============================================================================
// Domain Tests
// =============================================================================

func (s *APISuite) TestDomains() {
	s.register()

	s.Run("invalid domain is a bad request", func() {
		rec := s.do(call{method: http.MethodPost, path: "/api/domains", auth: true, body: map[string]string{"domain": "nope"}})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), `"error"`)
	})

	s.Run("malformed body is a bad request", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/domains", strings.NewReader("{"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.SetBasicAuth("owner@example.com", "correct horse")
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	var id string
	s.Run("register returns instructions", func() {
		rec := s.do(call{method: http.MethodPost, path: "/api/domains", auth: true, body: map[string]string{"domain": "https://News.Example/"}})
		s.Require().Equal(http.StatusCreated, rec.Code)
		var d map[string]any
		s.decode(rec, &d)
		id, _ = d["id"].(string)
		s.Equal("news.example", d["domain"])
		s.Equal("PENDING", d["verificationStatus"])
		s.Contains(d["instructions"], "txtValue")
	})

	s.Run("free plan allows one domain", func() {
		rec := s.do(call{method: http.MethodPost, path: "/api/domains", auth: true, body: map[string]string{"domain": "second.example"}})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("failed verification is a normal response", func() {
		rec := s.do(call{method: http.MethodPost, path: "/api/domains/verify", auth: true, body: map[string]string{"domainId": id, "method": "DNS"}})
		s.Require().Equal(http.StatusOK, rec.Code)
		var out map[string]any
		s.decode(rec, &out)
		s.Equal(false, out["verified"])
		s.Contains(out["message"], "certiread-verify=")
	})

	s.Run("unknown method", func() {
		rec := s.do(call{method: http.MethodPost, path: "/api/domains/verify", auth: true, body: map[string]string{"domainId": id, "method": "EMAIL"}})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown domain", func() {
		rec := s.do(call{method: http.MethodGet, path: "/api/domains/does-not-exist", auth: true})
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("certificate on unverified domain", func() {
		rec := s.do(call{method: http.MethodPost, path: "/api/certifications", auth: true, body: map[string]any{
			"domainId":        id,
			"contentUrl":      "https://news.example/a",
			"creationProcess": []string{"HUMAN_WRITTEN"},
		}})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "verified")
	})

	s.Run("delete", func() {
		rec := s.do(call{method: http.MethodDelete, path: "/api/domains/" + id, auth: true})
		s.Equal(http.StatusNoContent, rec.Code)
	})
}

// =============================================================================
// Certificate and Badge Tests
// =============================================================================

func (s *APISuite) TestCertificateLifecycle() {
	s.register()
	domainID := s.verifiedDomain()
	ids := strings.Fields(s.certify(domainID))
	certID, code := ids[0], ids[1]

	s.Run("badge is public and cross-origin", func() {
		rec := s.do(call{method: http.MethodGet, path: "/api/badge/" + code, header: map[string]string{"Origin": "https://reader.example"}})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		s.Equal("no-store", rec.Header().Get(echo.HeaderCacheControl))

		var view map[string]any
		s.decode(rec, &view)
		s.Equal(true, view["valid"])
		s.Equal(code, view["code"])
		s.Equal("Example Media", view["publisher"])
		s.Equal("news.example", view["domain"])
		s.Equal("Jane Doe", view["author"])
		s.Equal([]any{"Human-written"}, view["creationProcess"])
		s.NotContains(view, "id")
		s.NotContains(view, "badgeImpressions")
	})

	s.Run("unknown badge", func() {
		rec := s.do(call{method: http.MethodGet, path: "/api/badge/UNKNOWN"})
		s.Equal(http.StatusNotFound, rec.Code)
		s.Contains(rec.Body.String(), `"error"`)
	})

	s.Run("verify page shows plain text", func() {
		rec := s.do(call{method: http.MethodGet, path: "/verify/" + code})
		s.Require().Equal(http.StatusOK, rec.Code)
		body := rec.Body.String()
		s.Contains(body, "Verified certificate")
		s.Contains(body, "Big Story")
		s.NotContains(body, "<b>")
		s.Contains(body, "not a cryptographic binding")
		s.Contains(body, "https://verify.example/badge.js")
	})

	s.Run("domain with active certificate cannot be deleted", func() {
		rec := s.do(call{method: http.MethodDelete, path: "/api/domains/" + domainID, auth: true})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("revoke", func() {
		rec := s.do(call{method: http.MethodPut, path: "/api/certifications/" + certID, auth: true, body: map[string]string{"status": "REVOKED"}})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(call{method: http.MethodGet, path: "/api/badge/" + code})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"valid":false`)

		rec = s.do(call{method: http.MethodGet, path: "/verify/" + code})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "revoked")
		s.NotContains(rec.Body.String(), "Embed this badge")
	})

	s.Run("list and get", func() {
		rec := s.do(call{method: http.MethodGet, path: "/api/certifications", auth: true})
		s.Require().Equal(http.StatusOK, rec.Code)
		var list []map[string]any
		s.decode(rec, &list)
		s.Require().Len(list, 1)
		s.EqualValues(2, list[0]["badgeImpressions"])
		s.EqualValues(2, list[0]["badgeClicks"])

		rec = s.do(call{method: http.MethodGet, path: "/api/certifications/" + certID, auth: true})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("authors", func() {
		rec := s.do(call{method: http.MethodGet, path: "/api/authors", auth: true})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"certificateCount":1`)
	})

	s.Run("delete certificate", func() {
		rec := s.do(call{method: http.MethodDelete, path: "/api/certifications/" + certID, auth: true})
		s.Equal(http.StatusNoContent, rec.Code)

		rec = s.do(call{method: http.MethodGet, path: "/verify/" + code})
		s.Equal(http.StatusNotFound, rec.Code)
		s.Contains(rec.Body.String(), "Certificate not found")
	})
}

func (s *APISuite) TestAuthorsCRUD() {
	s.register()

	rec := s.do(call{method: http.MethodPost, path: "/api/authors", auth: true, body: map[string]string{"name": "Jane", "email": "jane@example.com"}})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var a struct {
		ID string `json:"id"`
	}
	s.decode(rec, &a)

	rec = s.do(call{method: http.MethodPost, path: "/api/authors", auth: true, body: map[string]string{"name": "Other", "email": "jane@example.com"}})
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(call{method: http.MethodPut, path: "/api/authors/" + a.ID, auth: true, body: map[string]string{"name": "Jane Doe"}})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Jane Doe")

	rec = s.do(call{method: http.MethodDelete, path: "/api/authors/" + a.ID, auth: true})
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(call{method: http.MethodDelete, path: "/api/authors/" + a.ID, auth: true})
	s.Equal(http.StatusNotFound, rec.Code)
}

// =============================================================================
// Static and Health Tests
// =============================================================================

func (s *APISuite) TestBadgeScriptAndHealth() {
	rec := s.do(call{method: http.MethodGet, path: "/badge.js"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get(echo.HeaderContentType), "javascript")
	s.Contains(rec.Body.String(), "data-certification")
	s.Contains(rec.Body.String(), "Certificate no longer valid")
	s.NotContains(rec.Body.String(), "revoked")

	rec = s.do(call{method: http.MethodGet, path: "/healthz"})
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *APISuite) TestUnexpectedErrorsAreGeneric() {
	c := s.e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	rec := c.Response().Writer.(*httptest.ResponseRecorder)

	s.Require().NoError(respondError(c, errors.New("pq: relation does not exist")))
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.JSONEq(`{"error":"internal server error"}`, rec.Body.String())
}
