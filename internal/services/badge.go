package services

import (
	"context"
	"time"

	"certiread/internal/metrics"
	"certiread/internal/models"
)

// BadgeView is the redacted certificate served to third-party pages. It
// never carries internal ids, tokens or counters.
type BadgeView struct {
	Valid           bool      `json:"valid"`
	Code            string    `json:"code"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	CreatedAt       time.Time `json:"createdAt"`
	Publisher       string    `json:"publisher"`
	Domain          string    `json:"domain"`
	Author          *string   `json:"author"`
	CreationProcess []string  `json:"creationProcess"`
	HasSourcesCited bool      `json:"hasSourcesCited"`
	HasFactCheck    bool      `json:"hasFactCheck"`
}

// NewBadgeView expects Domain, Publisher and Author preloaded. A certificate
// whose domain was removed is never valid.
func NewBadgeView(c *models.Certificate) *BadgeView {
	v := &BadgeView{
		Valid:           c.Valid() && c.Domain != nil,
		Code:            c.UniqueCode,
		Title:           c.ContentTitle,
		URL:             c.ContentURL,
		CreatedAt:       c.CreatedAt,
		CreationProcess: make([]string, 0, len(c.CreationProcess)),
		HasSourcesCited: c.HasSourcesCited(),
		HasFactCheck:    c.HasFactCheck(),
	}
	if c.Publisher != nil {
		v.Publisher = c.Publisher.DisplayName()
	}
	if c.Domain != nil {
		v.Domain = c.Domain.Name
	}
	if c.Author != nil {
		name := c.Author.Name
		v.Author = &name
	}
	for _, p := range c.CreationProcess {
		v.CreationProcess = append(v.CreationProcess, p.Label())
	}
	return v
}

// LabeledValue is an enum value with its display texts.
type LabeledValue struct {
	Label       string
	Description string
}

// AuthorView is the public part of an author.
type AuthorView struct {
	Name     string
	Bio      string
	ImageURL string
}

// CertificateDetailView feeds the human-facing verify page.
type CertificateDetailView struct {
	Badge       *BadgeView
	Status      models.CertificateStatus
	Description string
	Notes       string
	// AITools is only set when an AI-involving process is declared.
	AITools          string
	Processes        []LabeledValue
	Sources          []string
	FactChecks       []string
	Author           *AuthorView
	DomainVerifiedAt *time.Time
	DomainMethod     string
}

func NewCertificateDetailView(c *models.Certificate) *CertificateDetailView {
	v := &CertificateDetailView{
		Badge:       NewBadgeView(c),
		Status:      c.Status,
		Description: c.ContentDescription,
		Notes:       c.AdditionalNotes,
	}
	if c.InvolvesAI() {
		v.AITools = c.AIToolsUsed
	}
	for _, p := range c.CreationProcess {
		v.Processes = append(v.Processes, LabeledValue{Label: p.Label(), Description: p.Description()})
	}
	for _, s := range c.SourceTypes {
		v.Sources = append(v.Sources, s.Label())
	}
	for _, f := range c.FactCheckType {
		v.FactChecks = append(v.FactChecks, f.Label())
	}
	if c.Author != nil {
		v.Author = &AuthorView{Name: c.Author.Name, Bio: c.Author.Bio, ImageURL: c.Author.ImageURL}
	}
	if d := c.Domain; d != nil {
		v.DomainVerifiedAt = d.VerifiedAt
		if d.VerificationMethod != nil {
			v.DomainMethod = string(*d.VerificationMethod)
		}
	}
	return v
}

// BadgeService resolves public certificate codes for the badge API and the
// verify page. Every successful resolution counts once.
type BadgeService struct {
	certs   *CertificateService
	metrics *metrics.Metrics
}

func NewBadgeService(certs *CertificateService, m *metrics.Metrics) *BadgeService {
	return &BadgeService{certs: certs, metrics: m}
}

// Resolve serves the badge client and counts an impression.
func (s *BadgeService) Resolve(ctx context.Context, code string) (*BadgeView, error) {
	v, err := s.certs.GetPublic(ctx, code)
	s.metrics.ObserveBadgeResolution("badge", err == nil)
	return v, err
}

// Inspect serves the verify page and counts a click.
func (s *BadgeService) Inspect(ctx context.Context, code string) (*CertificateDetailView, error) {
	cert, err := s.certs.lookupAndCount(ctx, code, clicksColumn)
	s.metrics.ObserveBadgeResolution("verify", err == nil)
	if err != nil {
		return nil, err
	}
	return NewCertificateDetailView(cert), nil
}
