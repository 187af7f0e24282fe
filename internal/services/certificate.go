package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"certiread/internal/metrics"
	"certiread/internal/models"
)

const (
	impressionsColumn = "badge_impressions"
	clicksColumn      = "badge_clicks"

	codeAttempts = 5
)

// CertificateService is the certificate registry.
type CertificateService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCertificateService(db *gorm.DB, m *metrics.Metrics) *CertificateService {
	return &CertificateService{db: db, metrics: m, now: time.Now}
}

// CertificateInput is the payload for issuing a certificate. AuthorID takes
// precedence over AuthorName.
type CertificateInput struct {
	DomainID           string   `json:"domainId"`
	ContentURL         string   `json:"contentUrl"`
	ContentTitle       string   `json:"contentTitle"`
	ContentDescription string   `json:"contentDescription"`
	CreationProcess    []string `json:"creationProcess"`
	AIToolsUsed        string   `json:"aiToolsUsed"`
	SourceTypes        []string `json:"sourceTypes"`
	FactCheckType      []string `json:"factCheckType"`
	AdditionalNotes    string   `json:"additionalNotes"`
	AuthorID           string   `json:"authorId"`
	AuthorName         string   `json:"authorName"`
}

// CertificatePatch changes only the fields that are set. An empty AuthorName
// removes the author.
type CertificatePatch struct {
	ContentURL         *string   `json:"contentUrl"`
	ContentTitle       *string   `json:"contentTitle"`
	ContentDescription *string   `json:"contentDescription"`
	CreationProcess    *[]string `json:"creationProcess"`
	AIToolsUsed        *string   `json:"aiToolsUsed"`
	SourceTypes        *[]string `json:"sourceTypes"`
	FactCheckType      *[]string `json:"factCheckType"`
	AdditionalNotes    *string   `json:"additionalNotes"`
	AuthorID           *string   `json:"authorId"`
	AuthorName         *string   `json:"authorName"`
	Status             *string   `json:"status"`
}

type declaration struct {
	processes  datatypes.JSONSlice[models.CreationProcess]
	sources    datatypes.JSONSlice[models.SourceType]
	factChecks datatypes.JSONSlice[models.FactCheckType]
}

func parseDeclaration(processes, sources, factChecks []string) (declaration, error) {
	var d declaration
	p, err := parseSet(processes, models.ParseCreationProcess)
	if err != nil {
		return d, err
	}
	if len(p) == 0 {
		return d, ValidationError("at least one creation process is required")
	}
	s, err := parseSet(sources, models.ParseSourceType)
	if err != nil {
		return d, err
	}
	f, err := parseSet(factChecks, models.ParseFactCheckType)
	if err != nil {
		return d, err
	}
	d.processes, d.sources, d.factChecks = p, s, f
	return d, nil
}

// parseSet parses raw tags into a duplicate-free slice in input order.
func parseSet[T comparable](raw []string, parse func(string) (T, error)) ([]T, error) {
	out := make([]T, 0, len(raw))
	seen := make(map[T]bool, len(raw))
	for _, r := range raw {
		v, err := parse(strings.TrimSpace(r))
		if err != nil {
			return nil, ValidationError(err.Error())
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// Create issues a certificate for content on one of the publisher's
// verified domains. The declaration is validated before storage is touched.
// The domain's status is checked here only; later changes to it do not
// affect the certificate.
func (s *CertificateService) Create(ctx context.Context, publisherID string, in CertificateInput) (*models.Certificate, error) {
	decl, err := parseDeclaration(in.CreationProcess, in.SourceTypes, in.FactCheckType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.DomainID) == "" {
		return nil, ValidationError("domain is required")
	}

	var cert *models.Certificate
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pub, err := loadPublisher(tx, publisherID)
		if err != nil {
			return err
		}
		domain, err := findOwnedDomain(tx, pub.ID, in.DomainID)
		if err != nil {
			return err
		}
		if !domain.Verified() {
			return ErrDomainNotVerified
		}
		if err := checkContentURL(in.ContentURL, domain.Name); err != nil {
			return err
		}
		if err := s.checkMonthlyQuota(tx, pub); err != nil {
			return err
		}
		authorID, err := resolveAuthor(tx, pub.ID, in.AuthorID, in.AuthorName)
		if err != nil {
			return err
		}

		cert = &models.Certificate{
			PublisherID:        pub.ID,
			DomainID:           &domain.ID,
			AuthorID:           authorID,
			ContentURL:         strings.TrimSpace(in.ContentURL),
			ContentTitle:       cleanText(in.ContentTitle),
			ContentDescription: cleanText(in.ContentDescription),
			AdditionalNotes:    cleanText(in.AdditionalNotes),
			AIToolsUsed:        cleanText(in.AIToolsUsed),
			CreationProcess:    decl.processes,
			SourceTypes:        decl.sources,
			FactCheckType:      decl.factChecks,
			Status:             models.CertificateActive,
			CreatedAt:          s.now().UTC(),
		}
		return insertWithCode(tx, cert)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCertificatesCreated()
	log.WithFields(log.Fields{
		"publisher": publisherID,
		"code":      cert.UniqueCode,
	}).Info("certificate issued")
	return s.Get(ctx, publisherID, cert.ID)
}

// checkMonthlyQuota counts certificates created since the first of the
// current UTC month. Concurrent creations may overshoot the limit slightly.
func (s *CertificateService) checkMonthlyQuota(tx *gorm.DB, pub *models.Publisher) error {
	limit := pub.Plan.Limits().CertificatesPerMonth
	if limit == models.Unlimited {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Certificate{}).
		Where("publisher_id = ? AND created_at >= ?", pub.ID, models.MonthStart(s.now())).
		Count(&n).Error; err != nil {
		return errors.Wrap(err, "count certificates this month")
	}
	if n >= int64(limit) {
		return QuotaExceededError(fmt.Sprintf("monthly limit reached (%d certificates)", limit))
	}
	return nil
}

// insertWithCode stores cert under a fresh public code, drawing a new code
// if the unique index reports a collision.
func insertWithCode(tx *gorm.DB, cert *models.Certificate) error {
	for i := 0; i < codeAttempts; i++ {
		code, err := newUniqueCode()
		if err != nil {
			return err
		}
		cert.UniqueCode = code

		if err := tx.SavePoint("certificate_code").Error; err != nil {
			return errors.Wrap(err, "create savepoint")
		}
		err = tx.Create(cert).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Wrap(err, "create certificate")
		}
		if err := tx.RollbackTo("certificate_code").Error; err != nil {
			return errors.Wrap(err, "rollback to savepoint")
		}
	}
	return errors.Errorf("no unique certificate code after %d attempts", codeAttempts)
}

// Update applies patch to one of the publisher's certificates. A new URL is
// checked against the bound domain again. REVOKED is terminal, and a
// certificate detached from its domain cannot become ACTIVE.
func (s *CertificateService) Update(ctx context.Context, publisherID, id string, patch CertificatePatch) (*models.Certificate, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cert, err := findOwnedCertificate(tx, publisherID, id)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if patch.ContentURL != nil {
			if cert.Domain == nil {
				return ValidationError("certificate is no longer bound to a domain")
			}
			if err := checkContentURL(*patch.ContentURL, cert.Domain.Name); err != nil {
				return err
			}
			updates["content_url"] = strings.TrimSpace(*patch.ContentURL)
		}
		setText(updates, "content_title", patch.ContentTitle)
		setText(updates, "content_description", patch.ContentDescription)
		setText(updates, "ai_tools_used", patch.AIToolsUsed)
		setText(updates, "additional_notes", patch.AdditionalNotes)

		if patch.CreationProcess != nil {
			p, err := parseSet(*patch.CreationProcess, models.ParseCreationProcess)
			if err != nil {
				return err
			}
			if len(p) == 0 {
				return ValidationError("at least one creation process is required")
			}
			updates["creation_process"] = datatypes.JSONSlice[models.CreationProcess](p)
		}
		if patch.SourceTypes != nil {
			st, err := parseSet(*patch.SourceTypes, models.ParseSourceType)
			if err != nil {
				return err
			}
			updates["source_types"] = datatypes.JSONSlice[models.SourceType](st)
		}
		if patch.FactCheckType != nil {
			fc, err := parseSet(*patch.FactCheckType, models.ParseFactCheckType)
			if err != nil {
				return err
			}
			updates["fact_check_type"] = datatypes.JSONSlice[models.FactCheckType](fc)
		}

		if patch.Status != nil {
			status, err := models.ParseCertificateStatus(strings.TrimSpace(*patch.Status))
			if err != nil {
				return ValidationError(err.Error())
			}
			if cert.Status == models.CertificateRevoked && status != models.CertificateRevoked {
				return ValidationError("a revoked certificate cannot be reactivated")
			}
			if status == models.CertificateActive && cert.DomainID == nil {
				return ValidationError("certificate is no longer bound to a domain")
			}
			updates["status"] = status
		}

		if patch.AuthorID != nil || patch.AuthorName != nil {
			authorID, err := resolveAuthor(tx, publisherID, deref(patch.AuthorID), deref(patch.AuthorName))
			if err != nil {
				return err
			}
			if authorID == nil {
				updates["author_id"] = gorm.Expr("NULL")
			} else {
				updates["author_id"] = *authorID
			}
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Certificate{}).Where("id = ?", cert.ID).Updates(updates).Error; err != nil {
			return errors.Wrap(err, "update certificate")
		}
		if status, ok := updates["status"]; ok && status != cert.Status {
			log.WithFields(log.Fields{
				"code": cert.UniqueCode,
				"from": cert.Status,
				"to":   status,
			}).Info("certificate status changed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, publisherID, id)
}

func setText(updates map[string]any, column string, v *string) {
	if v != nil {
		updates[column] = cleanText(*v)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Delete removes a certificate permanently.
func (s *CertificateService) Delete(ctx context.Context, publisherID, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND publisher_id = ?", id, publisherID).
		Delete(&models.Certificate{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete certificate")
	}
	if res.RowsAffected == 0 {
		return NotFoundError("certificate not found")
	}
	return nil
}

// Get returns the full certificate for its owner.
func (s *CertificateService) Get(ctx context.Context, publisherID, id string) (*models.Certificate, error) {
	return findOwnedCertificate(s.db.WithContext(ctx), publisherID, id)
}

// List returns the publisher's certificates, newest first.
func (s *CertificateService) List(ctx context.Context, publisherID string) ([]models.Certificate, error) {
	var certs []models.Certificate
	err := s.db.WithContext(ctx).
		Preload("Domain").
		Preload("Author").
		Where("publisher_id = ?", publisherID).
		Order("created_at desc").
		Find(&certs).Error
	return certs, errors.Wrap(err, "list certificates")
}

// GetPublic resolves a certificate by its public code, counts one badge
// impression and returns the redacted view.
func (s *CertificateService) GetPublic(ctx context.Context, code string) (*BadgeView, error) {
	cert, err := s.lookupAndCount(ctx, code, impressionsColumn)
	if err != nil {
		return nil, err
	}
	return NewBadgeView(cert), nil
}

// lookupAndCount loads the certificate for code and increments column in
// the same transaction. The increment is a single "col = col + 1" statement
// so concurrent lookups never lose counts. Unknown codes count nothing.
func (s *CertificateService) lookupAndCount(ctx context.Context, code, column string) (*models.Certificate, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, NotFoundError("certificate not found")
	}

	var cert models.Certificate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Domain").
			Preload("Author").
			Preload("Publisher").
			Where("unique_code = ?", code).
			First(&cert).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError("certificate not found")
		}
		if err != nil {
			return errors.Wrap(err, "load certificate")
		}
		err = tx.Model(&models.Certificate{}).
			Where("id = ?", cert.ID).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
		return errors.Wrapf(err, "increment %s", column)
	})
	if err != nil {
		return nil, err
	}

	switch column {
	case impressionsColumn:
		cert.BadgeImpressions++
	case clicksColumn:
		cert.BadgeClicks++
	}
	return &cert, nil
}

func findOwnedCertificate(tx *gorm.DB, publisherID, id string) (*models.Certificate, error) {
	var cert models.Certificate
	err := tx.Preload("Domain").
		Preload("Author").
		Where("id = ? AND publisher_id = ?", id, publisherID).
		First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("certificate not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load certificate")
	}
	return &cert, nil
}
