package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"certiread/internal/models"
)

// DomainService is the domain registry. It owns the verification token of
// every domain and drives the status transitions after a challenge.
type DomainService struct {
	db         *gorm.DB
	challenger *Challenger
	now        func() time.Time
}

func NewDomainService(db *gorm.DB, challenger *Challenger) *DomainService {
	return &DomainService{db: db, challenger: challenger, now: time.Now}
}

// Instructions are the artifacts a publisher deploys to prove control.
type Instructions struct {
	TXTName  string `json:"txtName"`
	TXTValue string `json:"txtValue"`
	MetaTag  string `json:"metaTag"`
}

// VerificationResult pairs the challenge outcome with the updated domain.
type VerificationResult struct {
	Domain  *models.Domain
	Outcome Outcome
}

func (s *DomainService) Instructions(d *models.Domain) Instructions {
	return Instructions{
		TXTName:  d.Name,
		TXTValue: s.challenger.ExpectedRecord(d.VerificationToken),
		MetaTag:  s.challenger.MetaTag(d.VerificationToken),
	}
}

// Register claims rawDomain for the publisher. The domain starts PENDING
// with a fresh token that never changes afterwards.
func (s *DomainService) Register(ctx context.Context, publisherID, rawDomain string) (*models.Domain, error) {
	name := NormalizeDomain(rawDomain)
	if !ValidHostname(name) {
		return nil, validationErrorf("invalid domain %q", rawDomain)
	}

	var domain *models.Domain
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pub, err := loadPublisher(tx, publisherID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Domain{}).
			Where("publisher_id = ? AND name = ?", pub.ID, name).
			Count(&existing).Error; err != nil {
			return errors.Wrap(err, "count domains")
		}
		if existing > 0 {
			return ErrDuplicateDomain
		}

		var owned int64
		if err := tx.Model(&models.Domain{}).Where("publisher_id = ?", pub.ID).Count(&owned).Error; err != nil {
			return errors.Wrap(err, "count domains")
		}
		if limit := pub.Plan.Limits().Domains; owned >= int64(limit) {
			return QuotaExceededError(fmt.Sprintf("your plan allows at most %d domain(s)", limit))
		}

		token, err := newVerificationToken()
		if err != nil {
			return err
		}
		domain = &models.Domain{
			PublisherID:        pub.ID,
			Name:               name,
			VerificationToken:  token,
			VerificationStatus: models.VerificationPending,
		}
		if err := tx.Create(domain).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateDomain
			}
			return errors.Wrap(err, "create domain")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"publisher": publisherID, "domain": name}).Info("domain registered")
	return domain, nil
}

// Get returns one of the publisher's domains.
func (s *DomainService) Get(ctx context.Context, publisherID, domainID string) (*models.Domain, error) {
	return findOwnedDomain(s.db.WithContext(ctx), publisherID, domainID)
}

// List returns the publisher's domains, newest first.
func (s *DomainService) List(ctx context.Context, publisherID string) ([]models.Domain, error) {
	var domains []models.Domain
	err := s.db.WithContext(ctx).
		Where("publisher_id = ?", publisherID).
		Order("created_at desc").
		Find(&domains).Error
	return domains, errors.Wrap(err, "list domains")
}

// Remove deletes a domain. Deletion is refused while ACTIVE certificates
// reference it; revoked or expired certificates are detached and keep
// resolving as invalid.
func (s *DomainService) Remove(ctx context.Context, publisherID, domainID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := findOwnedDomain(tx, publisherID, domainID)
		if err != nil {
			return err
		}

		var active int64
		if err := tx.Model(&models.Certificate{}).
			Where("domain_id = ? AND status = ?", d.ID, models.CertificateActive).
			Count(&active).Error; err != nil {
			return errors.Wrap(err, "count certificates")
		}
		if active > 0 {
			return ErrDomainInUse
		}

		if err := tx.Model(&models.Certificate{}).
			Where("domain_id = ?", d.ID).
			Update("domain_id", gorm.Expr("NULL")).Error; err != nil {
			return errors.Wrap(err, "detach certificates")
		}
		if err := tx.Delete(d).Error; err != nil {
			return errors.Wrap(err, "delete domain")
		}
		log.WithFields(log.Fields{"publisher": publisherID, "domain": d.Name}).Info("domain removed")
		return nil
	})
}

// Verify runs the challenge for one of the publisher's domains and records
// the result. A failed check is a normal result; errors are reserved for
// unknown domains and unsupported methods.
//
// On success the domain becomes VERIFIED. On failure a PENDING or FAILED
// domain becomes PENDING; a VERIFIED domain keeps its status. Concurrent
// verifications of the same domain race and the last write wins.
func (s *DomainService) Verify(ctx context.Context, publisherID, domainID, method string) (*VerificationResult, error) {
	m, err := models.ParseVerificationMethod(method)
	if err != nil {
		return nil, ValidationError(err.Error())
	}
	d, err := s.Get(ctx, publisherID, domainID)
	if err != nil {
		return nil, err
	}

	out, err := s.challenger.Check(ctx, d.Name, d.VerificationToken, m)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if out.Verified {
		now := s.now().UTC()
		updates["verification_status"] = models.VerificationVerified
		updates["verification_method"] = m
		updates["verified_at"] = now
		d.VerificationStatus = models.VerificationVerified
		d.VerificationMethod = &m
		d.VerifiedAt = &now
	} else if !d.Verified() {
		updates["verification_status"] = models.VerificationPending
		d.VerificationStatus = models.VerificationPending
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Domain{}).
			Where("id = ?", d.ID).
			Updates(updates).Error; err != nil {
			return nil, errors.Wrap(err, "store verification result")
		}
	}
	return &VerificationResult{Domain: d, Outcome: out}, nil
}

func findOwnedDomain(tx *gorm.DB, publisherID, domainID string) (*models.Domain, error) {
	var d models.Domain
	err := tx.Where("id = ? AND publisher_id = ?", domainID, publisherID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("domain not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load domain")
	}
	return &d, nil
}

func loadPublisher(tx *gorm.DB, publisherID string) (*models.Publisher, error) {
	var p models.Publisher
	err := tx.Where("id = ?", publisherID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("publisher not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load publisher")
	}
	return &p, nil
}
