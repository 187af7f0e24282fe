package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Certificate is a publicly resolvable declaration of how one piece of
// content was produced. UniqueCode is the only identifier ever exposed to
// unauthenticated callers.
type Certificate struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	PublisherID string  `gorm:"size:36;not null;index" json:"publisherId"`
	DomainID    *string `gorm:"size:36;index" json:"domainId"`
	AuthorID    *string `gorm:"size:36;index" json:"authorId"`
	UniqueCode  string  `gorm:"size:32;not null;uniqueIndex" json:"uniqueCode"`

	ContentURL         string `gorm:"not null" json:"contentUrl"`
	ContentTitle       string `json:"contentTitle,omitempty"`
	ContentDescription string `json:"contentDescription,omitempty"`
	AdditionalNotes    string `json:"additionalNotes,omitempty"`
	AIToolsUsed        string `json:"aiToolsUsed,omitempty"`

	CreationProcess datatypes.JSONSlice[CreationProcess] `json:"creationProcess"`
	SourceTypes     datatypes.JSONSlice[SourceType]      `json:"sourceTypes"`
	FactCheckType   datatypes.JSONSlice[FactCheckType]   `json:"factCheckType"`

	Status           CertificateStatus `gorm:"size:16;not null;default:ACTIVE;index" json:"status"`
	BadgeImpressions int64             `gorm:"not null;default:0" json:"badgeImpressions"`
	BadgeClicks      int64             `gorm:"not null;default:0" json:"badgeClicks"`
	CreatedAt        time.Time         `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`

	Publisher *Publisher `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Domain    *Domain    `gorm:"constraint:OnDelete:SET NULL" json:"domain,omitempty"`
	Author    *Author    `gorm:"constraint:OnDelete:SET NULL" json:"author,omitempty"`
}

func (c *Certificate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = CertificateActive
	}
	return nil
}

// Valid reports whether the badge should render as trusted.
func (c *Certificate) Valid() bool {
	return c.Status == CertificateActive
}

func (c *Certificate) HasSourcesCited() bool {
	for _, s := range c.SourceTypes {
		if s == SourcesCited {
			return true
		}
	}
	return false
}

// HasFactCheck is true for internal or external review; NO_FORMAL_FACTCHECK
// does not count.
func (c *Certificate) HasFactCheck() bool {
	for _, f := range c.FactCheckType {
		if f == InternalReview || f == ExternalFactcheck {
			return true
		}
	}
	return false
}

// InvolvesAI reports whether any declared process used AI tooling.
func (c *Certificate) InvolvesAI() bool {
	for _, p := range c.CreationProcess {
		if p.InvolvesAI() {
			return true
		}
	}
	return false
}
