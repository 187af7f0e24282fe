package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Domain struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	PublisherID string `gorm:"size:36;not null;uniqueIndex:idx_publisher_domain" json:"publisherId"`
	// Name is the normalized hostname, e.g. "news.example".
	Name               string              `gorm:"size:253;not null;uniqueIndex:idx_publisher_domain" json:"domain"`
	VerificationToken  string              `gorm:"size:64;not null;uniqueIndex" json:"verificationToken"`
	VerificationStatus VerificationStatus  `gorm:"size:16;not null;default:PENDING" json:"verificationStatus"`
	VerificationMethod *VerificationMethod `gorm:"size:8" json:"verificationMethod"`
	VerifiedAt         *time.Time          `json:"verifiedAt"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

func (d *Domain) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.VerificationStatus == "" {
		d.VerificationStatus = VerificationPending
	}
	return nil
}

func (d *Domain) Verified() bool {
	return d.VerificationStatus == VerificationVerified
}
