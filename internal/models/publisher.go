package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Publisher owns domains, authors and certificates.
type Publisher struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"size:320;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	ContactName  string    `gorm:"not null" json:"contactName"`
	CompanyName  string    `json:"companyName,omitempty"`
	Plan         Plan      `gorm:"size:16;not null;default:FREE" json:"plan"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (p *Publisher) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Plan == "" {
		p.Plan = PlanFree
	}
	return nil
}

// DisplayName is the only publisher detail shown publicly.
func (p *Publisher) DisplayName() string {
	if p.CompanyName != "" {
		return p.CompanyName
	}
	return p.ContactName
}
