package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Author struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	PublisherID string    `gorm:"size:36;not null;uniqueIndex:idx_publisher_author_email" json:"publisherId"`
	Name        string    `gorm:"not null" json:"name"`
	Email       *string   `gorm:"size:320;uniqueIndex:idx_publisher_author_email" json:"email"`
	Bio         string    `json:"bio,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	CertificateCount int64 `gorm:"-" json:"certificateCount"`
}

func (a *Author) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
