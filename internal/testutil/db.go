// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"certiread/internal/database"
	"certiread/internal/models"
)

// NewDB opens a migrated SQLite database in a temporary directory.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreatePublisher stores a publisher on plan. The password hash is a
// placeholder; use the publisher service when authentication matters.
func CreatePublisher(t testing.TB, db *gorm.DB, email string, plan models.Plan) *models.Publisher {
	t.Helper()
	pub := &models.Publisher{
		Email:        email,
		PasswordHash: "-",
		ContactName:  "Test Publisher",
		Plan:         plan,
	}
	require.NoError(t, db.Create(pub).Error)
	return pub
}

// CreateVerifiedDomain stores an already verified domain for publisherID.
func CreateVerifiedDomain(t testing.TB, db *gorm.DB, publisherID, name string) *models.Domain {
	t.Helper()
	now := time.Now().UTC()
	method := models.MethodDNS
	d := &models.Domain{
		PublisherID:        publisherID,
		Name:               name,
		VerificationToken:  "token-" + name + "-" + publisherID,
		VerificationStatus: models.VerificationVerified,
		VerificationMethod: &method,
		VerifiedAt:         &now,
	}
	require.NoError(t, db.Create(d).Error)
	return d
}
