package services

import (
	"context"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"certiread/internal/models"
)

const minPasswordLength = 8

// PublisherService is the thin account boundary the authenticated API needs.
type PublisherService struct {
	db     *gorm.DB
	params Argon2idParams
}

func NewPublisherService(db *gorm.DB, params Argon2idParams) *PublisherService {
	if params.Time == 0 {
		params = DefaultArgon2idParams()
	}
	return &PublisherService{db: db, params: params}
}

type PublisherInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	ContactName string `json:"contactName"`
	CompanyName string `json:"companyName"`
}

// Register creates a publisher on the FREE plan. Upgrades are applied by
// billing, never by the registrant.
func (s *PublisherService) Register(ctx context.Context, in PublisherInput) (*models.Publisher, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, validationErrorf("invalid email address %q", in.Email)
	}
	if len(in.Password) < minPasswordLength {
		return nil, validationErrorf("password must be at least %d characters", minPasswordLength)
	}
	contact := strings.TrimSpace(in.ContactName)
	if contact == "" {
		return nil, ValidationError("contact name is required")
	}
	hash, err := hashPassword(in.Password, s.params)
	if err != nil {
		return nil, err
	}
	pub := &models.Publisher{
		Email:        email,
		PasswordHash: hash,
		ContactName:  contact,
		CompanyName:  strings.TrimSpace(in.CompanyName),
		Plan:         models.PlanFree,
	}
	err = s.db.WithContext(ctx).Create(pub).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicatePublisher
	}
	if err != nil {
		return nil, errors.Wrap(err, "create publisher")
	}

	log.WithFields(log.Fields{"publisher": pub.ID, "plan": pub.Plan}).Info("publisher registered")
	return pub, nil
}

// Authenticate checks the credentials. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *PublisherService) Authenticate(ctx context.Context, email, password string) (*models.Publisher, error) {
	var pub models.Publisher
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&pub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "load publisher")
	}

	ok, err := checkPassword(pub.PasswordHash, password)
	if err != nil {
		log.WithError(err).WithField("publisher", pub.ID).Warn("unreadable password hash")
		return nil, ErrUnauthorized
	}
	if !ok {
		return nil, ErrUnauthorized
	}
	return &pub, nil
}
