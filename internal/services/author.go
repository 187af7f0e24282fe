package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"certiread/internal/models"
)

type AuthorService struct {
	db *gorm.DB
}

func NewAuthorService(db *gorm.DB) *AuthorService {
	return &AuthorService{db: db}
}

type AuthorInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
	ImageURL string `json:"imageUrl"`
}

func (in *AuthorInput) normalize() error {
	in.Name = cleanText(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" {
		return ValidationError("name is required")
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return validationErrorf("invalid email address %q", in.Email)
		}
	}
	return nil
}

func (in *AuthorInput) email() *string {
	if in.Email == "" {
		return nil
	}
	e := in.Email
	return &e
}

// List returns the publisher's authors with their certificate counts.
func (s *AuthorService) List(ctx context.Context, publisherID string) ([]models.Author, error) {
	db := s.db.WithContext(ctx)
	var authors []models.Author
	if err := db.Where("publisher_id = ?", publisherID).Order("created_at desc").Find(&authors).Error; err != nil {
		return nil, errors.Wrap(err, "list authors")
	}

	var counts []struct {
		AuthorID string
		N        int64
	}
	if err := db.Model(&models.Certificate{}).
		Select("author_id, count(*) as n").
		Where("publisher_id = ? AND author_id IS NOT NULL", publisherID).
		Group("author_id").
		Scan(&counts).Error; err != nil {
		return nil, errors.Wrap(err, "count certificates per author")
	}
	byAuthor := make(map[string]int64, len(counts))
	for _, c := range counts {
		byAuthor[c.AuthorID] = c.N
	}
	for i := range authors {
		authors[i].CertificateCount = byAuthor[authors[i].ID]
	}
	return authors, nil
}

func (s *AuthorService) Create(ctx context.Context, publisherID string, in AuthorInput) (*models.Author, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var author *models.Author
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pub, err := checkAuthorQuota(tx, publisherID)
		if err != nil {
			return err
		}

		if err := ensureAuthorEmailFree(tx, pub.ID, in.Email, ""); err != nil {
			return err
		}

		author = &models.Author{
			PublisherID: pub.ID,
			Name:        in.Name,
			Email:       in.email(),
			Bio:         cleanText(in.Bio),
			ImageURL:    strings.TrimSpace(in.ImageURL),
		}
		if err := tx.Create(author).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateAuthor
			}
			return errors.Wrap(err, "create author")
		}
		return nil
	})
	return author, err
}

func (s *AuthorService) Update(ctx context.Context, publisherID, authorID string, in AuthorInput) (*models.Author, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var author models.Author
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findOwnedAuthor(tx, publisherID, authorID, &author); err != nil {
			return err
		}
		if err := ensureAuthorEmailFree(tx, publisherID, in.Email, author.ID); err != nil {
			return err
		}
		author.Name = in.Name
		author.Email = in.email()
		author.Bio = cleanText(in.Bio)
		author.ImageURL = strings.TrimSpace(in.ImageURL)
		if err := tx.Save(&author).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateAuthor
			}
			return errors.Wrap(err, "update author")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &author, nil
}

// Delete removes an author. Their certificates stay and lose the author link.
func (s *AuthorService) Delete(ctx context.Context, publisherID, authorID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author models.Author
		if err := findOwnedAuthor(tx, publisherID, authorID, &author); err != nil {
			return err
		}
		if err := tx.Model(&models.Certificate{}).
			Where("author_id = ?", author.ID).
			Update("author_id", gorm.Expr("NULL")).Error; err != nil {
			return errors.Wrap(err, "detach certificates")
		}
		return errors.Wrap(tx.Delete(&author).Error, "delete author")
	})
}

func findOwnedAuthor(tx *gorm.DB, publisherID, authorID string, out *models.Author) error {
	err := tx.Where("id = ? AND publisher_id = ?", authorID, publisherID).First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError("author not found")
	}
	return errors.Wrap(err, "load author")
}

func ensureAuthorEmailFree(tx *gorm.DB, publisherID, email, exceptID string) error {
	if email == "" {
		return nil
	}
	q := tx.Model(&models.Author{}).Where("publisher_id = ? AND email = ?", publisherID, email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return errors.Wrap(err, "check author email")
	}
	if n > 0 {
		return ErrDuplicateAuthor
	}
	return nil
}

// resolveAuthor picks the author for a certificate. An explicit id must name
// one of the publisher's authors. Otherwise the cleaned name is matched
// case-insensitively and a new author is created when none matches, subject
// to the plan's author quota. Both empty means no author.
func resolveAuthor(tx *gorm.DB, publisherID, authorID, authorName string) (*string, error) {
	if authorID = strings.TrimSpace(authorID); authorID != "" {
		var a models.Author
		if err := findOwnedAuthor(tx, publisherID, authorID, &a); err != nil {
			return nil, err
		}
		return &a.ID, nil
	}

	name := cleanText(authorName)
	if name == "" {
		return nil, nil
	}

	var a models.Author
	err := tx.Where("publisher_id = ? AND LOWER(name) = LOWER(?)", publisherID, name).
		Order("created_at").
		First(&a).Error
	if err == nil {
		return &a.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "find author")
	}

	if _, err := checkAuthorQuota(tx, publisherID); err != nil {
		return nil, err
	}
	a = models.Author{PublisherID: publisherID, Name: name}
	if err := tx.Create(&a).Error; err != nil {
		return nil, errors.Wrap(err, "create author")
	}
	return &a.ID, nil
}

// checkAuthorQuota fails when the publisher cannot add another author.
func checkAuthorQuota(tx *gorm.DB, publisherID string) (*models.Publisher, error) {
	pub, err := loadPublisher(tx, publisherID)
	if err != nil {
		return nil, err
	}
	var owned int64
	if err := tx.Model(&models.Author{}).Where("publisher_id = ?", pub.ID).Count(&owned).Error; err != nil {
		return nil, errors.Wrap(err, "count authors")
	}
	if limit := pub.Plan.Limits().Authors; owned >= int64(limit) {
		return nil, QuotaExceededError(fmt.Sprintf("your plan allows at most %d author(s)", limit))
	}
	return pub, nil
}
