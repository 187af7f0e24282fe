package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"certiread/internal/models"
	"certiread/internal/testutil"
)

type AuthorServiceSuite struct {
	suite.Suite
	f   *fixture
	ctx context.Context
	pub *models.Publisher
}

func TestAuthorServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthorServiceSuite))
}

func (s *AuthorServiceSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.ctx = context.Background()
	s.pub = testutil.CreatePublisher(s.T(), s.f.db, "owner@example.com", models.PlanFree)
}

func (s *AuthorServiceSuite) TestCreate() {
	s.Run("name is required", func() {
		_, err := s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "   "})
		var verr ValidationError
		s.ErrorAs(err, &verr)
	})

	s.Run("email must look like an address", func() {
		_, err := s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "Jane", Email: "not-an-email"})
		var verr ValidationError
		s.ErrorAs(err, &verr)
	})

	s.Run("email is unique per publisher", func() {
		_, err := s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "Jane", Email: "jane@example.com"})
		s.Require().NoError(err)
		_, err = s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "Other Jane", Email: "jane@example.com"})
		s.ErrorIs(err, ErrDuplicateAuthor)

		other := testutil.CreatePublisher(s.T(), s.f.db, "other@example.com", models.PlanFree)
		_, err = s.f.authors.Create(s.ctx, other.ID, AuthorInput{Name: "Jane", Email: "jane@example.com"})
		s.NoError(err)
	})

	s.Run("authors without email do not collide", func() {
		_, err := s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "Anon"})
		s.Require().NoError(err)
		_, err = s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "Anon Two"})
		s.Require().NoError(err)
	})

	s.Run("free plan allows three authors", func() {
		_, err := s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "Fourth"})
		var quota QuotaExceededError
		s.ErrorAs(err, &quota)
	})
}

func (s *AuthorServiceSuite) TestListCountsCertificates() {
	d := testutil.CreateVerifiedDomain(s.T(), s.f.db, s.pub.ID, "example.com")
	for i := 0; i < 2; i++ {
		_, err := s.f.certs.Create(s.ctx, s.pub.ID, CertificateInput{
			DomainID:        d.ID,
			ContentURL:      "https://example.com/a",
			CreationProcess: []string{"HUMAN_WRITTEN"},
			AuthorName:      "Jane",
		})
		s.Require().NoError(err)
	}
	_, err := s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "Idle"})
	s.Require().NoError(err)

	authors, err := s.f.authors.List(s.ctx, s.pub.ID)
	s.Require().NoError(err)
	s.Require().Len(authors, 2)

	counts := map[string]int64{}
	for _, a := range authors {
		counts[a.Name] = a.CertificateCount
	}
	s.Equal(map[string]int64{"Jane": 2, "Idle": 0}, counts)
}

func (s *AuthorServiceSuite) TestUpdate() {
	a, err := s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "Jane", Email: "jane@example.com"})
	s.Require().NoError(err)
	b, err := s.f.authors.Create(s.ctx, s.pub.ID, AuthorInput{Name: "Max", Email: "max@example.com"})
	s.Require().NoError(err)

	got, err := s.f.authors.Update(s.ctx, s.pub.ID, a.ID, AuthorInput{Name: "Jane Doe", Email: "jane@example.com", Bio: "Editor"})
	s.Require().NoError(err)
	s.Equal("Jane Doe", got.Name)
	s.Equal("Editor", got.Bio)

	_, err = s.f.authors.Update(s.ctx, s.pub.ID, b.ID, AuthorInput{Name: "Max", Email: "jane@example.com"})
	s.ErrorIs(err, ErrDuplicateAuthor)

	_, err = s.f.authors.Update(s.ctx, s.pub.ID, "missing", AuthorInput{Name: "X"})
	var nf NotFoundError
	s.ErrorAs(err, &nf)
}

func (s *AuthorServiceSuite) TestDeleteDetachesCertificates() {
	d := testutil.CreateVerifiedDomain(s.T(), s.f.db, s.pub.ID, "example.com")
	cert, err := s.f.certs.Create(s.ctx, s.pub.ID, CertificateInput{
		DomainID:        d.ID,
		ContentURL:      "https://example.com/a",
		CreationProcess: []string{"HUMAN_WRITTEN"},
		AuthorName:      "Jane",
	})
	s.Require().NoError(err)
	s.Require().NotNil(cert.AuthorID)

	s.Require().NoError(s.f.authors.Delete(s.ctx, s.pub.ID, *cert.AuthorID))

	got, err := s.f.certs.Get(s.ctx, s.pub.ID, cert.ID)
	s.Require().NoError(err)
	s.Nil(got.AuthorID)
	s.Nil(got.Author)

	view, err := s.f.certs.GetPublic(s.ctx, cert.UniqueCode)
	s.Require().NoError(err)
	s.Nil(view.Author)
}

func (s *AuthorServiceSuite) TestImplicitAuthorsCountTowardsQuota() {
	d := testutil.CreateVerifiedDomain(s.T(), s.f.db, s.pub.ID, "example.com")
	certify := func(author string) error {
		_, err := s.f.certs.Create(s.ctx, s.pub.ID, CertificateInput{
			DomainID:        d.ID,
			ContentURL:      "https://example.com/a",
			CreationProcess: []string{"HUMAN_WRITTEN"},
			AuthorName:      author,
		})
		return err
	}

	for _, name := range []string{"Ann", "Ben", "Cid"} {
		s.Require().NoError(certify(name))
	}

	err := certify("Dee")
	var quota QuotaExceededError
	s.ErrorAs(err, &quota)

	s.NoError(certify("ben"), "existing authors still match")

	var count int64
	s.Require().NoError(s.f.db.Model(&models.Author{}).Where("publisher_id = ?", s.pub.ID).Count(&count).Error)
	s.Equal(int64(3), count)

	s.Run("update cannot create a fourth author either", func() {
		var cert models.Certificate
		s.Require().NoError(s.f.db.First(&cert, "publisher_id = ?", s.pub.ID).Error)
		name := "Eve"
		_, err := s.f.certs.Update(s.ctx, s.pub.ID, cert.ID, CertificatePatch{AuthorName: &name})
		s.ErrorAs(err, &quota)
	})
}
