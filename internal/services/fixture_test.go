package services

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"certiread/internal/metrics"
	"certiread/internal/testutil"
)

// fixture wires every service against a fresh SQLite database and stubbed
// network capabilities.
type fixture struct {
	db       *gorm.DB
	resolver *stubResolver
	site     *fakeSite
	metrics  *metrics.Metrics

	domains    *DomainService
	certs      *CertificateService
	authors    *AuthorService
	badges     *BadgeService
	publishers *PublisherService
}

// cheapArgon keeps password hashing fast in tests.
var cheapArgon = Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32, SaltLen: 16}

func newFixture(t testing.TB) *fixture {
	f := &fixture{
		db:       testutil.NewDB(t),
		resolver: &stubResolver{records: map[string][]string{}},
		site:     &fakeSite{pages: map[string]*cannedPage{}},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	ch := NewChallenger(ChallengerConfig{
		FetchTimeout: time.Second,
		TotalTimeout: 5 * time.Second,
	}, f.resolver, f.site.client(), f.metrics)

	f.domains = NewDomainService(f.db, ch)
	f.certs = NewCertificateService(f.db, f.metrics)
	f.authors = NewAuthorService(f.db)
	f.badges = NewBadgeService(f.certs, f.metrics)
	f.publishers = NewPublisherService(f.db, cheapArgon)
	return f
}
