package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	VerificationAttempts *prometheus.CounterVec
	VerificationDuration *prometheus.HistogramVec
	MetaCandidates       *prometheus.CounterVec
	CertificatesCreated  prometheus.Counter
	BadgeResolutions     *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VerificationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certiread_domain_verifications_total",
			Help: "Domain verification attempts by method and result",
		}, []string{"method", "result"}),
		VerificationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certiread_domain_verification_duration_seconds",
			Help:    "Wall time of a complete domain verification attempt",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"method"}),
		MetaCandidates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certiread_meta_candidate_fetches_total",
			Help: "META verification candidate fetches by outcome",
		}, []string{"outcome"}),
		CertificatesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "certiread_certificates_created_total",
			Help: "Total number of certificates issued",
		}),
		BadgeResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "certiread_badge_resolutions_total",
			Help: "Public certificate lookups by endpoint and result",
		}, []string{"endpoint", "result"}),
	}
}

func (m *Metrics) ObserveVerification(method string, verified bool, took time.Duration) {
	if m == nil {
		return
	}
	result := "failed"
	if verified {
		result = "verified"
	}
	m.VerificationAttempts.WithLabelValues(method, result).Inc()
	m.VerificationDuration.WithLabelValues(method).Observe(took.Seconds())
}

// ObserveMetaCandidate counts one candidate fetch; outcome is one of
// "matched", "no_match", "bad_status" or "error".
func (m *Metrics) ObserveMetaCandidate(outcome string) {
	if m == nil {
		return
	}
	m.MetaCandidates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCertificatesCreated() {
	if m == nil {
		return
	}
	m.CertificatesCreated.Inc()
}

func (m *Metrics) ObserveBadgeResolution(endpoint string, found bool) {
	if m == nil {
		return
	}
	result := "found"
	if !found {
		result = "not_found"
	}
	m.BadgeResolutions.WithLabelValues(endpoint, result).Inc()
}
