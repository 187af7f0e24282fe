package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"certiread/internal/metrics"
	"certiread/internal/models"
)

// TXTResolver looks up DNS TXT records. *net.Resolver satisfies it.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// HTTPDoer issues HTTP requests. *http.Client satisfies it; tests and
// proxied deployments substitute their own.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ChallengerConfig struct {
	// Prefix yields the "<prefix>-verify" record key and meta name.
	Prefix string
	// FetchTimeout bounds each DNS lookup and each candidate URL fetch.
	FetchTimeout time.Duration
	// TotalTimeout bounds one complete Check call.
	TotalTimeout time.Duration
	// MaxBodyBytes caps how much of a candidate page is scanned.
	MaxBodyBytes int64
}

func (c *ChallengerConfig) defaults() {
	if c.Prefix == "" {
		c.Prefix = "certiread"
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = 60 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 5 << 20
	}
}

// Challenger proves control of a domain by looking for the domain's secret
// in DNS or in the served HTML. A negative result is an Outcome, not an
// error: network failures of any kind fold into Verified=false.
//
// A successful check shows control at the time of the check only.
type Challenger struct {
	cfg      ChallengerConfig
	resolver TXTResolver
	client   HTTPDoer
	metrics  *metrics.Metrics
}

func NewChallenger(cfg ChallengerConfig, resolver TXTResolver, client HTTPDoer, m *metrics.Metrics) *Challenger {
	cfg.defaults()
	return &Challenger{cfg: cfg, resolver: resolver, client: client, metrics: m}
}

// Outcome is the result of one verification attempt.
type Outcome struct {
	Verified bool
	Method   models.VerificationMethod
	// Source is the TXT record or URL that satisfied the check.
	Source string
	// Message is a human-readable result; on failure it names the exact
	// record or tag the publisher must deploy.
	Message string
}

// MetaName is the name attribute of the verification meta tag.
func (c *Challenger) MetaName() string {
	return c.cfg.Prefix + "-verify"
}

// ExpectedRecord is the TXT value proving control for token.
func (c *Challenger) ExpectedRecord(token string) string {
	return c.MetaName() + "=" + token
}

// MetaTag is the HTML tag proving control for token.
func (c *Challenger) MetaTag(token string) string {
	return fmt.Sprintf(`<meta name="%s" content="%s">`, c.MetaName(), token)
}

// Check runs method against domain. It only returns an error for an
// unsupported method.
func (c *Challenger) Check(ctx context.Context, domain, token string, method models.VerificationMethod) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TotalTimeout)
	defer cancel()

	start := time.Now()
	out := Outcome{Method: method}
	switch method {
	case models.MethodDNS:
		out.Source, out.Verified = c.checkDNS(ctx, domain, token)
	case models.MethodMeta:
		out.Source, out.Verified = c.checkMeta(ctx, domain, token)
	default:
		return Outcome{}, validationErrorf("unsupported verification method %q", method)
	}
	c.metrics.ObserveVerification(string(method), out.Verified, time.Since(start))

	out.Message = c.message(out, domain, token)
	log.WithFields(log.Fields{
		"domain":   domain,
		"method":   method,
		"verified": out.Verified,
		"source":   out.Source,
		"took":     time.Since(start).Round(time.Millisecond),
	}).Info("domain verification finished")
	return out, nil
}

func (c *Challenger) message(out Outcome, domain, token string) string {
	if out.Verified {
		return "Domain verified successfully."
	}
	if out.Method == models.MethodMeta {
		return fmt.Sprintf(
			"Verification failed. Make sure the meta tag %s is present in the <head> of https://%s.",
			c.MetaTag(token), domain,
		)
	}
	return fmt.Sprintf(
		"Verification failed. Make sure the TXT record %q is published for %s.",
		c.ExpectedRecord(token), domain,
	)
}
