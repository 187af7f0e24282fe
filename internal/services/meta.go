package services

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Edge WAFs routinely block default client signatures, so candidate pages
// are fetched with the headers of a desktop browser.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9,de;q=0.8",
}

var errNoMetaTag = errors.New("verification meta tag not found")

// skipError marks a candidate that did not prove control; the next
// candidate is tried.
type skipError struct {
	url     string
	outcome string
	reason  error
}

func (e *skipError) Error() string {
	return e.url + ": " + e.reason.Error()
}

func (e *skipError) Unwrap() error {
	return e.reason
}

func skip(url, outcome string, reason error) error {
	return &skipError{url: url, outcome: outcome, reason: reason}
}

// metaCandidates lists the URLs tried for META verification: https before
// http, bare before www.
func metaCandidates(domain string) []string {
	return []string{
		"https://" + domain,
		"https://www." + domain,
		"http://" + domain,
		"http://www." + domain,
	}
}

// checkMeta fetches the candidates strictly in order and stops at the first
// page carrying the meta tag.
func (c *Challenger) checkMeta(ctx context.Context, domain, token string) (string, bool) {
	for _, target := range metaCandidates(domain) {
		if ctx.Err() != nil {
			log.WithField("domain", domain).Debug("verification deadline reached")
			return "", false
		}
		err := c.probe(ctx, target, token)
		if err == nil {
			c.metrics.ObserveMetaCandidate("matched")
			return target, true
		}
		var s *skipError
		if errors.As(err, &s) {
			c.metrics.ObserveMetaCandidate(s.outcome)
		}
		log.WithField("url", target).WithError(err).Debug("candidate skipped")
	}
	return "", false
}

// probe returns nil when target serves the meta tag and a *skipError
// otherwise.
func (c *Challenger) probe(ctx context.Context, target, token string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return skip(target, "error", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return skip(target, "error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return skip(target, "bad_status", errors.Errorf("http %d", resp.StatusCode))
	}

	found, err := containsMetaTag(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes), c.MetaName(), token)
	if err != nil {
		return skip(target, "error", err)
	}
	if !found {
		return skip(target, "no_match", errNoMetaTag)
	}
	return nil
}

// containsMetaTag scans an HTML document for <meta name=name content=token>.
// Attribute order, quoting style and tag case do not matter; the name is
// compared case-insensitively and the content exactly after trimming
// surrounding whitespace. The whole document is scanned, not only <head>.
func containsMetaTag(r io.Reader, name, token string) (bool, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return false, nil
			}
			return false, errors.Wrap(z.Err(), "read page")
		case html.StartTagToken, html.SelfClosingTagToken:
			tag, hasAttr := z.TagName()
			if !hasAttr || atom.Lookup(tag) != atom.Meta {
				continue
			}
			var metaName, content string
			var hasContent bool
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch string(key) {
				case "name":
					metaName = string(val)
				case "content":
					content = string(val)
					hasContent = true
				}
			}
			if hasContent && strings.EqualFold(strings.TrimSpace(metaName), name) &&
				strings.TrimSpace(content) == token {
				return true, nil
			}
		}
	}
}
