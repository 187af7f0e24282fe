package services

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
)

// checkDNS looks for the expected record among the TXT records of the bare
// domain. Lookup errors (NXDOMAIN, timeouts, no records) count as "not
// verified".
func (c *Challenger) checkDNS(ctx context.Context, domain, token string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	txtRecords, err := c.resolver.LookupTXT(ctx, domain)
	if err != nil {
		log.WithField("domain", domain).WithError(err).Debug("TXT lookup failed")
		return "", false
	}

	expected := c.ExpectedRecord(token)
	for _, rec := range txtRecords {
		if strings.Contains(flattenTXT(rec), expected) {
			return rec, true
		}
	}
	log.WithFields(log.Fields{
		"domain":  domain,
		"records": len(txtRecords),
	}).Debug("no TXT record carries the verification token")
	return "", false
}

// flattenTXT joins a record that is still in presentation form
// ("part one" "part two") into its value. Values the resolver already
// joined pass through with surrounding whitespace removed.
func flattenTXT(rec string) string {
	rec = strings.TrimSpace(rec)
	if !strings.HasPrefix(rec, `"`) || !strings.HasSuffix(rec, `"`) || len(rec) < 2 {
		return rec
	}
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(rec); i++ {
		ch := rec[i]
		switch {
		case ch == '\\' && inQuote && i+1 < len(rec):
			i++
			b.WriteByte(rec[i])
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
