package services

import (
	"context"
	"net"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

const maxRedirects = 10

// NewHTTPClient builds the client used for META verification. A non-empty
// proxyURL routes every request through that forward proxy, which helps when
// target sites block the verifier's own address.
func NewHTTPClient(proxyURL string) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, errors.Wrapf(err, "parse proxy url %q", proxyURL)
		}
		tr.Proxy = http.ProxyURL(u)
	}
	return &http.Client{
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}, nil
}

// NewResolver returns the system resolver, or one that sends every query to
// server ("host:port") when set.
func NewResolver(server string) *net.Resolver {
	if server == "" {
		return net.DefaultResolver
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, server)
		},
	}
}
