package httpapi

import (
	"net/http"
	"strings"
)

// hostScopedTransport sends requests for trusted hosts through authed and
// everything else through base. It runs per request, so a redirect to an
// untrusted host never carries credentials.
type hostScopedTransport struct {
	trusted map[string]bool
	authed  http.RoundTripper
	base    http.RoundTripper
}

func newHostScopedTransport(authed, base http.RoundTripper, hosts ...string) *hostScopedTransport {
	trusted := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			trusted[h] = true
		}
	}
	return &hostScopedTransport{trusted: trusted, authed: authed, base: base}
}

// trusts reports whether credentials may be sent to host. An entry without a
// port matches the host on any port.
func (t *hostScopedTransport) trusts(host string) bool {
	host = strings.ToLower(host)
	if t.trusted[host] {
		return true
	}
	if i := strings.LastIndexByte(host, ':'); i > 0 && !strings.HasSuffix(host, "]") {
		return t.trusted[host[:i]]
	}
	return false
}

func (t *hostScopedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.trusts(req.URL.Host) {
		return t.authed.RoundTrip(req)
	}
	return t.base.RoundTrip(req)
}

// basicAuthTransport adds basic auth to every request.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(r)
}
