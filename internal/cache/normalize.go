// Package cache keys extracted recipes by normalized source URL and serves
// them from a durable store with an optional Redis tier in front.
package cache

import (
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/SquizAI/recipies01/internal/config"
)

// ErrInvalidURL is returned for inputs that are not absolute http(s) URLs.
var ErrInvalidURL = eris.New("cache: invalid source url")

// Normalizer turns source URLs into cache keys. Query parameters whose
// lowercase name matches one of its globs are dropped.
type Normalizer struct {
	strip []string
}

// NewNormalizer returns a Normalizer for the given parameter globs, or the
// default tracking-parameter list when none are given.
func NewNormalizer(stripParams []string) *Normalizer {
	if len(stripParams) == 0 {
		stripParams = config.DefaultStripParams
	}
	globs := make([]string, len(stripParams))
	for i, p := range stripParams {
		globs[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return &Normalizer{strip: globs}
}

// NormalizeURL normalizes raw with the default parameter list.
func NormalizeURL(raw string) (string, error) {
	return NewNormalizer(nil).Key(raw)
}

// Key returns the canonical cache key for raw. Equivalent URLs that differ
// only in case of scheme/host, default port, fragment, tracking parameters,
// parameter order or a trailing slash share a key.
func (n *Normalizer) Key(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", eris.Wrapf(ErrInvalidURL, "%q: %v", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" || u.Opaque != "" {
		return "", eris.Wrapf(ErrInvalidURL, "%q", raw)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}

	out := scheme + "://" + host + p
	if q := n.query(u.Query()); q != "" {
		out += "?" + q
	}
	return out, nil
}

func (n *Normalizer) query(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if n.stripped(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func (n *Normalizer) stripped(param string) bool {
	name := strings.ToLower(param)
	for _, glob := range n.strip {
		if ok, _ := path.Match(glob, name); ok {
			return true
		}
	}
	return false
}
