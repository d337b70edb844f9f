// Package normalize provides utilities for canonicalizing bookmark URLs.
package normalize

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

// defaultPorts maps schemes to ports that are implied and should be stripped.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// URL canonicalizes a bookmark URL so that equivalent spellings compare
// equal: scheme and host are lowercased, internationalized hosts are
// converted to their ASCII (punycode) form, default ports are stripped,
// and query parameters are sorted into a stable order. The path, fragment
// and parameter values are preserved as submitted.
func URL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL must be absolute: %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		host = host + ":" + port
	}
	u.Host = host

	if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.RawQuery)
	}

	return u.String(), nil
}

// Domain extracts the host (without port) from a normalized URL.
// Returns an empty string for unparseable input.
func Domain(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// sortQuery re-encodes a query string with keys (and values within a key)
// in sorted order, so parameter order no longer affects identity.
func sortQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			if v != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	return b.String()
}
