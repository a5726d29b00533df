package archive

import (
	"net/url"
	"strings"
)

// HostOf returns the lowercased authority (host[:port]) of a URL, or ""
// if the URL does not parse.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SameHost reports whether raw is an http or https URL whose authority,
// compared case-insensitively, equals host exactly. No default-port or
// IDN normalization: URLs differing only in those respects are
// different hosts.
func SameHost(raw, host string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return strings.ToLower(u.Host) == strings.ToLower(host)
}

// Resolve resolves ref against base per standard relative-URL rules and
// strips the fragment. Empty and fragment-only refs report ok=false;
// unresolvable refs likewise.
func Resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}
