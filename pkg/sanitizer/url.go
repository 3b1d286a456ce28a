package sanitizer

import (
	"net/url"
	"strings"
)

// NormalizeURL adds a scheme when missing and lowercases the host.
// Unparseable input returns "".
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	return strings.TrimSuffix(u.String(), "/")
}
