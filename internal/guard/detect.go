package guard

import (
	"net/http"
	"net/url"
	"strings"
)

// Tooling user agents admitted despite looking automated, mirroring the
// allowances for API clients and dev tools.
var allowedAgentPrefixes = []string{
	"postmanruntime/",
	"insomnia/",
	"curl/",
	"httpie/",
}

// Search-engine and link-preview agents admitted by category.
var allowedAgentMarkers = []string{
	"googlebot",
	"bingbot",
	"duckduckbot",
	"yandexbot",
	"slurp",
	"facebookexternalhit",
	"twitterbot",
	"slackbot",
	"discordbot",
}

var botMarkers = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"headless",
	"phantomjs",
	"selenium",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"wget",
	"scrapy",
}

// IsAutomated reports whether the user agent looks like an unwelcome
// automated client. An empty user agent counts as automated.
func IsAutomated(userAgent string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return true
	}

	for _, prefix := range allowedAgentPrefixes {
		if strings.HasPrefix(ua, prefix) {
			return false
		}
	}
	for _, marker := range allowedAgentMarkers {
		if strings.Contains(ua, marker) {
			return false
		}
	}

	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

var shieldMarkers = []string{
	"../",
	"..%2f",
	"<script",
	"%3cscript",
	"union select",
	"union%20select",
	"etc/passwd",
	"' or '",
	"\" or \"",
	";--",
}

// violatesShield reports whether the request URI carries an obvious
// traversal or injection marker, before or after percent-decoding.
func violatesShield(r *http.Request) bool {
	uri := strings.ToLower(r.URL.RequestURI())
	candidates := []string{uri}
	if decoded, err := url.QueryUnescape(uri); err == nil && decoded != uri {
		candidates = append(candidates, decoded)
	}

	for _, candidate := range candidates {
		for _, marker := range shieldMarkers {
			if strings.Contains(candidate, marker) {
				return true
			}
		}
	}
	return false
}

// ClientIP extracts the caller's address, honoring proxy headers before
// falling back to the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
		if addr[i] == ']' {
			break
		}
	}
	return addr
}
