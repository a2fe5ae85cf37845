// Package privacy scrubs endpoints and credentials from messages before they
// leave the process, e.g. in Sentry events.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
)

// Pre-compiled patterns.
var (
	// URLs of every endpoint the service talks to: classifier, broker, object store
	urlPattern = regexp.MustCompile(`\b(?:https?|tcp|ssl|tls|mqtts?|wss?|s3)://[^\s"']+`)

	credentialPattern = regexp.MustCompile(`(?i)\b(password|secret|token|api[_-]?key|access[_-]?key(?:[_-]?id)?)([=:]\s*)\S+`)
)

// ScrubMessage replaces URLs with anonymized forms and masks credential
// assignments such as "password=...".
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	return credentialPattern.ReplaceAllString(message, "$1$2[REDACTED]")
}

// AnonymizeURL converts a URL to a stable hash that keeps the scheme, host
// category, port and path shape, so identical endpoints group together
// without revealing them.
func AnonymizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var normalizedParts []string
	if parsedURL.Scheme != "" {
		normalizedParts = append(normalizedParts, parsedURL.Scheme)
	}
	if host := parsedURL.Hostname(); host != "" {
		normalizedParts = append(normalizedParts, categorizeHost(host))
	}
	if parsedURL.Port() != "" {
		normalizedParts = append(normalizedParts, "port-"+parsedURL.Port())
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		normalizedParts = append(normalizedParts, anonymizePath(parsedURL.Path))
	}

	hash := sha256.Sum256([]byte(strings.Join(normalizedParts, ":")))
	return fmt.Sprintf("url-%x", hash[:12])
}

// categorizeHost reduces a host to localhost, private-ip, public-ip or its TLD.
func categorizeHost(host string) string {
	if host == "localhost" {
		return "localhost"
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		switch {
		case addr.IsLoopback():
			return "localhost"
		case addr.IsPrivate(), addr.IsLinkLocalUnicast():
			return "private-ip"
		default:
			return "public-ip"
		}
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "domain-" + parts[len(parts)-1]
	}
	return "unknown-host"
}

// anonymizePath keeps the number of segments and which are numeric ids.
func anonymizePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}

	var anonymizedSegments []string
	for segment := range strings.SplitSeq(path, "/") {
		if segment == "" {
			continue
		}
		if isNumeric(segment) {
			anonymizedSegments = append(anonymizedSegments, "numeric")
			continue
		}
		hash := sha256.Sum256([]byte(segment))
		anonymizedSegments = append(anonymizedSegments, fmt.Sprintf("seg-%x", hash[:4]))
	}
	return strings.Join(anonymizedSegments, "/")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
