package llm

import "strings"

// Upstream failures arrive as free text; the provider APIs do not expose a
// stable error taxonomy, so classification is by known substrings.

var rateLimitMarkers = []string{
	"rate_limit_exceeded",
	"rate limit",
	"429",
	"quota",
}

var payloadTooLargeMarkers = []string{
	"413",
	"request too large",
	"payload too large",
}

// IsRateLimited reports whether an error looks like upstream throttling.
func IsRateLimited(err error) bool {
	return matchesAny(err, rateLimitMarkers)
}

// IsPayloadTooLarge reports whether an error looks like an oversized prompt
// rejection.
func IsPayloadTooLarge(err error) bool {
	return matchesAny(err, payloadTooLargeMarkers)
}

func matchesAny(err error, markers []string) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
