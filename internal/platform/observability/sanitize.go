package observability

import (
	"strings"
	"unicode"
)

// sanitizeString strips control characters and truncates to limit runes so request data
// cannot forge log lines.
func sanitizeString(value string, limit int) string {
	var b strings.Builder
	count := 0
	for _, r := range value {
		if count >= limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// SanitizeRoute bounds route patterns used as log fields and metric labels.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod bounds HTTP methods.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeUserID bounds caller identifiers.
func SanitizeUserID(uid string) string {
	return sanitizeString(uid, 64)
}
