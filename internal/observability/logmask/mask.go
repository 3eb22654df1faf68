// Package logmask masks credentials before request metadata reaches logs.
package logmask

import (
	"net/http"
	"strings"
)

// MaskAuthorization masks bearer tokens, preserving the scheme.
func MaskAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.Fields(value)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return "Bearer " + maskLast4(parts[1])
	}
	return maskLast4(value)
}

// MaskHeaders returns a copy of headers with credential fields masked.
func MaskHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		joined := strings.Join(values, ",")
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "authorization", "cookie", "x-api-key":
			masked[key] = MaskAuthorization(joined)
		default:
			masked[key] = joined
		}
	}
	return masked
}

func maskLast4(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
