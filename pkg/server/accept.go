package server

import (
	"strconv"
	"strings"
)

// AcceptsMediaType reports whether an Accept header admits mediaType.
//
// The header is a comma-separated list of media ranges, each optionally
// followed by parameters; q defaults to 1 and a range with q <= 0 is excluded.
// A range admits mediaType when it is "*/*", "type/*" with a matching type, or
// an exact match. Comparison is case-insensitive. An empty header admits
// everything (RFC 7231 §5.3.2).
func AcceptsMediaType(accept, mediaType string) bool {
	if strings.TrimSpace(accept) == "" {
		return true
	}

	mediaType = strings.TrimSpace(mediaType)
	mainType := mediaType
	if slash := strings.IndexByte(mediaType, '/'); slash > 0 {
		mainType = mediaType[:slash]
	}

	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}

		mediaRange, q := parseMediaRange(token)
		if q <= 0 {
			continue
		}

		if mediaRange == "*/*" {
			return true
		}
		if slash := strings.IndexByte(mediaRange, '/'); slash > 0 && mediaRange[slash+1:] == "*" {
			if strings.EqualFold(mediaRange[:slash], mainType) {
				return true
			}
		}
		if strings.EqualFold(mediaRange, mediaType) {
			return true
		}
	}
	return false
}

// parseMediaRange splits "type/subtype;a=b;q=0.5" into the range and its
// quality value. Unparsable q values keep the default of 1.
func parseMediaRange(token string) (string, float64) {
	q := 1.0
	semi := strings.IndexByte(token, ';')
	if semi < 0 {
		return token, q
	}

	mediaRange := strings.TrimSpace(token[:semi])
	for _, param := range strings.Split(token[semi+1:], ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "q") {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			q = v
		}
	}
	return mediaRange, q
}
