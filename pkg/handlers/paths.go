package handlers

import (
	"path"
	"path/filepath"
	"strings"
)

// normalizePrefix makes p absolute and drops a trailing slash. "/" and ""
// normalise to "".
func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

// normalizePath makes p absolute.
func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// stripQuery returns the path part of a request target.
func stripQuery(target string) string {
	p, _, _ := strings.Cut(target, "?")
	return p
}

// matchPrefix reports whether target is under prefix and returns the
// remainder, which always starts with "/". Matching ignores case and only
// stops at a segment boundary, so "/api" matches "/api" and "/api/x" but not
// "/apix".
func matchPrefix(target, prefix string) (string, bool) {
	if prefix == "" {
		return normalizePath(target), true
	}
	if len(target) < len(prefix) || !strings.EqualFold(target[:len(prefix)], prefix) {
		return "", false
	}
	rest := target[len(prefix):]
	switch {
	case rest == "":
		return "/", true
	case rest[0] == '/':
		return rest, true
	case rest[0] == '?':
		return "/" + rest, true
	}
	return "", false
}

// cleanRelPath turns the remainder of a matched path into a slash-separated
// path relative to a root. It rejects traversal and absolute-path tricks so
// that lookups cannot escape the root. An empty result means the root itself.
func cleanRelPath(p string) (string, bool) {
	rel := strings.TrimPrefix(p, "/")
	if rel == "" {
		return "", true
	}

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}

	// Reject platform-dependent separators.
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// A second leading "/" is an absolute-path attempt ("/files//etc/passwd").
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot-segments before cleaning so traversal is not cleaned away.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}

	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}

	return clean, true
}
