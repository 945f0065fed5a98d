package model

import "strings"

// DefaultAssetBase hosts uploaded avatars and partner logos.
const DefaultAssetBase = "https://files.sportsthread.com"

// AssetURL resolves a stored asset reference against base: absolute http(s)
// URLs are kept, "/x" and "x" become base + "/x". Blank input stays blank.
func AssetURL(base, raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if base == "" {
		base = DefaultAssetBase
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(s, "/")
}
