package pipeline

import (
	"path"
	"strings"
)

// DefaultPublicRoutes are the exact paths reachable without a session.
var DefaultPublicRoutes = []string{
	"/",
	"/login",
	"/signup",
	"/reset-password",
	"/api/health",
}

var staticPrefixes = []string{"/_next/", "/static/"}

var staticExtensions = map[string]struct{}{
	".css":   {},
	".js":    {},
	".map":   {},
	".ico":   {},
	".png":   {},
	".jpg":   {},
	".jpeg":  {},
	".gif":   {},
	".svg":   {},
	".webp":  {},
	".avif":  {},
	".woff":  {},
	".woff2": {},
	".ttf":   {},
}

// isStaticAsset reports whether p is a build artefact or static file.
// API paths are never static, whatever their extension.
func isStaticAsset(p string) bool {
	if p == "/favicon.ico" {
		return true
	}
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	if isAPIPath(p) {
		return false
	}
	_, ok := staticExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

func isAPIPath(p string) bool {
	return strings.HasPrefix(p, "/api/")
}
