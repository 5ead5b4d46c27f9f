// pkg/asli/url.go
package asli

import (
	"regexp"
	"strings"
)

var absoluteURL = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://.+`)

// IsAbsoluteURL reports whether raw already carries a scheme, e.g. "http://x".
func IsAbsoluteURL(raw string) bool {
	return absoluteURL.MatchString(raw)
}

// JoinURL composes path with base. Absolute paths are returned unchanged, an
// empty base leaves path unchanged, otherwise the two are joined with exactly
// one slash.
func JoinURL(base, path string) string {
	if IsAbsoluteURL(path) || base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// URL is a path with an optional base. Equality compares the composed form.
type URL struct {
	Path string
	Base string
}

func (u URL) String() string { return JoinURL(u.Base, u.Path) }

// Equal compares u with another URL or a string by their composed forms.
// Other values never compare equal.
func (u URL) Equal(other any) bool {
	switch o := other.(type) {
	case URL:
		return u.String() == o.String()
	case *URL:
		return o != nil && u.String() == o.String()
	case string:
		return u.String() == o
	}
	return false
}
