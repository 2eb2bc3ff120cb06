package route

import "strings"

// Normalize splits p on "/" and joins the non-empty segments again, so "//a/b/" becomes "/a/b". The
// root and the empty path normalize to "/".
func Normalize(p string) string {
	if isNormalized(p) {
		return p
	}

	var sb strings.Builder
	sb.Grow(len(p) + 1)

	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}

		sb.WriteByte('/')
		sb.WriteString(seg)
	}

	if sb.Len() == 0 {
		return "/"
	}

	return sb.String()
}

func isNormalized(p string) bool {
	if p == "/" {
		return true
	}

	return len(p) > 1 && p[0] == '/' && p[len(p)-1] != '/' && !strings.Contains(p, "//")
}

// Segments returns the non-empty segments of p.
func Segments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}

// SplitTarget splits a raw request target into its path and raw query. A fragment is dropped.
func SplitTarget(target string) (path, rawQuery string) {
	target, _, _ = strings.Cut(target, "#")
	path, rawQuery, _ = strings.Cut(target, "?")

	return path, rawQuery
}
