package storyboard

import (
	"path"
	"strings"
	"unicode"
)

// SanitizeName maps an arbitrary document name to a safe object-key
// component. Path separators and control characters never survive.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "document"
	}
	return out
}

// BaseName strips the extension from a sanitized document name. Artifact
// keys derive from it, so the same upload always maps to the same paths.
func BaseName(name string) string {
	s := SanitizeName(name)
	if ext := path.Ext(s); ext != "" && ext != s {
		s = strings.TrimSuffix(s, ext)
	}
	if s == "" {
		return "document"
	}
	return s
}
