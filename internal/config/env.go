package config

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SearchForConfig walks up from startDir looking for filename, returning
// the first match or "".
func SearchForConfig(filename, startDir string) string {
	d, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	p := filepath.Join(d, filename)
	if _, err = os.Stat(p); err == nil {
		return p
	}

	parent := filepath.Dir(d)
	if parent == d {
		return ""
	}
	return SearchForConfig(filename, parent)
}

// TransformEnv maps an AG__ environment variable to a config key:
//
//	AG__TOKENS__LIFETIME      → tokens.lifetime
//	AG__KEYS__ACTIVE_KID      → keys.activeKid
//	AG__PROVIDERS__GOOGLE__ID → providers.google.id
//
// Double underscores separate sections, single underscores become
// camelCase within a section.
func TransformEnv(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "AG__"))
	segments := strings.Split(s, "__")
	for i, segment := range segments {
		parts := strings.Split(segment, "_")
		for j := 1; j < len(parts); j++ {
			parts[j] = capitalize(parts[j])
		}
		segments[i] = strings.Join(parts, "")
	}
	return strings.Join(segments, ".")
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
