package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"
)

// Warning flags a loaded configuration key that is not in the registry.
type Warning struct {
	Key         string
	Suggestions []string
}

func (w Warning) String() string {
	msg := fmt.Sprintf("'%s' is not a known config key", w.Key)
	switch len(w.Suggestions) {
	case 0:
	case 1:
		msg += fmt.Sprintf(". Did you mean '%s'?", w.Suggestions[0])
	default:
		msg += ". Did you mean one of these?\n"
		for _, s := range w.Suggestions {
			msg += fmt.Sprintf("    - %s\n", s)
		}
	}
	return msg
}

// Validate compares every loaded key against the registry and returns a
// warning, with suggestions, for each unknown one. Keys under a registered
// namespace are accepted without being individually registered.
func Validate(k *koanf.Koanf) []Warning {
	var warnings []Warning
	for _, key := range k.Keys() {
		if _, ok := Lookup(key); ok {
			continue
		}
		if HasRegisteredPrefix(key) {
			continue
		}
		warnings = append(warnings, Warning{
			Key:         key,
			Suggestions: SimilarKeys(key, 3),
		})
	}
	return warnings
}

// FormatWarnings renders warnings as a single log-friendly message.
func FormatWarnings(warnings []Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration warnings detected:\n")
	for _, w := range warnings {
		for i, line := range strings.Split(w.String(), "\n") {
			if line == "" {
				continue
			}
			if i == 0 {
				fmt.Fprintf(&sb, "  - %s\n", line)
			} else {
				fmt.Fprintf(&sb, "    %s\n", line)
			}
		}
	}
	return sb.String()
}
