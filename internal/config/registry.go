// Package config implements the registry behind the gateway's global
// configuration: every expected key is registered with metadata so that
// loaded configuration can be validated and typos surfaced with
// suggestions.
package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// KeyInfo describes one expected configuration key.
type KeyInfo struct {
	Key         string      // Full key path, e.g. "tokens.lifetime".
	Description string      // What the key controls.
	Type        string      // Type hint: "string", "int", "bool", "duration", "[]string".
	Default     interface{} // Optional default value.
}

var (
	registry   = make(map[string]KeyInfo)
	registryMu sync.RWMutex
)

// Register adds known configuration keys to the registry.
func Register(infos ...KeyInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, info := range infos {
		registry[info.Key] = info
	}
}

// Lookup returns metadata for a registered key.
func Lookup(key string) (KeyInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[key]
	return info, ok
}

// AllKeys returns every registered key, sorted.
func AllKeys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Defaults returns the registered keys that carry a default value.
func Defaults() map[string]interface{} {
	registryMu.RLock()
	defer registryMu.RUnlock()
	defaults := make(map[string]interface{})
	for key, info := range registry {
		if info.Default != nil {
			defaults[key] = info.Default
		}
	}
	return defaults
}

// SimilarKeys returns up to maxResults registered keys within a small edit
// distance of key, most similar first. Keys sharing a namespace with the
// input get a slight edge so suggestions stay in the same section.
func SimilarKeys(key string, maxResults int) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	type scored struct {
		key   string
		score int
	}
	keyPrefix := namespaceOf(key)

	var candidates []scored
	for registered := range registry {
		score := levenshtein.ComputeDistance(key, registered)
		if keyPrefix != "" && keyPrefix == namespaceOf(registered) && score > 0 {
			score--
		}
		if score <= 3 {
			candidates = append(candidates, scored{registered, score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].key < candidates[j].key
	})

	result := make([]string, 0, maxResults)
	for i := 0; i < len(candidates) && i < maxResults; i++ {
		result = append(result, candidates[i].key)
	}
	return result
}

// HasRegisteredPrefix reports whether some registered key is an ancestor of
// key. Lets sections like "providers" accept arbitrary sub-keys.
func HasRegisteredPrefix(key string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	parts := strings.Split(key, ".")
	for i := 1; i < len(parts); i++ {
		if _, ok := registry[strings.Join(parts[:i], ".")]; ok {
			return true
		}
	}
	return false
}

func namespaceOf(key string) string {
	if i := strings.LastIndex(key, "."); i != -1 {
		return key[:i]
	}
	return ""
}
