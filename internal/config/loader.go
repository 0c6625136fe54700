package config

import (
	"sync"

	"github.com/knadh/koanf/v2"
)

var defaultsLoaded sync.Once

// EnsureDefaultsLoaded fills registered defaults into k for keys no other
// source has set. Runs once, after all Register calls from init functions.
func EnsureDefaultsLoaded(k *koanf.Koanf) {
	defaultsLoaded.Do(func() {
		for key, val := range Defaults() {
			if !k.Exists(key) {
				k.Set(key, val)
			}
		}
	})
}
