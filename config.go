// Package authgate assembles the authentication gateway: configuration,
// the HTTP surface, and the wiring between key storage, token issuance,
// JWKS publishing, and the provider login flows.
package authgate

import (
	"fmt"
	"net"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/keys"
)

// Filename of the standard configuration file.
const ConfigFile = "authgate.yaml"

// KeyInfo describes an expected configuration key. Re-exported from
// internal/config for public use.
type KeyInfo = config.KeyInfo

// Config is the global koanf instance holding application configuration.
//
// Sources, later overriding earlier:
// 1. Registered defaults
// 2. An auto-discovered authgate.yaml
// 3. Environment variables with the AG__ prefix
// 4. Anything loaded via LoadConfigFile or LoadConfigDefaults
//
// Environment variable transformation:
//   - AG__TOKENS__LIFETIME → tokens.lifetime
//   - AG__KEYS__ACTIVE_KID → keys.activeKid
var Config = koanf.New(".")

const (
	defaultHost = "localhost"
	defaultPort = "8089"
)

func init() {
	registerCoreConfigKeys()

	if cfg := config.SearchForConfig(ConfigFile, "."); cfg != "" {
		if err := Config.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			panic("error loading config: " + err.Error())
		}
	}

	if err := Config.Load(env.Provider("AG__", ".", config.TransformEnv), nil); err != nil {
		panic("error loading env config: " + err.Error())
	}
}

// RegisterConfigKeys registers known configuration keys with metadata so
// validation can flag typos.
func RegisterConfigKeys(infos ...KeyInfo) {
	config.Register(infos...)
}

// LoadConfigFile loads additional configuration from a YAML file. Call
// before building the server.
func LoadConfigFile(path string) {
	if err := Config.Load(file.Provider(path), yaml.Parser()); err != nil {
		panic("error loading config file '" + path + "': " + err.Error())
	}
}

// LoadConfigDefaults loads default values that files or env vars may
// override.
func LoadConfigDefaults(defaults map[string]interface{}) {
	if err := Config.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic("error loading config defaults: " + err.Error())
	}
}

// ConfigString returns the string value for the given key.
func ConfigString(key string) string {
	return Config.String(key)
}

// ConfigInt returns the int value for the given key.
func ConfigInt(key string) int {
	return Config.Int(key)
}

// ConfigBool returns the bool value for the given key.
func ConfigBool(key string) bool {
	return Config.Bool(key)
}

// ConfigDuration returns the duration value for the given key. Strings
// like "15m" or "30s" are parsed automatically.
func ConfigDuration(key string) time.Duration {
	return Config.Duration(key)
}

// ConfigStrings returns the string slice value for the given key.
func ConfigStrings(key string) []string {
	return Config.Strings(key)
}

// ConfigBytes returns the byte slice value for the given key.
func ConfigBytes(key string) []byte {
	return Config.Bytes(key)
}

// ConfigExists checks whether the given key is set.
func ConfigExists(key string) bool {
	return Config.Exists(key)
}

// ValidateConfig compares all loaded keys against the registry, returning
// a human-readable warning block, or "" when the config is clean.
func ValidateConfig() string {
	config.EnsureDefaultsLoaded(Config)
	return config.FormatWarnings(config.Validate(Config))
}

// keySlotFromConfig reads indexed key slots of the form
// keys.slot<n>.private / .public / .kid, as populated by
// AG__KEYS__SLOT_1__PRIVATE style environment variables.
func keySlotFromConfig(k *koanf.Koanf) keys.SlotLookup {
	return func(n int) (keys.Slot, bool) {
		prefix := fmt.Sprintf("keys.slot%d.", n)
		priv := k.String(prefix + "private")
		pub := k.String(prefix + "public")
		if priv == "" || pub == "" {
			return keys.Slot{}, false
		}
		return keys.Slot{
			PrivatePEM: priv,
			PublicPEM:  pub,
			KID:        k.String(prefix + "kid"),
		}, true
	}
}

func registerCoreConfigKeys() {
	config.Register(
		KeyInfo{
			Key:         "name",
			Description: "User-facing name that identifies the service",
			Type:        "string",
			Default:     "AuthGate",
		},
		KeyInfo{
			Key:         "address",
			Description: "External base URL used to construct provider callback URLs",
			Type:        "string",
			Default:     "http://" + net.JoinHostPort(defaultHost, defaultPort),
		},
		KeyInfo{
			Key:         "mode",
			Description: "Deployment mode, selects the key loading strategy (production|development)",
			Type:        "string",
			Default:     "development",
		},

		KeyInfo{
			Key:         "server.host",
			Description: "Host to bind the server to",
			Type:        "string",
			Default:     defaultHost,
		},
		KeyInfo{
			Key:         "server.port",
			Description: "Port to bind the server to",
			Type:        "string",
			Default:     defaultPort,
		},

		KeyInfo{
			Key:         "tokens.lifetime",
			Description: "Lifetime of issued session tokens",
			Type:        "duration",
			Default:     "15m",
		},
		KeyInfo{
			Key:         "tokens.issuer",
			Description: "Issuer claim stamped into session tokens",
			Type:        "string",
		},
		KeyInfo{
			Key:         "tokens.audience",
			Description: "Audience claim stamped into session tokens",
			Type:        "string",
		},

		// Namespace for indexed production key slots (keys.slot1.private …).
		KeyInfo{
			Key:         "keys",
			Description: "Signing key material",
			Type:        "namespace",
		},
		KeyInfo{
			Key:         "keys.activeKid",
			Description: "Key id to activate after loading; defaults to the lexicographically last loaded id",
			Type:        "string",
		},
		KeyInfo{
			Key:         "keys.privateKeyFile",
			Description: "Path to the RSA private key PEM (development mode)",
			Type:        "string",
		},
		KeyInfo{
			Key:         "keys.publicKeyFile",
			Description: "Path to the RSA public key PEM (development mode)",
			Type:        "string",
		},
		KeyInfo{
			Key:         "keys.kid",
			Description: "Key id for the development key pair",
			Type:        "string",
			Default:     "local-dev",
		},

		// Namespace for provider credentials (providers.google.id …).
		KeyInfo{
			Key:         "providers",
			Description: "OAuth provider credentials",
			Type:        "namespace",
		},

		KeyInfo{
			Key:         "oauth.timeout",
			Description: "Upper bound on outbound provider and directory calls",
			Type:        "duration",
			Default:     "10s",
		},
		KeyInfo{
			Key:         "oauth.stateSigningKey",
			Description: "Key used to sign transient login-state cookies",
			Type:        "string",
		},

		KeyInfo{
			Key:         "urls.success",
			Description: "Where the browser lands after a successful login",
			Type:        "string",
			Default:     "/",
		},
		KeyInfo{
			Key:         "urls.login",
			Description: "Where the browser lands after a failed login",
			Type:        "string",
			Default:     "/login",
		},

		KeyInfo{
			Key:         "directory.url",
			Description: "Coordinator endpoint for user directory lookups",
			Type:        "string",
		},

		KeyInfo{
			Key:         "admin.token",
			Description: "Bearer token guarding the key management endpoints",
			Type:        "string",
		},

		KeyInfo{
			Key:         "auditlog.path",
			Description: "SQLite file for the login audit log; empty keeps records in memory",
			Type:        "string",
		},
	)
}
