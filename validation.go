package authgate

import (
	"net/url"
	"time"

	"github.com/authgate/authgate/errors"
)

// requireConfigString returns the value for a key that must be set and
// non-empty.
func requireConfigString(key, helpMsg string) (string, error) {
	value := Config.String(key)
	if value == "" {
		return "", errors.Codef(errors.FailedPrecondition,
			"authgate: required config '%s' not set: %s", key, helpMsg)
	}
	return value, nil
}

// requireConfigBytes is requireConfigString for secrets consumed as bytes.
func requireConfigBytes(key, helpMsg string) ([]byte, error) {
	value := Config.Bytes(key)
	if len(value) == 0 {
		return nil, errors.Codef(errors.FailedPrecondition,
			"authgate: required config '%s' not set: %s", key, helpMsg)
	}
	return value, nil
}

// requireConfigURL returns the value for a key that must hold an absolute
// URL with a scheme and host.
func requireConfigURL(key, helpMsg string) (string, error) {
	value, err := requireConfigString(key, helpMsg)
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", errors.Codef(errors.FailedPrecondition,
			"authgate: config '%s' is not a valid URL: %v", key, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.Codef(errors.FailedPrecondition,
			"authgate: config '%s' must be an absolute URL with scheme and host, got %q", key, value)
	}
	return value, nil
}

// configDurationOr returns the duration for key, or fallback when the value
// is missing or non-positive.
func configDurationOr(key string, fallback time.Duration) time.Duration {
	if d := Config.Duration(key); d > 0 {
		return d
	}
	return fallback
}
