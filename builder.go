package authgate

import (
	"context"
	"strings"
	"time"

	"github.com/authgate/authgate/auditlog"
	"github.com/authgate/authgate/directory"
	"github.com/authgate/authgate/errors"
	"github.com/authgate/authgate/jwks"
	"github.com/authgate/authgate/keys"
	"github.com/authgate/authgate/logging"
	"github.com/authgate/authgate/oauth"
	"github.com/authgate/authgate/token"
)

// FromConfig assembles a ready-to-start server from the global Config.
func FromConfig(ctx context.Context) (*Server, error) {
	logger := loggerForMode(ConfigString("mode"))
	ctx = logging.With(ctx, logger)

	if warnings := ValidateConfig(); warnings != "" {
		logging.Warn(ctx, warnings)
	}

	store, err := loadKeys(ctx)
	if err != nil {
		return nil, err
	}

	authority := token.NewAuthority(store,
		ConfigString("tokens.issuer"),
		ConfigString("tokens.audience"),
		ConfigDuration("tokens.lifetime"))
	publisher := jwks.NewPublisher(store)
	rotator := keys.NewRotator(store, publisher)

	providers, err := buildProviders(ctx)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, errors.NewC("authgate: no login providers configured", errors.FailedPrecondition)
	}

	audit, err := buildAuditStore(ctx)
	if err != nil {
		return nil, err
	}

	stateKey, err := requireConfigBytes("oauth.stateSigningKey",
		"set AG__OAUTH__STATE_SIGNING_KEY to a random secret")
	if err != nil {
		return nil, err
	}

	directoryURL, err := requireConfigURL("directory.url",
		"set AG__DIRECTORY__URL to the coordinator endpoint")
	if err != nil {
		return nil, err
	}

	timeout := configDurationOr("oauth.timeout", 10*time.Second)
	flow := oauth.NewFlow(oauth.FlowOptions{
		Authority:       authority,
		Directory:       directory.NewClient(directoryURL, timeout),
		Audit:           audit,
		StateSigningKey: stateKey,
		SecureCookies:   strings.HasPrefix(ConfigString("address"), "https://"),
		UpstreamTimeout: timeout,
	}, providers...)

	return New(ConfigString("server.host"), ConfigString("server.port"), Components{
		Keys:          store,
		Authority:     authority,
		Publisher:     publisher,
		Rotator:       rotator,
		Flow:          flow,
		Audit:         audit,
		SuccessURL:    ConfigString("urls.success"),
		LoginURL:      ConfigString("urls.login"),
		AdminToken:    ConfigString("admin.token"),
		RotationSlots: keySlotFromConfig(Config),
		Logger:        logger,
	}), nil
}

func loggerForMode(mode string) logging.Logger {
	if mode == "production" {
		return logging.NewProdLogger()
	}
	return logging.NewDevLogger()
}

// loadKeys selects the key source by deployment mode: production reads
// indexed slots from config, development reads a PEM pair from disk. A
// store with no keys is not fatal; signing fails until keys arrive via
// rotation.
func loadKeys(ctx context.Context) (*keys.Store, error) {
	store := keys.NewStore()
	activeKID := ConfigString("keys.activeKid")

	if ConfigString("mode") == "production" {
		if err := keys.LoadIndexed(ctx, store, keySlotFromConfig(Config), activeKID); err != nil {
			return nil, err
		}
		return store, nil
	}

	privPath := ConfigString("keys.privateKeyFile")
	pubPath := ConfigString("keys.publicKeyFile")
	if privPath == "" || pubPath == "" {
		logging.Warn(ctx, "authgate: no key files configured, starting with an empty key store")
		return store, nil
	}
	if err := keys.LoadFromFiles(ctx, store, privPath, pubPath, ConfigString("keys.kid"), activeKID); err != nil {
		return nil, err
	}
	return store, nil
}

func buildProviders(ctx context.Context) ([]oauth.Provider, error) {
	var providers []oauth.Provider
	callback := func(name string) string {
		return strings.TrimSuffix(ConfigString("address"), "/") + "/auth/" + name + "/callback"
	}

	if id := ConfigString("providers.google.id"); id != "" {
		g, err := oauth.NewGoogle(ctx, id, ConfigString("providers.google.secret"), callback("google"))
		if err != nil {
			return nil, errors.WrapPrefix(err, "authgate: configuring google provider", 0)
		}
		providers = append(providers, g)
	}
	if id := ConfigString("providers.github.id"); id != "" {
		providers = append(providers,
			oauth.NewGitHub(id, ConfigString("providers.github.secret"), callback("github")))
	}
	if id := ConfigString("providers.linkedin.id"); id != "" {
		providers = append(providers,
			oauth.NewLinkedIn(id, ConfigString("providers.linkedin.secret"), callback("linkedin")))
	}

	return providers, nil
}

func buildAuditStore(ctx context.Context) (auditlog.Store, error) {
	if path := ConfigString("auditlog.path"); path != "" {
		store, err := auditlog.OpenSQLite(path)
		if err != nil {
			return nil, errors.WrapPrefix(err, "authgate: opening audit log", 0)
		}
		logging.Infow(ctx, "authgate: audit log backed by sqlite", "path", path)
		return store, nil
	}
	logging.Info(ctx, "authgate: audit log kept in memory")
	return auditlog.NewMemoryStore(), nil
}
