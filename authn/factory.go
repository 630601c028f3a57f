package authn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/corvid-gateway/gateway/cache"
	"github.com/corvid-gateway/gateway/secret"
	"github.com/corvid-gateway/gateway/store"
	"github.com/corvid-gateway/gateway/token"
)

type (
	// Config is the top-level authentication configuration document: a
	// secret source and, per scheme name, the scheme's own settings.
	// Route configuration refers back to a scheme by its name.
	Config struct {
		Source  string                  `yaml:"source"`
		Schemes map[string]SchemeConfig `yaml:"schemes"`
	}

	SchemeConfig struct {
		Type string `yaml:"type"`

		// jwt
		PublicKey string `yaml:"publicKey"`

		// phantom-reference
		ReferencePublicKey  string `yaml:"referencePublicKey"`
		ReferencePrivateKey string `yaml:"referencePrivateKey"`

		// oauth2-introspection
		IntrospectionURL string `yaml:"introspectionUrl"`
		CacheCounters    int64  `yaml:"cacheCounters"`
		CacheMaxCost     int64  `yaml:"cacheMaxCost"`
	}
)

func ParseConfig(source io.Reader) (*Config, error) {
	var c Config
	if err := yaml.NewDecoder(source).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode authentication config: %w", err)
	}
	return &c, nil
}

const (
	retries        = 3
	retryBackoff   = 3 * time.Second
	defaultCounter = 1e7
	defaultMaxCost = 1 << 26
)

// Factory builds a Registry of authentication schemes from Config, loading
// whatever key material each scheme requires from a shared secret.Source,
// generalizing the donor's authentication.Factory (which built a single
// phantom scheme) into one capable of building any number of named,
// differently-typed schemes.
type Factory struct {
	source secret.Source
	config *Config
}

func NewFactory(source secret.Source, config *Config) *Factory {
	return &Factory{source: source, config: config}
}

// MakeSource resolves a configured secret source name to a concrete
// secret.Source, wrapping remote sources with retry, mirroring the donor's
// authentication.makeSource. The returned closer must be called once the
// source is no longer needed.
func MakeSource(ctx context.Context, sourceName, projectID string) (secret.Source, func() error, error) {
	switch sourceName {
	case "gsm":
		gsm, err := secret.NewGoogleSecretManager(ctx, projectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create google secret manager client: %w", err)
		}
		return secret.NewBackoffSource(retries, retryBackoff, gsm), gsm.Close, nil
	case "env":
		return secret.NewEnvSource(), func() error { return nil }, nil
	case "file":
		return secret.NewFileSource(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown secret source: %q", sourceName)
}

// Build loads every key a configured scheme needs in parallel and returns
// the resulting Registry.
func (f *Factory) Build(ctx context.Context, getter store.Getter) (Registry, error) {
	group, gctx := errgroup.WithContext(ctx)

	keys := make(map[string][]byte)
	var mu sync.Mutex

	load := func(name string) func() error {
		return func() error {
			b, err := f.source.Get(gctx, name)
			if err != nil {
				return fmt.Errorf("failed to load key %q: %w", name, err)
			}
			mu.Lock()
			keys[name] = b
			mu.Unlock()
			return nil
		}
	}

	for _, sc := range f.config.Schemes {
		switch sc.Type {
		case "jwt":
			group.Go(load(sc.PublicKey))
		case "phantom-reference":
			group.Go(load(sc.ReferencePublicKey))
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	registry := make(Registry, len(f.config.Schemes))
	for name, sc := range f.config.Schemes {
		scheme, err := f.build(sc, keys, getter)
		if err != nil {
			return nil, fmt.Errorf("failed to build scheme %q: %w", name, err)
		}
		registry[name] = scheme
	}

	return registry, nil
}

// Reference loads the key material the phantom-token exchange endpoint
// needs to issue reference tokens and validate the value tokens presented
// to it, mirroring the donor authentication.Factory's NewReference: a
// reference key pair (for issuing/parsing the opaque reference token) plus
// a value token parser (for validating the caller's real access token
// before minting a reference for it). The first configured phantom-reference
// scheme supplies the reference keys; the first configured jwt scheme
// supplies the value parser.
func (f *Factory) Reference(ctx context.Context) (token.Issuer, token.Parser, token.Parser, error) {
	var referencePublic, referencePrivate, valuePublic string
	for _, sc := range f.config.Schemes {
		if sc.Type == "phantom-reference" && referencePublic == "" {
			referencePublic, referencePrivate = sc.ReferencePublicKey, sc.ReferencePrivateKey
		}
		if sc.Type == "jwt" && valuePublic == "" {
			valuePublic = sc.PublicKey
		}
	}
	if referencePublic == "" || referencePrivate == "" {
		return nil, nil, nil, fmt.Errorf("no phantom-reference scheme configured")
	}
	if valuePublic == "" {
		return nil, nil, nil, fmt.Errorf("no jwt scheme configured to validate value tokens")
	}

	group, gctx := errgroup.WithContext(ctx)
	var refPubBytes, refPrivBytes, valPubBytes []byte
	group.Go(func() (err error) { refPubBytes, err = f.source.Get(gctx, referencePublic); return })
	group.Go(func() (err error) { refPrivBytes, err = f.source.Get(gctx, referencePrivate); return })
	group.Go(func() (err error) { valPubBytes, err = f.source.Get(gctx, valuePublic); return })
	if err := group.Wait(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load reference keys: %w", err)
	}

	referenceParser, err := token.NewReferenceParser(bytes.NewReader(refPubBytes))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create reference token parser: %w", err)
	}
	referenceIssuer, err := token.NewReferenceIssuer(bytes.NewReader(refPrivBytes))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create reference token issuer: %w", err)
	}
	valueParser, err := token.NewJWTParser(bytes.NewReader(valPubBytes))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create value token parser: %w", err)
	}

	return referenceIssuer, valueParser, referenceParser, nil
}

func (f *Factory) build(sc SchemeConfig, keys map[string][]byte, getter store.Getter) (Scheme, error) {
	switch sc.Type {
	case "jwt":
		parser, err := token.NewJWTParser(bytes.NewReader(keys[sc.PublicKey]))
		if err != nil {
			return nil, fmt.Errorf("failed to create jwt parser: %w", err)
		}
		return NewJWTScheme(parser), nil

	case "phantom-reference":
		parser, err := token.NewReferenceParser(bytes.NewReader(keys[sc.ReferencePublicKey]))
		if err != nil {
			return nil, fmt.Errorf("failed to create reference token parser: %w", err)
		}
		return NewPhantomReferenceScheme(getter, parser), nil

	case "oauth2-introspection":
		counters, maxCost := sc.CacheCounters, sc.CacheMaxCost
		if counters == 0 {
			counters = defaultCounter
		}
		if maxCost == 0 {
			maxCost = defaultMaxCost
		}
		c, err := cache.NewInMemory(counters, maxCost)
		if err != nil {
			return nil, fmt.Errorf("failed to create introspection cache: %w", err)
		}
		return NewOAuth2IntrospectionScheme(sc.IntrospectionURL, c, &http.Client{Timeout: 30 * time.Second}), nil
	}

	return nil, fmt.Errorf("unknown scheme type: %q", sc.Type)
}
