// Package ruleset decodes the YAML routing DSL into a router.Router plus,
// per route, the CORS policy, authentication scheme name, and rate-limit
// budget a gateway handler enforces before proxying, generalizing the
// donor's app/proxy/config.go, cors.go, auth.go and ratelimit.go (which
// kept these as siblings of a single-target route) onto router's
// replica-aware Route.
package ruleset

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/corvid-gateway/gateway/ratelimit"
	"github.com/corvid-gateway/gateway/router"
)

type (
	document struct {
		Routes []configRoute `yaml:"routes,flow"`
	}

	configRoute struct {
		Prefix         string           `yaml:"prefix"`
		Targets        []string         `yaml:"targets,flow"`
		Rewrite        *string          `yaml:"rewrite"`
		Authentication *string          `yaml:"authentication"`
		RateLimit      *configRateLimit `yaml:"rateLimit"`
		Cors           *configCors      `yaml:"cors"`
		Routes         []configRoute    `yaml:"routes,flow"`
	}

	configCors struct {
		Enabled          *bool     `yaml:"enabled"`
		OnlyPreflight    *bool     `yaml:"onlyPreflight"`
		AllowCredentials *bool     `yaml:"allowCredentials"`
		AllowedOrigins   *[]string `yaml:"allowedOrigins,flow"`
		AllowedHeaders   *[]string `yaml:"allowedHeaders,flow"`
		AllowedMethods   *[]string `yaml:"allowedMethods,flow"`
		ExposedHeaders   *[]string `yaml:"exposedHeaders,flow"`
	}

	configRateLimit struct {
		Enabled  *bool          `yaml:"enabled"`
		Limit    *uint64        `yaml:"limit"`
		Duration *time.Duration `yaml:"duration"`
	}

	// Rule is the per-route configuration attached to a router.Route via
	// its Attributes field: the authentication scheme to run, the
	// rate-limit budget to enforce, and the CORS policy to apply, each
	// inherited from the nearest configured ancestor when a nested route
	// leaves it unset.
	Rule struct {
		Prefix         string
		Authentication string
		RateLimit      ratelimit.Config
		Cors           Cors
	}
)

var (
	ErrInvalidRateLimit         = errors.New("invalid rate limit")
	ErrInvalidRateLimitDuration = errors.New("invalid rate limit duration")
	ErrNoTargets                = errors.New("route has no targets")
)

// Ruleset pairs a resolved router.Router with the Rule attached to each
// matched route.
type Ruleset struct {
	Router *router.Router
}

// Load decodes the YAML routing document and builds the Router and Rules
// it describes.
func Load(source []byte) (*Ruleset, error) {
	var doc document
	if err := yaml.Unmarshal(source, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode ruleset: %w", err)
	}

	r := router.NewRouter()
	if err := addRoutes(r, "/", nil, doc.Routes); err != nil {
		return nil, fmt.Errorf("failed to add routes: %w", err)
	}

	return &Ruleset{Router: r}, nil
}

// Resolve matches path and returns its router.Match alongside the Rule
// attached to the matched route.
func (rs *Ruleset) Resolve(p string) (router.Match, *Rule, bool) {
	m, ok := rs.Router.Resolve(p)
	if !ok {
		return router.Match{}, nil, false
	}
	rule, _ := m.Route.Attributes.(*Rule)
	return m, rule, true
}

func addRoutes(r *router.Router, base string, parent *Rule, routes []configRoute) error {
	for i := range routes {
		cr := &routes[i]
		if cr.Prefix == "" {
			continue
		}

		mountPoint := path.Join(base, cr.Prefix)

		targets, err := parseTargets(cr.Targets)
		if err != nil {
			return fmt.Errorf("route %q: %w", mountPoint, err)
		}

		rewrite := ""
		if cr.Rewrite != nil {
			rewrite = *cr.Rewrite
		}

		rule, err := inheritRule(mountPoint, parent, cr)
		if err != nil {
			return fmt.Errorf("route %q: %w", mountPoint, err)
		}

		if len(targets) > 0 {
			if err := rule.validate(); err != nil {
				return fmt.Errorf("route %q is invalid: %w", mountPoint, err)
			}

			if err := r.Add(mountPoint, &router.Route{
				Prefix:     mountPoint,
				Targets:    targets,
				Rewrite:    rewrite,
				Attributes: rule,
			}); err != nil {
				return err
			}
		}

		if err := addRoutes(r, mountPoint, rule, cr.Routes); err != nil {
			return err
		}
	}

	return nil
}

func parseTargets(raw []string) ([]*router.Target, error) {
	targets := make([]*router.Target, 0, len(raw))
	for _, t := range raw {
		u, err := url.Parse(t)
		if err != nil {
			return nil, fmt.Errorf("failed to parse target %q: %w", t, err)
		}
		targets = append(targets, &router.Target{URL: u})
	}
	return targets, nil
}

func inheritRule(prefix string, parent *Rule, cr *configRoute) (*Rule, error) {
	rule := &Rule{Prefix: prefix}

	if parent != nil {
		rule.Authentication = parent.Authentication
		rule.RateLimit = parent.RateLimit
		rule.Cors = parent.Cors
	}

	if cr.Authentication != nil {
		rule.Authentication = *cr.Authentication
	}

	rule.RateLimit = parseRateLimit(rule.RateLimit, cr.RateLimit)

	cors, err := parseCors(rule.Cors, cr.Cors)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cors: %w", err)
	}
	rule.Cors = cors

	return rule, nil
}

func parseRateLimit(base ratelimit.Config, cfg *configRateLimit) ratelimit.Config {
	if cfg == nil {
		return base
	}

	if cfg.Enabled != nil && !*cfg.Enabled {
		return ratelimit.Config{}
	}

	if cfg.Limit != nil {
		base.Limit = *cfg.Limit
	}
	if cfg.Duration != nil {
		base.Duration = *cfg.Duration
	}

	return base
}

func (r *Rule) validate() error {
	if r.RateLimit.Limit != 0 && r.RateLimit.Duration == 0 {
		return ErrInvalidRateLimitDuration
	}
	if r.RateLimit.Duration != 0 && r.RateLimit.Limit == 0 {
		return ErrInvalidRateLimit
	}
	return r.Cors.validate()
}
