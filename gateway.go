package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/corvid-gateway/gateway/authn"
	"github.com/corvid-gateway/gateway/forwarder"
	"github.com/corvid-gateway/gateway/httpnet"
	"github.com/corvid-gateway/gateway/ratelimit"
	"github.com/corvid-gateway/gateway/router"
	"github.com/corvid-gateway/gateway/ruleset"
)

// Gateway is the public-facing http.Handler: it resolves a route, enforces
// CORS, authentication and rate limiting ahead of the engine, then drives
// forwarder.ProxyEngine for whatever survives those checks. Rejections from
// any of the three gates happen here, never inside a Transforms.OnRequest
// hook, because the engine always maps a hook error to 502 regardless of
// cause.
type Gateway struct {
	engine   forwarder.ProxyEngine
	client   *httpnet.Client
	rules    *ruleset.Ruleset
	registry authn.Registry
	limiter  ratelimit.Strategy
	rateKey  ratelimit.KeyFunc
	logger   *log.Logger
}

func NewGateway(engine forwarder.ProxyEngine, client *httpnet.Client, rules *ruleset.Ruleset, registry authn.Registry, limiter ratelimit.Strategy, rateKey ratelimit.KeyFunc, logger *log.Logger) *Gateway {
	return &Gateway{
		engine:   engine,
		client:   client,
		rules:    rules,
		registry: registry,
		limiter:  limiter,
		rateKey:  rateKey,
		logger:   logger,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	match, rule, ok := g.rules.Resolve(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	sc := httpnet.NewServerContext(w, r, "")
	defer sc.Release()

	if rule != nil && rule.Cors.Enabled {
		if headers, handled := rule.Cors.HandlePreflight(sc.Request()); handled {
			writeHeaders(w, headers)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	var identity authn.Identity
	if rule != nil {
		scheme, err := g.registry.Lookup(rule.Authentication)
		if err != nil {
			authn.WriteRejection(w, err)
			return
		}
		identity, err = scheme.Authenticate(r.Context(), sc.Request())
		if err != nil {
			authn.WriteRejection(w, err)
			return
		}

		if rule.RateLimit.Limit > 0 {
			key := g.rateKey(sc.Request())
			result, checkErr := ratelimit.Check(r.Context(), g.limiter, key, rule.RateLimit)
			w.Header().Set(ratelimit.HeaderState, result.State.String())
			w.Header().Set(ratelimit.HeaderTotalRequests, strconv.FormatUint(result.TotalRequests, 10))
			if !result.ExpiresAt.IsZero() {
				w.Header().Set(ratelimit.HeaderExpiresAt, result.ExpiresAt.Format(time.RFC3339))
			}
			if checkErr != nil {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}
	}

	transforms := forwarder.Empty()
	transforms.OnRequest = combineRequestTransforms(rewritePathTransform(match), identity.Hook())
	if rule != nil && rule.Cors.Enabled {
		transforms.OnResponse = rule.Cors.OnResponseHook()
	}

	release := match.Target.Begin()
	defer release()

	destinationPrefix := match.Target.URL.String()
	if _, err := g.engine.Proxy(r.Context(), sc, destinationPrefix, g.client, transforms, forwarder.RequestProxyOptions{}); err != nil {
		g.logger.Printf("proxy: invalid call: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// rewritePathTransform overrides the outbound URI's path with the one
// router.Resolve already computed (applying a route's configured Rewrite),
// since forwarder.RequestBuilder otherwise defaults the path to the
// inbound request's own, unrewritten path.
func rewritePathTransform(match router.Match) forwarder.RequestTransformFunc {
	return func(_ context.Context, inbound forwarder.InboundContext, outbound *forwarder.OutboundRequest, destinationPrefix string) error {
		base, err := url.Parse(destinationPrefix)
		if err != nil {
			return err
		}
		joined := *base
		joined.Path = match.Path
		joined.RawQuery = inbound.Request().RawQuery()
		outbound.URI = &joined
		return nil
	}
}

func combineRequestTransforms(fns ...forwarder.RequestTransformFunc) forwarder.RequestTransformFunc {
	return func(ctx context.Context, inbound forwarder.InboundContext, outbound *forwarder.OutboundRequest, destinationPrefix string) error {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(ctx, inbound, outbound, destinationPrefix); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeHeaders(w http.ResponseWriter, headers forwarder.Headers) {
	for _, f := range headers {
		w.Header().Add(f.Name, f.Value)
	}
}
