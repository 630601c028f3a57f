package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/corvid-gateway/gateway/cache"
	"github.com/corvid-gateway/gateway/forwarder"
)

type (
	// Scope and Audience tolerate the two wire shapes RFC 7662
	// implementations disagree on: a space-delimited string, or a JSON
	// array.
	Scope    []string
	Audience []string

	introspection struct {
		Active    bool                   `json:"active"`
		Extra     map[string]interface{} `json:"ext"`
		Subject   string                 `json:"sub,omitempty"`
		Username  string                 `json:"username"`
		Audience  Audience               `json:"aud,omitempty"`
		TokenType string                 `json:"token_type"`
		Issuer    string                 `json:"iss"`
		ClientID  string                 `json:"client_id,omitempty"`
		Scope     Scope                  `json:"scope,omitempty"`
		Expires   int64                  `json:"exp"`
	}

	// OAuth2IntrospectionScheme validates a bearer token against an RFC
	// 7662 token introspection endpoint, caching active results for a
	// short window so repeated calls bearing the same token don't each
	// pay the round trip, generalizing the donor's
	// app/authentication/oauth2_introspection.go.
	OAuth2IntrospectionScheme struct {
		client  *http.Client
		cache   cache.Cache
		baseURL string
	}
)

const introspectionCacheTTL = time.Minute

func (s *Scope) UnmarshalJSON(b []byte) error {
	var joined string
	if err := json.Unmarshal(b, &joined); err == nil {
		*s = strings.Fields(joined)
		return nil
	}
	var fields []string
	if err := json.Unmarshal(b, &fields); err == nil {
		*s = fields
		return nil
	}
	return fmt.Errorf("invalid scope value")
}

func (a *Audience) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*a = Audience{single}
		return nil
	}
	var multiple []string
	if err := json.Unmarshal(b, &multiple); err == nil {
		*a = multiple
		return nil
	}
	return fmt.Errorf("invalid audience value")
}

func NewOAuth2IntrospectionScheme(baseURL string, tokenCache cache.Cache, client *http.Client) *OAuth2IntrospectionScheme {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuth2IntrospectionScheme{baseURL: baseURL, cache: tokenCache, client: client}
}

func (s *OAuth2IntrospectionScheme) Authenticate(ctx context.Context, req forwarder.InboundRequest) (Identity, error) {
	raw, ok := bearerToken(req)
	if !ok {
		return Identity{}, reject(http.StatusUnauthorized, ErrBearerTokenMissing)
	}

	i, err := s.lookup(ctx, raw)
	if err != nil {
		return Identity{}, reject(http.StatusUnauthorized, err)
	}

	if !i.Active {
		return Identity{}, reject(http.StatusUnauthorized, fmt.Errorf("token is inactive"))
	}
	if i.Expires > 0 && time.Unix(i.Expires, 0).Before(time.Now()) {
		return Identity{}, reject(http.StatusUnauthorized, fmt.Errorf("token is expired"))
	}

	set := forwarder.Headers{
		{Name: "X-Issuer", Value: i.Issuer},
		{Name: "X-Subject", Value: i.Subject},
		{Name: "X-Client-ID", Value: i.ClientID},
	}
	for _, scope := range i.Scope {
		set = append(set, forwarder.HeaderField{Name: "X-Scope", Value: scope})
	}
	for _, aud := range i.Audience {
		set = append(set, forwarder.HeaderField{Name: "X-Audience", Value: aud})
	}

	return Identity{
		Set:    set,
		Remove: []string{"X-Issuer", "X-Subject", "X-Client-ID", "X-Scope", "X-Audience"},
	}, nil
}

func (s *OAuth2IntrospectionScheme) lookup(ctx context.Context, raw string) (*introspection, error) {
	if cached, ok := s.cache.Get(raw); ok {
		var i introspection
		if err := json.Unmarshal(cached, &i); err == nil {
			return &i, nil
		}
	}

	i, err := s.introspect(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect token: %w", err)
	}

	if i.Active {
		if encoded, err := json.Marshal(i); err == nil {
			s.cache.Set(raw, encoded, introspectionCacheTTL)
		}
	}

	return i, nil
}

func (s *OAuth2IntrospectionScheme) introspect(ctx context.Context, token string) (*introspection, error) {
	body := url.Values{"token": {token}}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make introspection request: %w", err)
	}
	defer resp.Body.Close()

	var i introspection
	if err := json.NewDecoder(resp.Body).Decode(&i); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}

	return &i, nil
}

var _ Scheme = (*OAuth2IntrospectionScheme)(nil)
