package authn

import (
	"context"
	"fmt"
	"net/http"

	"github.com/corvid-gateway/gateway/forwarder"
	"github.com/corvid-gateway/gateway/token"
)

// JWTScheme verifies a caller-presented JWT against a configured public
// key and forwards the subject and roles as headers, generalizing the
// donor's root-level token.JWTParser usage in main.go.
type JWTScheme struct {
	parser token.Parser
}

func NewJWTScheme(parser token.Parser) *JWTScheme {
	return &JWTScheme{parser: parser}
}

func (s *JWTScheme) Authenticate(_ context.Context, req forwarder.InboundRequest) (Identity, error) {
	raw, ok := bearerToken(req)
	if !ok {
		return Identity{}, reject(http.StatusUnauthorized, ErrBearerTokenMissing)
	}

	parsed, err := s.parser.Parse(raw)
	if err != nil {
		return Identity{}, reject(http.StatusUnauthorized, fmt.Errorf("failed to parse JWT: %w", err))
	}

	jwtToken, ok := parsed.(*token.JWT)
	if !ok {
		return Identity{}, reject(http.StatusUnauthorized, token.ErrTokenInvalid)
	}

	claims := jwtToken.Claims()

	set := forwarder.Headers{{Name: "X-Subject", Value: claims.Subject}}
	for _, role := range claims.Roles {
		set = append(set, forwarder.HeaderField{Name: "X-Role", Value: role})
	}

	return Identity{Set: set, Remove: []string{"X-Subject", "X-Role"}}, nil
}

var _ Scheme = (*JWTScheme)(nil)
