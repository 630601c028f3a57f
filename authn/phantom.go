package authn

import (
	"context"
	"fmt"
	"net/http"

	"github.com/corvid-gateway/gateway/forwarder"
	"github.com/corvid-gateway/gateway/store"
	"github.com/corvid-gateway/gateway/token"
)

// PhantomReferenceScheme exchanges a short opaque reference token for the
// real value token it stands in for, so the real token never crosses the
// public edge, generalizing the donor's authentication.PhantomAuthenticator.
type PhantomReferenceScheme struct {
	getter          store.Getter
	referenceParser token.Parser
}

func NewPhantomReferenceScheme(getter store.Getter, referenceParser token.Parser) *PhantomReferenceScheme {
	return &PhantomReferenceScheme{getter: getter, referenceParser: referenceParser}
}

func (s *PhantomReferenceScheme) Authenticate(ctx context.Context, req forwarder.InboundRequest) (Identity, error) {
	raw, ok := bearerToken(req)
	if !ok {
		return Identity{}, reject(http.StatusUnauthorized, ErrBearerTokenMissing)
	}

	if _, err := s.referenceParser.Parse(raw); err != nil {
		return Identity{}, reject(http.StatusUnauthorized, fmt.Errorf("failed to parse reference token: %w", err))
	}

	value, err := s.getter.Get(ctx, raw)
	if err != nil {
		return Identity{}, reject(http.StatusUnauthorized, fmt.Errorf("failed to resolve reference token: %w", err))
	}

	return Identity{
		Set: forwarder.Headers{
			{Name: "Authorization", Value: "Bearer " + value},
			{Name: "X-Original-Authorization", Value: "Bearer " + raw},
		},
		Remove: []string{"Authorization", "X-Original-Authorization"},
	}, nil
}

var _ Scheme = (*PhantomReferenceScheme)(nil)
