package token

import (
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt"

	"github.com/corvid-gateway/gateway/crypto"
)

type (
	JWT struct {
		token  *jwt.Token
		claims *Claims
	}

	JWTParser struct {
		publicKey *rsa.PublicKey
	}

	// Claims carried by a request-authentication JWT, beyond the standard
	// registered claims.
	Claims struct {
		jwt.StandardClaims
		Roles []string `json:"roles"`
	}
)

func (j *JWT) String() string { return j.token.Raw }

// Claims exposes the parsed claim set, so a request-authentication hook can
// forward roles/subject onward as headers the way the introspection
// authenticator forwards scope/audience.
func (j *JWT) Claims() *Claims { return j.claims }

func (c *Claims) validate() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return fmt.Errorf("failed to validate standard claims: %w", err)
	}
	return nil
}

func NewJWTParser(publicKey io.Reader) (*JWTParser, error) {
	p, err := crypto.ParsePublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return &JWTParser{publicKey: p}, nil
}

func (p *JWTParser) Parse(data string) (Token, error) {
	parsed, err := jwt.ParseWithClaims(data, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if err := claims.validate(); err != nil {
		return nil, fmt.Errorf("failed to validate claims: %w", err)
	}

	return &JWT{token: parsed, claims: claims}, nil
}
