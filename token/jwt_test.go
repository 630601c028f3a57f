package token

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
)

func generateJWTKeyPair(t *testing.T) (publicPEM []byte, key *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), key
}

func signTestJWT(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return signed
}

func TestJWTParserAcceptsValidToken(t *testing.T) {
	publicPEM, key := generateJWTKeyPair(t)
	parser, err := NewJWTParser(bytes.NewReader(publicPEM))
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}

	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   "user-1",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		Roles: []string{"admin"},
	}

	parsed, err := parser.Parse(signTestJWT(t, key, claims))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jwtToken, ok := parsed.(*JWT)
	if !ok {
		t.Fatalf("expected *JWT, got %T", parsed)
	}
	if jwtToken.Claims().Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", jwtToken.Claims().Subject)
	}
	if len(jwtToken.Claims().Roles) != 1 || jwtToken.Claims().Roles[0] != "admin" {
		t.Fatalf("unexpected roles: %v", jwtToken.Claims().Roles)
	}
}

func TestJWTParserRejectsExpiredToken(t *testing.T) {
	publicPEM, key := generateJWTKeyPair(t)
	parser, err := NewJWTParser(bytes.NewReader(publicPEM))
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}

	claims := Claims{StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Hour).Unix()}}

	if _, err := parser.Parse(signTestJWT(t, key, claims)); err == nil {
		t.Fatalf("expected an expired token to be rejected")
	}
}

func TestJWTParserRejectsWrongSigningKey(t *testing.T) {
	publicPEM, _ := generateJWTKeyPair(t)
	_, otherKey := generateJWTKeyPair(t)
	parser, err := NewJWTParser(bytes.NewReader(publicPEM))
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}

	claims := Claims{StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()}}

	if _, err := parser.Parse(signTestJWT(t, otherKey, claims)); err == nil {
		t.Fatalf("expected a token signed by an unrelated key to be rejected")
	}
}
