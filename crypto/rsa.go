package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

var (
	ErrPemDecodeFailed = errors.New("failed to decode pem data")
	ErrNotAnRSAKey     = errors.New("key is not in RSA format")
)

// Sign computes the SHA-256 digest of message and signs it with key using
// PKCS#1 v1.5, the scheme the reference-token issuer relies on to make its
// opaque payloads unforgeable.
func Sign(message []byte, key *rsa.PrivateKey) ([]byte, error) {
	hashed := sha256.Sum256(message)

	s, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	return s, nil
}

// Verify reports whether signature is a valid PKCS#1 v1.5 signature of
// message under key.
func Verify(message, signature []byte, key *rsa.PublicKey) error {
	hashed := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, hashed[:], signature)
}

// ParsePublicKey reads a PEM-encoded PKIX public key.
func ParsePublicKey(source io.Reader) (*rsa.PublicKey, error) {
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from source: %w", err)
	}

	p, _ := pem.Decode(data)
	if p == nil {
		return nil, ErrPemDecodeFailed
	}
	if p.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("%w: %s", ErrNotAnRSAKey, p.Type)
	}

	r, err := x509.ParsePKIXPublicKey(p.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	key, ok := r.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotAnRSAKey
	}

	return key, nil
}

// ParsePrivateKey reads a PEM-encoded PKCS#1 RSA private key.
func ParsePrivateKey(source io.Reader) (*rsa.PrivateKey, error) {
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from source: %w", err)
	}

	p, _ := pem.Decode(data)
	if p == nil {
		return nil, ErrPemDecodeFailed
	}
	if p.Type != "RSA PRIVATE KEY" {
		return nil, fmt.Errorf("%w: %s", ErrNotAnRSAKey, p.Type)
	}

	r, err := x509.ParsePKCS1PrivateKey(p.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return r, nil
}
