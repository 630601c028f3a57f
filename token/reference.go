package token

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/corvid-gateway/gateway/crypto"
)

type (
	// Reference is the opaque token minted in place of a caller's real
	// access token by the phantom-token exchange: an unguessable random
	// payload plus a signature over it, so a holder can prove it was issued
	// by this gateway without the payload itself meaning anything.
	Reference struct {
		message   []byte
		signature []byte
	}

	ReferenceIssuer struct {
		privateKey *rsa.PrivateKey
	}

	ReferenceParser struct {
		publicKey *rsa.PublicKey
	}
)

// referenceMessageSize is the length of the random payload; the signature
// in front of it is as long as the signing key's modulus.
const referenceMessageSize = 16

func (r *Reference) String() string {
	buf := make([]byte, 0, len(r.signature)+len(r.message))
	buf = append(buf, r.signature...)
	buf = append(buf, r.message...)
	return base64.StdEncoding.EncodeToString(buf)
}

func NewReferenceIssuer(privateKey io.Reader) (*ReferenceIssuer, error) {
	p, err := crypto.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &ReferenceIssuer{privateKey: p}, nil
}

func (i *ReferenceIssuer) Issue() (Token, error) {
	m, err := crypto.RandomBytes(referenceMessageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain random bytes: %w", err)
	}

	s, err := crypto.Sign(m, i.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	return &Reference{message: m, signature: s}, nil
}

func NewReferenceParser(publicKey io.Reader) (*ReferenceParser, error) {
	p, err := crypto.ParsePublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &ReferenceParser{publicKey: p}, nil
}

func (p *ReferenceParser) Parse(data string) (Token, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 data: %w", err)
	}

	signatureSize := p.publicKey.Size()
	if len(b) != signatureSize+referenceMessageSize {
		return nil, ErrTokenInvalid
	}

	r := Reference{
		signature: b[:signatureSize],
		message:   b[signatureSize:],
	}

	if err := crypto.Verify(r.message, r.signature, p.publicKey); err != nil {
		return nil, fmt.Errorf("failed to verify reference token: %w", err)
	}

	return &r, nil
}
