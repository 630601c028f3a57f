// Package crypto wraps the RSA-PKCS1v15 signing primitives used by the
// reference-token issuer and parser in token, and the random byte source
// used to mint new reference token payloads.
package crypto

import "crypto/rand"

// RandomBytes returns n cryptographically random bytes, used by the
// reference token issuer to generate an unguessable opaque payload.
func RandomBytes(n uint) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
