package secret

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
)

// EnvSource reads a secret from an environment variable, base64-decoding it
// when possible and falling back to the raw value otherwise. Handy for
// local development and CI where neither a file nor Secret Manager access
// is available.
type EnvSource struct{}

func NewEnvSource() *EnvSource { return &EnvSource{} }

var ErrSecretNotFound = errors.New("secret not found")

func (s *EnvSource) Get(_ context.Context, name string) (Secret, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil, ErrSecretNotFound
	}

	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}

	return []byte(v), nil
}
