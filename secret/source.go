// Package secret loads the RSA key material used by token signing and
// verification from one of several backends: Google Secret Manager in
// production, a local file or environment variable for development. Only
// the Secret Manager source is wrapped by the retrying BackoffSource.
package secret

import "context"

type (
	Secret = []byte

	Source interface {
		Get(context.Context, string) (Secret, error)
	}
)
