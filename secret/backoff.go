package secret

import (
	"context"
	"fmt"
	"time"
)

// BackoffSource retries an underlying Source on failure, waiting between
// attempts and giving up early if ctx is canceled.
type BackoffSource struct {
	tries   int
	backoff time.Duration
	source  Source
}

func NewBackoffSource(tries int, backoff time.Duration, source Source) *BackoffSource {
	return &BackoffSource{tries: tries, backoff: backoff, source: source}
}

func (s *BackoffSource) Get(ctx context.Context, name string) (Secret, error) {
	var err error

	for i := 0; i < s.tries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff):
			}
		}

		var secret Secret
		if secret, err = s.source.Get(ctx, name); err == nil {
			return secret, nil
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", s.tries, err)
}
