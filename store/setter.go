package store

import (
	"context"
	"time"
)

type Setter interface {
	Del(context.Context, string) error
	Set(context.Context, string, string, time.Duration) error
}

// Store is the full read/write association backend a deployment chooses
// once at startup (MemoryStore or RedisStore) and that both the
// phantom-reference authentication scheme and the token-reference exchange
// endpoint share.
type Store interface {
	Getter
	Setter
}
