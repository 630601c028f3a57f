// Package cache provides the short-lived token/introspection cache used by
// authn: a ristretto in-memory cache sitting in front of the OAuth2
// introspection endpoint, so repeated calls bearing the same access token
// within its expiry window avoid a round trip.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

type (
	Cache interface {
		Get(key string) ([]byte, bool)
		Set(key string, value []byte, ttl time.Duration)
	}

	InMemory struct {
		cache *ristretto.Cache
	}
)

const bufferItems = 64

func NewInMemory(numCounters, maxCost int64) (*InMemory, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	return &InMemory{cache: c}, nil
}

func (c *InMemory) Get(key string) ([]byte, bool) {
	i, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}

	v, ok := i.([]byte)
	if !ok {
		return nil, false
	}

	return v, true
}

func (c *InMemory) Set(key string, value []byte, ttl time.Duration) {
	_ = c.cache.SetWithTTL(key, value, int64(len(value)), ttl)
}
