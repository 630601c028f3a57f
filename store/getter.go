// Package store abstracts the key-value association the phantom-token
// exchange uses to map an issued reference token back to the caller's real
// value token, with a Redis-backed implementation for production and an
// in-memory one for tests and single-process deployments.
package store

import "context"

type Getter interface {
	Get(context.Context, string) (string, error)
}
