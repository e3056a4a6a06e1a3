// Package cache stores short-lived read projections such as the public
// catalog. Implementations: Memory (single process) and Redis (shared).
package cache

import (
	"context"
	"time"
)

// Cache is a byte-valued TTL cache.
type Cache interface {
	// Get retrieves a value by key. Returns ErrMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Error is a sentinel cache error.
type Error string

func (e Error) Error() string { return string(e) }

// ErrMiss indicates the key was not found or has expired.
const ErrMiss Error = "cache miss"

// Nop never stores anything; every Get misses.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error                     { return nil }
