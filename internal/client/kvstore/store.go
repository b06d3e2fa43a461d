// Package kvstore is the persistent key-value layer under the entity cache
// and the mutation queue. Values are opaque byte blobs written and read
// whole.
package kvstore

import "context"

// Store is a flat key-value namespace.
type Store interface {
	// Get returns the value for key, or (nil, nil) if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
