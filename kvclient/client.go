// Package kvclient is the remote key-value collaborator the backup
// and restore routines depend on: Connect/Put/Get/Out(delete)/
// GetForwardMatchKeys(prefix scan)/Optimize. This package supplies a
// concrete gRPC-transport implementation (google.golang.org/grpc) plus
// an in-memory fake for tests.
package kvclient

import "context"

// Client is the remote KV surface the backup and restore routines
// depend on.
type Client interface {
	// Connect dials addr. Callers are expected to bound this with a
	// context deadline (a 5-minute connect timeout).
	Connect(ctx context.Context, addr string) error

	Put(ctx context.Context, key string, value []byte) error

	// Get returns found=false rather than an error when key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Out deletes key. Deleting an absent key is not an error.
	Out(ctx context.Context, key string) error

	// GetForwardMatchKeys prefix-scans for keys starting with prefix,
	// invoking sink for each in ascending order up to limit (0 = no
	// limit); sink returning false stops the scan early.
	GetForwardMatchKeys(ctx context.Context, prefix string, limit int, sink func(key string) bool) error

	// Optimize asks the store to reclaim space freed by prior deletes.
	Optimize(ctx context.Context) error

	Close() error
}
