package domain

import "context"

// LocalStore is the device-local key/value store (primary persistence target).
// Get reports false when the key is absent.
type LocalStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// RemoteStore is the account-scoped key/value store. It is only used while a
// user is signed in, and every call may fail or block on the network.
type RemoteStore interface {
	Get(ctx context.Context, uid, key string) ([]byte, bool, error)
	Set(ctx context.Context, uid, key string, value []byte) error
	Close() error
}

// MetadataResolver backfills item data when a caller supplies a bare id
type MetadataResolver interface {
	Resolve(ctx context.Context, key ItemKey) (*ItemData, error)
}
