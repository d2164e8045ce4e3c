// Package vault owns the holder's device-local secure state: raw field values
// keyed per (subjectName, fieldType) plus the singleton slots for the active
// subject name and the verified owner address. The backing store is a
// capability interface so OS credential stores, encrypted files, and the
// in-memory test implementation are interchangeable.
package vault

import "context"

// Store is the secure key/value capability the vault builds on.
type Store interface {
	// Get returns the value for key, with ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
