package store

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Store is interface for backing storage.
type Store interface {
	// Get is to get a value by key. ErrNotFound if the key is missed or expired.
	// The returned slice must not be modified.
	Get(key string) (val []byte, err error)
	// Set is to set a value for a key with ttl provided. Zero ttl never expires.
	Set(key string, val []byte, ttl time.Duration) error
	// Update is to update a value for a key provided. ErrNotFound if the key is missed.
	Update(key string, val []byte, ttl time.Duration) error
	// Remove removes a value by key. ErrNotFound if the key is missed.
	Remove(key string) error
	// Keys returns a slice of live keys existent in underlying store.
	Keys() []string
	// Dump returns a copy of every live entry.
	Dump() []Entry
	// Restore inserts entries, replacing existing keys.
	Restore(entries []Entry)
}

// Entry is a stored value with its expiration time.
// Zero ExpiresAt never expires.
type Entry struct {
	Key       string
	Val       []byte
	ExpiresAt time.Time
}

// Expired reports whether e is expired at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

var (
	// ErrNotFound returned when there is not value for a key or it is expired.
	ErrNotFound = errors.New("not found")
)
