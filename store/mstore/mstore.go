// Package mstore implements store.Store in memory. Keys are spread over
// buckets by murmur3 hash, each bucket guarded by its own lock.
package mstore

import (
	"bytes"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/marcybelardo/lilykv/store"

	log "github.com/marcybelardo/lilykv/logger"
)

const (
	defaultBucketsNum    = 16
	defaultPurgeInterval = 5 * time.Second
)

// New returns a running store. Zero arguments take defaults.
// Call Close to stop the background purger.
func New(bucketsNum int, purgeInterval time.Duration) *MStore {
	if bucketsNum <= 0 {
		bucketsNum = defaultBucketsNum
	}
	if purgeInterval <= 0 {
		purgeInterval = defaultPurgeInterval
	}

	buckets := make([]*bucket, bucketsNum)
	for i := range buckets {
		buckets[i] = newBucket()
	}

	m := &MStore{
		buckets: buckets,
		purger:  newPurger(purgeInterval),
	}

	go m.startPurger()

	return m
}

// MStore implements store.Store.
type MStore struct {
	buckets []*bucket
	purger  *purger
}

var _ store.Store = (*MStore)(nil)

func (m *MStore) bucketsNum() int {
	return len(m.buckets)
}

func (m *MStore) getBucket(key string) *bucket {
	return m.buckets[m.hash([]byte(key))]
}

func (m *MStore) hash(k []byte) uint64 {
	return murmur3.Sum64(k) % uint64(m.bucketsNum())
}

type bucket struct {
	s map[string]*entry

	mu sync.RWMutex
}

func newBucket() *bucket {
	return &bucket{
		s: make(map[string]*entry),
	}
}

func (m *MStore) startPurger() {
	ticker := time.NewTicker(m.purger.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.purger.quit:
			close(m.purger.done)
			return
		case <-ticker.C:
			for _, b := range m.buckets {
				m.purger.purgeStaleKeys(b)
			}
		}
	}
}

// Close stops the purger. The store stays usable.
func (m *MStore) Close() error {
	m.purger.once.Do(func() {
		close(m.purger.quit)
	})
	<-m.purger.done
	return nil
}

func (m *MStore) Get(key string) ([]byte, error) {
	b := m.getBucket(key)
	b.mu.RLock()
	e, ok := b.s[key]
	b.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		return nil, store.ErrNotFound
	}

	return e.val, nil
}

func getTTL(t time.Duration) time.Time {
	if t <= 0 {
		return time.Time{}
	}

	return time.Now().Add(t)
}

func (m *MStore) Set(key string, val []byte, t time.Duration) error {
	log.Trace("set %q (%d bytes) ttl %v", key, len(val), t)
	b := m.getBucket(key)
	e := &entry{val: bytes.Clone(val), ttl: getTTL(t)}

	b.mu.Lock()
	b.s[key] = e
	b.mu.Unlock()

	return nil
}

func (m *MStore) Update(key string, val []byte, t time.Duration) error {
	b := m.getBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.s[key]
	if !ok || e.expired(time.Now()) {
		return store.ErrNotFound
	}

	b.s[key] = &entry{val: bytes.Clone(val), ttl: getTTL(t)}

	return nil
}

func (m *MStore) Remove(key string) error {
	b := m.getBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.s[key]
	if !ok {
		return store.ErrNotFound
	}

	delete(b.s, key)
	if e.expired(time.Now()) {
		return store.ErrNotFound
	}

	return nil
}

func (m *MStore) Keys() (keys []string) {
	now := time.Now()
	for _, b := range m.buckets {
		b.mu.RLock()
		for k, e := range b.s {
			if !e.expired(now) {
				keys = append(keys, k)
			}
		}
		b.mu.RUnlock()
	}

	return
}

func (m *MStore) Dump() (entries []store.Entry) {
	now := time.Now()
	for _, b := range m.buckets {
		b.mu.RLock()
		for k, e := range b.s {
			if !e.expired(now) {
				entries = append(entries, store.Entry{Key: k, Val: e.val, ExpiresAt: e.ttl})
			}
		}
		b.mu.RUnlock()
	}

	return
}

func (m *MStore) Restore(entries []store.Entry) {
	for _, se := range entries {
		b := m.getBucket(se.Key)
		b.mu.Lock()
		b.s[se.Key] = &entry{val: bytes.Clone(se.Val), ttl: se.ExpiresAt}
		b.mu.Unlock()
	}
}

type purger struct {
	interval time.Duration
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func newPurger(interval time.Duration) *purger {
	return &purger{
		interval: interval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *purger) purgeStaleKeys(b *bucket) {
	now := time.Now()

	b.mu.Lock()
	for k, e := range b.s {
		if e.expired(now) {
			delete(b.s, k)
		}
	}
	b.mu.Unlock()
}

// entry values are never mutated in place; updates swap the pointer.
type entry struct {
	val []byte
	ttl time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.ttl.IsZero() && !now.Before(e.ttl)
}
