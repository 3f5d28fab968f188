package tronaddr

import (
	lru "github.com/hashicorp/golang-lru"
)

// defaultCacheSize bounds the encode cache. Batch verification runs touch the
// same exchange addresses repeatedly, so a small cache covers most lookups.
const defaultCacheSize = 20000

// Encoder caches base58check encodings. Base58check requires two SHA256
// passes per address, which adds up when rendering large result sets.
type Encoder struct {
	cache *lru.Cache
}

// NewEncoder creates an Encoder with the default cache size.
func NewEncoder() *Encoder {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		// lru.New only fails on non-positive size.
		panic(err)
	}
	return &Encoder{cache: cache}
}

// Base58 returns the base58check form of a, consulting the cache first.
func (e *Encoder) Base58(a Address) string {
	key := string(a[:])
	if v, ok := e.cache.Get(key); ok {
		return v.(string)
	}
	s := a.Base58()
	e.cache.Add(key, s)
	return s
}
