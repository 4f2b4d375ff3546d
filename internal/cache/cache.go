// Package cache stores fetched page text so repeated claims do not refetch sources.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// PageKey derives the cache key for a page's extracted text.
// The text limit is part of the key so a changed limit never serves stale truncations.
func PageKey(url string, maxChars int) string {
	hash := sha256.Sum256([]byte(url))
	return "verity-page-v1-" + strconv.Itoa(maxChars) + "-" + hex.EncodeToString(hash[:])
}

// Nop is a cache that never stores anything
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)               { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }
