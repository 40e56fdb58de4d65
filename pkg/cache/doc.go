// Package cache provides a generic, thread-safe LRU cache with optional
// time-based expiry, used to keep last-known-good copies of data fetched from
// remote services.
//
//	profiles := cache.NewLRUCache[uuid.UUID, identity.Profile](10_000, cache.WithTTL(24*time.Hour))
//	profiles.Put(id, profile)
//	p, ok := profiles.Get(id)
//
// Get, Put and Remove are O(1). Expired entries are removed lazily on access
// and otherwise age out through LRU eviction.
package cache
