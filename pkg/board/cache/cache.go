// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache provides the TTL cache shared by fetchers and icon sources.
//
// The cache is an explicit instance owned by the application root and passed
// to its consumers. Entries expire lazily: a read that finds an expired entry
// deletes it and reports a miss. There is no background sweep.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default TTLs by resource class.
const (
	// UserTTL keeps the signed-in user short-lived so logout shows quickly.
	UserTTL = 60 * time.Second

	// IconsTTL covers the icon directory listing.
	IconsTTL = time.Hour

	// SectionsBulkTTL covers root sections served by the bulk endpoint.
	SectionsBulkTTL = 300 * time.Second

	// SectionsFallbackTTL covers root sections assembled call by call.
	SectionsFallbackTTL = 180 * time.Second

	// DashboardBulkTTL covers a dashboard tree served by the bulk endpoint.
	DashboardBulkTTL = 180 * time.Second

	// DashboardFallbackTTL covers a dashboard tree assembled call by call.
	DashboardFallbackTTL = 90 * time.Second
)

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// Event names reported to an Observer.
const (
	EventHit        = "hit"
	EventMiss       = "miss"
	EventExpired    = "expired"
	EventSet        = "set"
	EventInvalidate = "invalidate"
)

// Observer receives cache events, typically to feed metrics.
type Observer interface {
	CacheEvent(event string, key string)
}

// Entry is a cached value with its insertion time and TTL.
type Entry struct {
	Value      any
	InsertedAt time.Time
	TTL        time.Duration
}

// IsExpired reports whether the entry is stale at now.
func (e Entry) IsExpired(now time.Time) bool {
	return now.Sub(e.InsertedAt) > e.TTL
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Entries       int
	Hits          int64
	Misses        int64
	Expirations   int64
	Invalidations int64
}

// HitRate returns hits as a percentage of lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source.
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		c.observer = o
	}
}

// Cache is a keyed TTL store.
//
// # Thread Safety
//
// Cache is safe for concurrent use. Concurrent Set calls on one key resolve
// last-writer-wins.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	now      Clock
	observer Observer

	hits          int64
	misses        int64
	expirations   int64
	invalidations int64
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key, or false when absent or expired.
//
// An expired entry is deleted before returning.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		atomic.AddInt64(&c.misses, 1)
		c.emit(EventMiss, key)
		return nil, false
	}
	if entry.IsExpired(c.now()) {
		delete(c.entries, key)
		c.mu.Unlock()
		atomic.AddInt64(&c.expirations, 1)
		atomic.AddInt64(&c.misses, 1)
		c.emit(EventExpired, key)
		return nil, false
	}
	c.mu.Unlock()

	atomic.AddInt64(&c.hits, 1)
	c.emit(EventHit, key)
	return entry.Value, true
}

// Set stores value under key, replacing any existing entry and its TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry{Value: value, InsertedAt: c.now(), TTL: ttl}
	c.mu.Unlock()
	c.emit(EventSet, key)
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	if ok {
		atomic.AddInt64(&c.invalidations, 1)
		c.emit(EventInvalidate, key)
	}
}

// InvalidateMatching removes every key containing pattern and returns how
// many were removed.
func (c *Cache) InvalidateMatching(pattern string) int {
	c.mu.Lock()
	var removed []string
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
			removed = append(removed, key)
		}
	}
	c.mu.Unlock()

	atomic.AddInt64(&c.invalidations, int64(len(removed)))
	for _, key := range removed {
		c.emit(EventInvalidate, key)
	}
	return len(removed)
}

// Clear removes everything. Each removed key is reported as an
// invalidation.
func (c *Cache) Clear() {
	c.mu.Lock()
	removed := make([]string, 0, len(c.entries))
	for key := range c.entries {
		removed = append(removed, key)
	}
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	atomic.AddInt64(&c.invalidations, int64(len(removed)))
	for _, key := range removed {
		c.emit(EventInvalidate, key)
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:       c.Len(),
		Hits:          atomic.LoadInt64(&c.hits),
		Misses:        atomic.LoadInt64(&c.misses),
		Expirations:   atomic.LoadInt64(&c.expirations),
		Invalidations: atomic.LoadInt64(&c.invalidations),
	}
}

func (c *Cache) emit(event, key string) {
	if c.observer != nil {
		c.observer.CacheEvent(event, key)
	}
}

// GetAs returns the cached value for key when it holds a T.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
