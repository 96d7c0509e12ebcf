// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package icons lists the icon files offered by the card form.
//
// Sources return bare file names ("logo.png"), sorted. The local directory
// source is paired with a Watcher that drops the cached listing when the
// directory changes; the bucket source relies on the cache TTL alone.
package icons

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/anhmake/dashhub/pkg/board/cache"
)

// ErrUnavailable wraps failures to read the icon listing.
var ErrUnavailable = errors.New("icon listing unavailable")

// imageExts are the extensions served as icons, matched case-insensitively.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".svg":  true,
}

// IsImage reports whether name has an icon extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Source lists icon file names.
type Source interface {
	List(ctx context.Context) ([]string, error)
}

// =============================================================================
// Directory
// =============================================================================

// DirSource lists image files directly inside a directory.
type DirSource struct {
	dir string
}

// NewDirSource creates a source over dir. The directory is read on every
// List call.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Dir returns the listed directory.
func (s *DirSource) Dir() string { return s.dir }

// List implements Source.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// =============================================================================
// Cloud Storage bucket
// =============================================================================

// objectIterator is the subset of *storage.ObjectIterator used here.
type objectIterator interface {
	Next() (*storage.ObjectAttrs, error)
}

// BucketSource lists image objects under a prefix in a GCS bucket.
//
// # Thread Safety
//
// Safe for concurrent use.
type BucketSource struct {
	client *storage.Client
	bucket string
	prefix string

	objects func(ctx context.Context, q *storage.Query) objectIterator
}

// NewBucketSource connects to GCS.
//
// # Inputs
//
//   - bucket: bucket name.
//   - prefix: object prefix, e.g. "icons/". Names are returned without it.
//   - credentialsFile: service account key; empty uses application
//     default credentials.
func NewBucketSource(ctx context.Context, bucket, prefix, credentialsFile string) (*BucketSource, error) {
	if bucket == "" {
		return nil, errors.New("icons: bucket name is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	s := &BucketSource{client: client, bucket: bucket, prefix: prefix}
	s.objects = func(ctx context.Context, q *storage.Query) objectIterator {
		return client.Bucket(bucket).Objects(ctx, q)
	}
	return s, nil
}

// List implements Source.
func (s *BucketSource) List(ctx context.Context) ([]string, error) {
	it := s.objects(ctx, &storage.Query{Prefix: s.prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: list gs://%s/%s: %v", ErrUnavailable, s.bucket, s.prefix, err)
		}
		name := strings.TrimPrefix(attrs.Name, s.prefix)
		// Nested "directories" are not icons.
		if name == "" || strings.Contains(name, "/") || !IsImage(name) {
			continue
		}
		names = append(names, path.Base(name))
	}
	sort.Strings(names)
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Close releases the storage client.
func (s *BucketSource) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// =============================================================================
// Cached
// =============================================================================

// CacheKey is the key the cached listing lives under.
const CacheKey = "icons"

// Cached memoizes a Source in a shared cache for cache.IconsTTL.
type Cached struct {
	src    Source
	cache  *cache.Cache
	logger *slog.Logger
}

// NewCached wraps src. A nil logger uses slog.Default().
func NewCached(src Source, c *cache.Cache, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{src: src, cache: c, logger: logger}
}

// List returns the cached listing, loading it on a miss. Failures are not
// cached.
func (c *Cached) List(ctx context.Context) ([]string, error) {
	if names, ok := cache.GetAs[[]string](c.cache, CacheKey); ok {
		return names, nil
	}
	names, err := c.src.List(ctx)
	if err != nil {
		c.logger.Error("failed to list icons", "error", err)
		return nil, err
	}
	c.cache.Set(CacheKey, names, cache.IconsTTL)
	return names, nil
}

// Invalidate drops the cached listing.
func (c *Cached) Invalidate() {
	c.cache.Invalidate(CacheKey)
}

var (
	_ Source = (*DirSource)(nil)
	_ Source = (*BucketSource)(nil)
	_ Source = (*Cached)(nil)
)
