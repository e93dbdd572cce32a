// Package clipcache deduplicates audio clip decodes by file path.
//
// Decoded clips are kept for the lifetime of the process. The vocal clip
// corpus is small, so nothing is ever evicted. Concurrent loads of the same
// path collapse into a single decode; loads of different paths never block
// each other.
//
// A decode is shared by every caller waiting for it, so it ignores the
// cancellation of the caller that started it. Only the lifetime context given
// to [WithLifetime] cancels decodes in flight.
package clipcache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/vocalswap/internal/naming"
	"github.com/MrWong99/vocalswap/internal/observe"
	"github.com/MrWong99/vocalswap/pkg/sfx"
)

// ClipDecodeError reports a clip that could not be loaded: missing file,
// unsupported extension, corrupt data or a cancelled decode.
type ClipDecodeError struct {
	Path string
	Err  error
}

func (e *ClipDecodeError) Error() string {
	return fmt.Sprintf("clipcache: decode %q: %v", e.Path, e.Err)
}

func (e *ClipDecodeError) Unwrap() error { return e.Err }

// Option configures a [Cache].
type Option func(*Cache)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLifetime sets the context whose cancellation aborts decodes in flight.
// Defaults to [context.Background].
func WithLifetime(ctx context.Context) Option {
	return func(c *Cache) { c.lifetime = ctx }
}

// Cache maps normalized absolute paths to decoded clips.
// It is safe for concurrent use.
type Cache struct {
	decoder  sfx.Decoder
	metrics  *observe.Metrics
	lifetime context.Context

	mu    sync.RWMutex
	clips map[string]*sfx.Clip

	group singleflight.Group
}

// New creates an empty cache backed by decoder.
func New(decoder sfx.Decoder, opts ...Option) *Cache {
	c := &Cache{
		decoder:  decoder,
		lifetime: context.Background(),
		clips:    make(map[string]*sfx.Clip),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Key returns the cache key of path: normalized, absolute and clean.
func Key(path string) (string, error) {
	abs, err := filepath.Abs(naming.NormalizePath(path))
	if err != nil {
		return "", err
	}
	return abs, nil
}

// GetOrLoad returns the clip at path, decoding it on first use. Failures are
// returned as *[ClipDecodeError] and are not cached, so a later call retries.
func (c *Cache) GetOrLoad(ctx context.Context, path string) (*sfx.Clip, error) {
	key, err := Key(path)
	if err != nil {
		return nil, &ClipDecodeError{Path: path, Err: err}
	}

	c.mu.RLock()
	clip, ok := c.clips[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.ClipCacheHits.Add(ctx, 1)
		return clip, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent load may have finished between the read above and
		// entering the flight.
		c.mu.RLock()
		clip, ok := c.clips[key]
		c.mu.RUnlock()
		if ok {
			return clip, nil
		}
		fctx, cancel := c.flightContext(ctx)
		defer cancel()
		return c.load(fctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*sfx.Clip), nil
}

// flightContext keeps the values of ctx, such as the active span, and takes
// its cancellation from the cache lifetime.
func (c *Cache) flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.lifetime, cancel)
	return fctx, func() {
		stop()
		cancel()
	}
}

func (c *Cache) load(ctx context.Context, key string) (*sfx.Clip, error) {
	format, err := naming.FormatFromPath(key)
	if err != nil {
		c.metrics.RecordClipLoad(ctx, "error", 0)
		slog.Warn("clipcache: unsupported clip", "path", key, "err", err)
		return nil, &ClipDecodeError{Path: key, Err: err}
	}

	start := time.Now()
	clip, err := c.decoder.Decode(ctx, key, format)
	if err == nil && clip == nil {
		err = fmt.Errorf("decoder returned no clip")
	}
	elapsed := time.Since(start).Seconds()
	if err != nil {
		c.metrics.RecordClipLoad(ctx, "error", elapsed)
		slog.Warn("clipcache: failed to load clip", "path", key, "err", err)
		return nil, &ClipDecodeError{Path: key, Err: err}
	}
	c.metrics.RecordClipLoad(ctx, "ok", elapsed)

	c.mu.Lock()
	c.clips[key] = clip
	c.mu.Unlock()
	c.metrics.CachedClips.Add(ctx, 1)
	slog.Debug("clipcache: loaded clip", "path", key, "format", format, "duration", clip.Duration())
	return clip, nil
}

// Len returns the number of cached clips.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clips)
}
