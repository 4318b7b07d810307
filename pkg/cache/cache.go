// Package cache stores rendered figures so repeated requests for the same
// trial table and chart options skip the analysis and the export.
//
// Three stores implement [Cache]:
//   - [FileCache]: one JSON file per entry, for the CLI
//   - [RedisCache]: shared entries for several server instances
//   - [NullCache]: caching disabled
//
// Keys come from a [Keyer] so callers never build key strings by hand.
// [Observed] wraps any store and reports hits, misses and writes to the
// observability cache hooks.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/afcplot/pkg/observability"
)

// TTLFigure is how long a rendered figure stays cached.
const TTLFigure = 7 * 24 * time.Hour

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the entry and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data; a ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes the entry; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the store.
	Close() error
}

// FigureKeyOpts are the render settings a cached figure depends on.
type FigureKeyOpts struct {
	Kind    string   `json:"kind"`
	Animal  string   `json:"animal,omitempty"`
	Mode    string   `json:"mode"`
	Format  string   `json:"format"`
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
	Policy  string   `json:"policy,omitempty"`
	Extra   []string `json:"extra,omitempty"`
	Session bool     `json:"session,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// FigureKey addresses one exported figure of one trial table.
	FigureKey(dataHash string, opts FigureKeyOpts) string
}

// DefaultKeyer hashes the key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// FigureKey implements Keyer.
func (DefaultKeyer) FigureKey(dataHash string, opts FigureKeyOpts) string {
	return hashKey("figure", dataHash, opts)
}

// observed reports cache traffic to the observability hooks.
type observed struct {
	Cache
}

// Observed wraps c so that every Get and Set is reported to
// observability.Cache(). The reported key type is the prefix in front of the
// key hash, so scoped keys still report "figure".
func Observed(c Cache) Cache {
	if c == nil {
		c = NewNullCache()
	}
	return observed{Cache: c}
}

func keyType(key string) string {
	// scoped keys carry their scope first; the type is the last prefix
	parts := strings.Split(key, ":")
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[len(parts)-2]
}

func (o observed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := o.Cache.Get(ctx, key)
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, keyType(key))
		} else {
			observability.Cache().OnCacheMiss(ctx, keyType(key))
		}
	}
	return data, hit, err
}

func (o observed) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := o.Cache.Set(ctx, key, data, ttl)
	if err == nil {
		observability.Cache().OnCacheSet(ctx, keyType(key), len(data))
	}
	return err
}
