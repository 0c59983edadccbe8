// Package cache memoizes evidence provider answers keyed by (provider, claim).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Cache stores opaque byte values with a TTL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a stable cache key from its parts. Parts are lowercased and
// whitespace-collapsed so trivially different spellings of a claim share a key.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.Join(strings.Fields(strings.ToLower(p)), " ")))
		h.Write([]byte{0})
	}
	return "veracity:v1:" + hex.EncodeToString(h.Sum(nil))
}

// GetJSON decodes a cached value into v. A decode failure counts as a miss.
func GetJSON(c Cache, key string, v any) bool {
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v and stores it under key
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return c.Set(key, data, ttl)
}

// New builds the cache described by cfg: layered memory+disk, memory only,
// disk only, or a no-op cache when disabled
func New(cfg model.CacheConfig) Cache {
	switch {
	case !cfg.Enabled:
		return Nop{}
	case cfg.Memory && cfg.Dir != "":
		return NewLayeredCache(cfg.TTL, cfg.Dir, cfg.TTL)
	case cfg.Dir != "":
		return NewDiskCache(cfg.Dir, cfg.TTL)
	default:
		return NewMemoryCache(cfg.TTL, 10*time.Minute)
	}
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)               { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }
