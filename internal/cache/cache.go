// Package cache stores recognized page text so that re-running a batch does
// not repeat inference for pixels the same engine already read.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Key joins key components with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// ExtractionKey builds the key for one page image read by one engine
// configured with settings, a digest of whatever else shapes its output
// (model, prompt, token budget). The pixel digest makes the key independent
// of file names. Keys of one engine share the prefix "ocr:<engine>:".
func ExtractionKey(engine, settings string, pixels []byte) string {
	if settings == "" {
		settings = "default"
	}
	sum := sha256.Sum256(pixels)
	return Key("ocr", engine, settings, hex.EncodeToString(sum[:]))
}
