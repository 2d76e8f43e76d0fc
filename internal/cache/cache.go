// Package cache implements a file-based response cache with TTL expiry.
// Keys are derived from a normalized request URL plus its query parameters,
// so identical requests hit the same entry regardless of parameter order.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultTTL is how long an entry stays valid after being written.
const DefaultTTL = time.Hour

// FileCache stores JSON-encoded values as one file per key under a directory.
type FileCache struct {
	dir string
	ttl time.Duration

	now func() time.Time
}

// envelope wraps a cached value with its write timestamp.
type envelope struct {
	TS    int64           `json:"ts"`
	Value json.RawMessage `json:"value"`
}

// DefaultDir returns the default cache directory under the user cache root.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user cache dir: %w", err)
	}
	return filepath.Join(base, "vibe-stats"), nil
}

// New creates a FileCache rooted at dir, creating the directory if needed.
// A non-positive ttl falls back to DefaultTTL.
func New(dir string, ttl time.Duration) (*FileCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &FileCache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Key derives a deterministic cache key from a URL and its query parameters.
// Parameters are sorted by name before hashing so ordering does not matter.
func Key(url string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(url))
	for _, name := range names {
		fmt.Fprintf(h, "&%s=%s", name, params[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *FileCache) pathFor(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get loads the entry for key into v. It returns false when the entry is
// missing, unreadable, or past its TTL; expired entries are removed.
func (c *FileCache) Get(key string, v any) bool {
	path := c.pathFor(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false
	}
	if c.now().Sub(time.Unix(env.TS, 0)) > c.ttl {
		_ = os.Remove(path)
		return false
	}
	return json.Unmarshal(env.Value, v) == nil
}

// Set stores v under key. Write failures are swallowed: the cache is an
// optimization, never a correctness requirement.
func (c *FileCache) Set(key string, v any) {
	value, err := json.Marshal(v)
	if err != nil {
		return
	}
	data, err := json.Marshal(envelope{TS: c.now().Unix(), Value: value})
	if err != nil {
		return
	}
	_ = os.WriteFile(c.pathFor(key), data, 0o644)
}
