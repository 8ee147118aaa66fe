package pipeline

import (
	"encoding/json"
	"os"
	"time"

	"github.com/goplus/theora-recipe/internal/xos"
)

// buildEntry records a packaged build.
type buildEntry struct {
	SourceHash string `json:"source_hash"`
	// DepsHash is deps.Digest of the dependencies built against.
	DepsHash  string    `json:"deps_hash"`
	Strategy  string    `json:"strategy"`
	BuildTime time.Time `json:"build_time"`
}

// buildCache maps "name@version-packageID" keys to their build entries.
type buildCache struct {
	Cache map[string]*buildEntry `json:"cache"`
}

func cacheKey(name, version, packageID string) string {
	return name + "@" + version + "-" + packageID
}

func (c *buildCache) get(key string) (*buildEntry, bool) {
	entry, ok := c.Cache[key]
	return entry, ok
}

func (c *buildCache) set(key string, entry *buildEntry) {
	if c.Cache == nil {
		c.Cache = make(map[string]*buildEntry)
	}
	c.Cache[key] = entry
}

// loadCache reads the cache file. A missing file is an empty cache.
func loadCache(name string) (*buildCache, error) {
	data, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		return &buildCache{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cache buildCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

func saveCache(name string, cache *buildCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return xos.WriteFile(name, data, 0o644)
}
