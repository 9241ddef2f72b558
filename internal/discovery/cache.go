package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/polka-dev/polka/internal/core"
	"github.com/polka-dev/polka/internal/fsutil"
)

func cachePath(cwd string) string {
	return filepath.Join(cwd, ".polka", "cache", "discovery-cache.json")
}

// loadCache returns the cache if present and readable; a missing or
// malformed cache is treated as absent, never as an error.
func loadCache(cwd string) *core.DiscoveryCache {
	data, err := fsutil.ReadFileScoped(cachePath(cwd))
	if err != nil {
		return nil
	}
	var cache core.DiscoveryCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil
	}
	return &cache
}

// saveCache is single-writer, last-writer-wins; write failures degrade to
// a cache miss on the next read rather than surfacing to the caller.
func saveCache(cwd string, cache *core.DiscoveryCache) {
	path := cachePath(cwd)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return
	}
	_ = atomicWriteFile(path, data, 0o600)
}

func cacheHit(cache *core.DiscoveryCache, gitHead string, now time.Time) bool {
	if cache == nil {
		return false
	}
	return cache.ValidFor(gitHead, now)
}
