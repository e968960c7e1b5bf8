package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// File-backed response cache. Entries live under cache/<scope>/ and are
// keyed by an xxHash of the scope+key pair, so keys with awkward
// characters (search queries) never leak into file names.

// GetCachePath returns the cache file path for a scope/key pair
func GetCachePath(scope, key string) string {
	hash := generateHash(scope + "/" + key)
	cacheDir := filepath.Join("cache", scope)
	return filepath.Join(cacheDir, fmt.Sprintf("%s.cache", hash))
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	hash := xxhash.Sum64String(s)
	// Convert uint64 to hex string
	return fmt.Sprintf("%016x", hash)
}

// EnsureCacheDir ensures the cache directory for a scope exists
func EnsureCacheDir(scope string) error {
	cacheDir := filepath.Join("cache", scope)
	return os.MkdirAll(cacheDir, 0755)
}

// Write stores a payload in the cache
func Write(scope, key, payload string) error {
	if err := EnsureCacheDir(scope); err != nil {
		return err
	}

	cachePath := GetCachePath(scope, key)
	return os.WriteFile(cachePath, []byte(payload), 0644)
}

// Read returns a cached payload if it exists and is not expired
func Read(scope, key string, maxAge time.Duration) (string, bool) {
	cachePath := GetCachePath(scope, key)

	info, err := os.Stat(cachePath)
	if err != nil {
		return "", false
	}

	// Check if cache is expired
	if time.Since(info.ModTime()) > maxAge {
		return "", false
	}

	content, err := os.ReadFile(cachePath)
	if err != nil {
		return "", false
	}

	return string(content), true
}

// Clear removes a specific cache entry
func Clear(scope, key string) error {
	cachePath := GetCachePath(scope, key)
	err := os.Remove(cachePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearScope removes every cache entry under a scope
func ClearScope(scope string) error {
	cacheDir := filepath.Join("cache", scope)
	return os.RemoveAll(cacheDir)
}

// ClearOld removes cache files older than the specified duration
func ClearOld(maxAge time.Duration) error {
	cacheRoot := "cache"

	return filepath.Walk(cacheRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories
		if info.IsDir() {
			return nil
		}

		// Remove if older than maxAge
		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}

		return nil
	})
}
