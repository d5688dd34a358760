package config

import "time"

// CacheConfig defines settings for the HTTP response cache.  Only the
// read-mostly concession catalog route is wrapped with it; allocation and
// seat availability responses are never cached.  The cache is disabled
// when Enabled is false or no Redis client is configured.  Responses larger
// than MaxBodyBytes are served but not stored.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.  Method names are upper-cased.
func LoadCacheConfig() CacheConfig {
    methods := map[string]bool{}
    for _, m := range envList("CACHE_METHODS", "GET") {
        methods[m] = true
    }
    ttl := envDur("CACHE_TTL", time.Minute)
    if ttl <= 0 {
        ttl = time.Minute
    }
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      methods,
        TTL:          ttl,
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "adm:respcache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}
