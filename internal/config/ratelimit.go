package config

import "time"

// Rate limit key strategies understood by the token bucket middleware.
const (
    KeyByIP        = "ip"
    KeyByUser      = "user"
    KeyByRoute     = "route"
    KeyByIPUser    = "ip_user"
    KeyByIPRoute   = "ip_route"
    KeyByUserRoute = "user_route"
)

// RateLimitConfig sizes the per-officer token bucket in front of /v1.
// Capacity tokens are available at once and RefillTokens are added every
// RefillInterval.  Bucket state expires after TTL of inactivity.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Officers are keyed by
// user and route by default so a burst of allocations does not starve
// seat lookups.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", KeyByUserRoute),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "adm:rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    return cfg.normalized()
}

// normalized clamps values the Lua bucket cannot work with.  TTL is kept
// at five refill intervals or more so an idle bucket is not dropped while
// it is still refilling.
func (c RateLimitConfig) normalized() RateLimitConfig {
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
        c.TTL = minTTL
    }
    return c
}
