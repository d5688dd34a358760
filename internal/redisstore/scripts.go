package redisstore

import "github.com/redis/go-redis/v9"

// Lua scripts run atomically inside Redis; every mutation of shared seat
// and counter state goes through one of them.

// reserveScript increments utilized:<sub> only while it is below
// released:<sub>.  Returns remaining seats, -1 for a missing pool and -2
// for a full slot.
var reserveScript = redis.NewScript(`
    local rel = redis.call('HGET', KEYS[1], 'released:' .. ARGV[1])
    if not rel then return -1 end
    rel = tonumber(rel)
    local used = tonumber(redis.call('HGET', KEYS[1], 'utilized:' .. ARGV[1]) or '0')
    if used >= rel then return -2 end
    used = redis.call('HINCRBY', KEYS[1], 'utilized:' .. ARGV[1], 1)
    return rel - used
`)

// releaseScript undoes one reservation without going below zero.
var releaseScript = redis.NewScript(`
    local used = tonumber(redis.call('HGET', KEYS[1], 'utilized:' .. ARGV[1]) or '0')
    if used <= 0 then return 0 end
    redis.call('HINCRBY', KEYS[1], 'utilized:' .. ARGV[1], -1)
    return 1
`)

// nextScript is fetch-and-increment on a counter hash.  Returns
// {value, prefix, width}, {-1} for a missing counter and {-2} once the
// max is reached.
var nextScript = redis.NewScript(`
    if redis.call('EXISTS', KEYS[1]) == 0 then return {-1} end
    local vals = redis.call('HMGET', KEYS[1], 'value', 'max', 'prefix', 'width')
    local cur = tonumber(vals[1] or '0')
    local max = tonumber(vals[2] or '0')
    if max > 0 and cur >= max then return {-2} end
    local nv = redis.call('HINCRBY', KEYS[1], 'value', 1)
    return {nv, vals[3] or '', tonumber(vals[4] or '0')}
`)

// voidScript hands a value back to the counter when it is still the
// latest one issued; otherwise it records the value as voided so the gap
// is explained.
var voidScript = redis.NewScript(`
    local cur = tonumber(redis.call('HGET', KEYS[1], 'value') or '0')
    if cur == tonumber(ARGV[1]) then
        redis.call('HINCRBY', KEYS[1], 'value', -1)
        return 1
    end
    redis.call('SADD', KEYS[2], ARGV[1])
    return 0
`)

// claimScript takes the per-applicant claim.  Returns 1 on success, -1
// when the seat is already allocated and -2 when another allocation holds
// the claim.
var claimScript = redis.NewScript(`
    if redis.call('HGET', KEYS[2], 'seat_allocation') == '1' then return -1 end
    if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then return 1 end
    return -2
`)

// unclaimScript deletes the claim only if it still carries our token.
var unclaimScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)
