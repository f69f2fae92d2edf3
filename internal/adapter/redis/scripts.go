package redis

import goredis "github.com/redis/go-redis/v9"

// slidingWindowScript trims tokens at or before now-window, adds a token at now, counts,
// refreshes the idle TTL and reports the oldest token and the token at count-limit, all in one step.
// KEYS: [1]=window key
// ARGV: [1]=now_ms, [2]=window_ms, [3]=unique member, [4]=ttl_ms, [5]=limit
// Returns {count, oldest_score, blocking_score}.
var slidingWindowScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - tonumber(ARGV[2]))
redis.call('ZADD', KEYS[1], now, ARGV[3])
local count = redis.call('ZCARD', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local idx = math.min(count - 1, math.max(0, count - tonumber(ARGV[5])))
local blocking = redis.call('ZRANGE', KEYS[1], idx, idx, 'WITHSCORES')
return {count, oldest[2], blocking[2]}
`)

// markIfAbsentScript returns the 1-based index of the first existing key. When none exist it
// sets every key with the TTL and returns 0.
// KEYS: guard keys sharing one hash tag
// ARGV: [1]=ttl_ms
var markIfAbsentScript = goredis.NewScript(`
for i, key in ipairs(KEYS) do
  if redis.call('EXISTS', key) == 1 then
    return i
  end
end
for _, key in ipairs(KEYS) do
  redis.call('SET', key, '1', 'PX', ARGV[1])
end
return 0
`)

// releaseLockScript deletes a lock only if it is still held by the caller.
// KEYS: [1]=lock key
// ARGV: [1]=holder id
var releaseLockScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// renewLockScript extends a lock only if it is still held by the caller.
// KEYS: [1]=lock key
// ARGV: [1]=holder id, [2]=ttl_ms
var renewLockScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)
