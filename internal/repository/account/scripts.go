package account

import "github.com/kailas-cloud/lingometer/internal/db"

// KEYS[1] auth index key, KEYS[2] account hash key.
// ARGV[1] new id, ARGV[2..] hash field/value pairs.
// Returns {id} of the stored account.
var createScript = &db.Script{
	Name: "account_create",
	Source: `
local existing = redis.call('GET', KEYS[1])
if existing then
  return {existing}
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[2], unpack(ARGV, 2))
return {ARGV[1]}
`,
}

// KEYS[1] account hash key. ARGV[1] today (YYYY-MM-DD), ARGV[2] today's month (YYYY-MM).
// Returns the HGETALL pairs after the conditional reset, {} when the account is missing.
var resetPeriodScript = &db.Script{
	Name: "account_reset_period",
	Source: `
local start = redis.call('HGET', KEYS[1], 'billing_period_start')
if not start then
  return {}
end
if string.sub(start, 1, 7) ~= ARGV[2] then
  redis.call('HSET', KEYS[1], 'used_tokens_this_period', '0', 'billing_period_start', ARGV[1])
end
return redis.call('HGETALL', KEYS[1])
`,
}

// KEYS[1] account hash key. ARGV[1] tokens.
// Returns {ok, quota, used}: ok is "1" when reserved, "0" when it would exceed quota.
var reserveScript = &db.Script{
	Name: "account_reserve",
	Source: `
local quota = tonumber(redis.call('HGET', KEYS[1], 'monthly_quota_tokens'))
if not quota then
  return {}
end
local used = tonumber(redis.call('HGET', KEYS[1], 'used_tokens_this_period') or '0')
local cost = tonumber(ARGV[1])
if used + cost > quota then
  return {'0', tostring(quota), tostring(used)}
end
used = redis.call('HINCRBY', KEYS[1], 'used_tokens_this_period', cost)
return {'1', tostring(quota), tostring(used)}
`,
}

// KEYS[1] account hash key. ARGV[1] tokens. Returns {used} after the release.
var releaseScript = &db.Script{
	Name: "account_release",
	Source: `
local used = tonumber(redis.call('HGET', KEYS[1], 'used_tokens_this_period'))
if not used then
  return {}
end
used = used - tonumber(ARGV[1])
if used < 0 then
  used = 0
end
redis.call('HSET', KEYS[1], 'used_tokens_this_period', tostring(used))
return {tostring(used)}
`,
}

// KEYS[1] account hash key. ARGV[1] used. Returns {used}, {} when the account is missing.
var setUsedScript = &db.Script{
	Name: "account_set_used",
	Source: `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {}
end
redis.call('HSET', KEYS[1], 'used_tokens_this_period', ARGV[1])
return {ARGV[1]}
`,
}
