package middleware

import (
    "context"
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/papegu/senegal-livres/internal/config"
)

// bucketScript keeps {t = tokens, ts = last refill ms} in a hash.  Tokens
// come back in whole refill intervals.  Returns {allowed, tokens, wait_ms}.
var bucketScript = redis.NewScript(`
local now, cap, step, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local saved = redis.call('HMGET', KEYS[1], 't', 'ts')
local t, ts = tonumber(saved[1]), tonumber(saved[2])
if t == nil or ts == nil then
  t, ts = cap, now
end
local n = math.floor(math.max(0, now - ts) / every)
if n > 0 then
  t = math.min(cap, t + n * step)
  ts = ts + n * every
end
local ok, wait = 0, 0
if t >= 1 then
  ok, t = 1, t - 1
else
  wait = math.max(0, every - (now - ts))
end
redis.call('HSET', KEYS[1], 't', t, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, t, wait}
`)

type verdict struct {
    allowed   bool
    remaining int64
    wait      time.Duration
}

type tokenBucket struct {
    rdb *redis.Client
    cfg config.RateLimitConfig
}

func (b tokenBucket) take(ctx context.Context, key string, now time.Time) (verdict, error) {
    res, err := bucketScript.Run(ctx, b.rdb, []string{key},
        now.UnixMilli(),
        b.cfg.Capacity,
        b.cfg.RefillTokens,
        b.cfg.RefillInterval.Milliseconds(),
        int64(b.cfg.TTL/time.Second),
    ).Int64Slice()
    if err != nil {
        return verdict{}, err
    }
    if len(res) != 3 {
        return verdict{}, fmt.Errorf("unexpected script result %v", res)
    }
    return verdict{allowed: res[0] == 1, remaining: res[1], wait: time.Duration(res[2]) * time.Millisecond}, nil
}

// NewTokenBucket limits buyer-facing routes (checkout, cart) with a Redis
// token bucket shared by every instance.  A nil client or a disabled config
// yields a pass-through; a Redis error lets the request through so an
// outage never blocks a purchase.  Never mount it on provider webhooks.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    b := tokenBucket{rdb: rdb, cfg: cfg}
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            v, err := b.take(c.Request().Context(), key, time.Now())
            if err != nil {
                c.Logger().Warnf("[ratelimit] failing open for key=%s: %v", key, err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(v.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if v.allowed {
                return next(c)
            }

            secs := int(math.Ceil(v.wait.Seconds()))
            h.Set("Retry-After", strconv.Itoa(secs))
            if cfg.Debug {
                c.Logger().Infof("[ratelimit] block key=%s retry=%s", key, v.wait)
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too many requests, retry later",
                "retry_after": secs,
            })
        }
    }
}

// buildRateKey joins the prefix with the dimensions named by the strategy,
// e.g. "ip_user" gives prefix:ip:<ip>:user:<uid>.  Unknown or empty
// strategies key on ip, user and route together.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := "anon"
    if p, ok := PrincipalFrom(c); ok {
        uid = strconv.FormatUint(p.UserID, 10)
    }
    dims := map[string]string{
        "ip":    ip,
        "user":  uid,
        "route": c.Request().Method + " " + c.Path(),
    }

    key := []string{cfg.Prefix}
    for _, d := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
        if v, ok := dims[d]; ok {
            key = append(key, d, v)
        }
    }
    if len(key) == 1 {
        key = append(key, "ip", ip, "user", uid, "route", dims["route"])
    }
    return strings.Join(key, ":")
}
