package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/papegu/senegal-livres/internal/config"
)

func limitedServer(t *testing.T, cfg config.RateLimitConfig, rdb *redis.Client) *echo.Echo {
    t.Helper()
    e := echo.New()
    e.POST("/v1/checkout", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, NewTokenBucket(cfg, rdb))
    return e
}

func post(e *echo.Echo, ip string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodPost, "/v1/checkout", nil)
    req.RemoteAddr = ip + ":1234"
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func testLimitConfig() config.RateLimitConfig {
    return config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            2 * time.Hour,
        KeyStrategy:    "ip",
        Prefix:         "rl:test",
    }
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    e := limitedServer(t, testLimitConfig(), rdb)

    first := post(e, "10.0.0.1")
    assert.Equal(t, http.StatusCreated, first.Code)
    assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
    assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
    assert.Equal(t, http.StatusCreated, post(e, "10.0.0.1").Code)

    blocked := post(e, "10.0.0.1")
    assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
    assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

    // Buckets are per key.
    assert.Equal(t, http.StatusCreated, post(e, "10.0.0.2").Code)
    assert.True(t, mr.Exists("rl:test:ip:10.0.0.1"))
}

func TestTokenBucketFailsOpen(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
    e := limitedServer(t, testLimitConfig(), rdb)
    mr.Close()

    for i := 0; i < 5; i++ {
        assert.Equal(t, http.StatusCreated, post(e, "10.0.0.1").Code)
    }
}

func TestTokenBucketDisabled(t *testing.T) {
    cfg := testLimitConfig()
    cfg.Enabled = false
    e := limitedServer(t, cfg, nil)
    for i := 0; i < 5; i++ {
        require.Equal(t, http.StatusCreated, post(e, "10.0.0.1").Code)
    }
}

func TestBuildRateKeyUsesPrincipal(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/cart", nil)
    req.RemoteAddr = "10.0.0.9:555"
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/cart")
    cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user"}

    assert.Equal(t, "rl:ip:10.0.0.9:user:anon", buildRateKey(cfg, c))
    c.Set(principalKey, Principal{UserID: 7, Role: "CUSTOMER"})
    assert.Equal(t, "rl:ip:10.0.0.9:user:7", buildRateKey(cfg, c))

    cfg.KeyStrategy = ""
    assert.Equal(t, "rl:ip:10.0.0.9:user:7:route:POST /v1/cart", buildRateKey(cfg, c))
}
