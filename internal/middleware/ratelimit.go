package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/screening-license/internal/config"
)

// gcraScript keeps one theoretical arrival time (ms) per key.  A request is
// admitted while the arrival time stays within burst emission intervals of
// now.  Returns {allowed, remaining, retry_after_ms}.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local emission = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tat = tonumber(redis.call('GET', KEYS[1]))
if tat == nil or tat < now then
    tat = now
end
local window = emission * burst
local next_tat = tat + emission
local ahead = next_tat - now
if ahead > window then
    return {0, 0, math.ceil(ahead - window)}
end
redis.call('SET', KEYS[1], next_tat, 'PX', math.max(ttl, math.ceil(ahead)))
return {1, math.floor((window - ahead) / emission), 0}
`)

type rateDecision struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

func parseRateDecision(v any) (rateDecision, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return rateDecision{}, false
	}
	var n [3]int64
	for i, x := range arr {
		if n[i], ok = x.(int64); !ok {
			return rateDecision{}, false
		}
	}
	return rateDecision{
		allowed:    n[0] == 1,
		remaining:  n[1],
		retryAfter: time.Duration(n[2]) * time.Millisecond,
	}, true
}

// NewTokenBucket limits requests per key in Redis.  cfg.Capacity is the
// burst and cfg.RefillTokens per cfg.RefillInterval the sustained rate.
// The key follows cfg.KeyStrategy; with the default "ip_session_route"
// each wizard session gets its own budget per route and address.  Redis errors let the
// request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	emission := float64(cfg.RefillInterval.Milliseconds()) / float64(max(cfg.RefillTokens, 1))
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			res, err := gcraScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), emission, cfg.Capacity, cfg.TTL.Milliseconds()).Result()
			d, ok := parseRateDecision(res)
			if err != nil || !ok {
				if cfg.Debug {
					c.Logger().Warnf("ratelimit %s: result=%v err=%v", key, res, err)
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}
			secs := int(math.Ceil(d.retryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "Too many requests", "retry_after": secs})
		}
	}
}

// buildRateKey composes prefix:<parts> for the strategies "ip", "session",
// "route", "ip_session", "session_route"; anything else, including
// "ip_session_route", uses all three.  Anonymous callers are told apart by
// address under every session strategy.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	sid := subjectOrAnon(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "session":
		parts = append(parts, "session", sid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_session":
		parts = append(parts, "ip", ip, "session", sid)
	case "session_route":
		parts = append(parts, "session", sid, "route", route)
	default:
		parts = append(parts, "ip", ip, "session", sid, "route", route)
	}
	return strings.Join(parts, ":")
}
