package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/screening-license/internal/config"
)

// cachedHeaders are the response headers replayed on a hit.
var cachedHeaders = []string{echo.HeaderContentType, "Cache-Control"}

// cachedResponse is one entry, stored as a Redis hash.
type cachedResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r cachedResponse) fields() map[string]any {
	f := map[string]any{
		"status": r.Status,
		"body":   r.Body,
	}
	for _, h := range cachedHeaders {
		if v := r.Header.Get(h); v != "" {
			f["h:"+h] = v
		}
	}
	return f
}

func cachedFromHash(m map[string]string) (cachedResponse, bool) {
	status, err := strconv.Atoi(m["status"])
	if err != nil || status < 100 {
		return cachedResponse{}, false
	}
	body, ok := m["body"]
	if !ok {
		return cachedResponse{}, false
	}
	r := cachedResponse{Status: status, Header: http.Header{}, Body: []byte(body)}
	for _, h := range cachedHeaders {
		if v, ok := m["h:"+h]; ok {
			r.Header.Set(h, v)
		}
	}
	return r, true
}

// bodyRecorder tees the response body up to limit bytes.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var id string
	if strings.ToLower(cfg.KeyStrategy) == "route" {
		id = r.Method + " " + c.Path()
	} else {
		id = r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery
	}
	sum := sha1.Sum([]byte(id))
	return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}

// NewRedisCache replays 200 responses from Redis.  It fronts the image
// proxy, whose upstream is slow and rate limited.  Bodies over
// cfg.MaxBodyBytes are served but not stored.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[c.Request().Method] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, c)

			if m, err := rdb.HGetAll(ctx, key).Result(); err == nil && len(m) > 0 {
				if hit, ok := cachedFromHash(m); ok {
					for h, vals := range hit.Header {
						c.Response().Header()[h] = vals
					}
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(hit.Status, hit.Header.Get(echo.HeaderContentType), hit.Body)
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}

			entry := cachedResponse{Status: rec.status, Header: c.Response().Header().Clone(), Body: rec.buf.Bytes()}
			// the request context may already be cancelled once the client has its bytes
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			pipe := rdb.TxPipeline()
			pipe.Del(wctx, key)
			pipe.HSet(wctx, key, entry.fields())
			pipe.Expire(wctx, key, ttl)
			if _, err := pipe.Exec(wctx); err != nil {
				c.Logger().Warnf("cache store %s: %v", key, err)
			}
			return nil
		}
	}
}
