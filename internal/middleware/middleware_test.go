package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/config"
	"github.com/iliyamo/screening-license/internal/utils"
)

func serve(t *testing.T, token string, mw ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	var seen string
	e.GET("/x", func(c echo.Context) error {
		seen = Subject(c)
		return c.NoContent(http.StatusNoContent)
	}, mw...)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestTokenAuthAndScope(t *testing.T) {
	sess, _ := utils.NewSessionToken("s3cret", "sid-1", time.Hour)
	box, _ := utils.NewBoxOfficeToken("s3cret", "rec-1", "regional", time.Hour)
	chain := []echo.MiddlewareFunc{TokenAuth("s3cret"), RequireScope(utils.ScopeSession)}

	rec, subject := serve(t, sess.Token, chain...)
	if rec.Code != http.StatusNoContent || subject != "sid-1" {
		t.Fatalf("session token: code=%d subject=%q", rec.Code, subject)
	}
	if rec, _ := serve(t, box.Token, chain...); rec.Code != http.StatusForbidden {
		t.Fatalf("box-office token on session route: code=%d", rec.Code)
	}
	if rec, _ := serve(t, "", chain...); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: code=%d", rec.Code)
	}
	if rec, _ := serve(t, "bogus", chain...); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: code=%d", rec.Code)
	}
}

func TestRateKeyUsesSession(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/catalog/search?q=al", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/catalog/search")
	c.Set(CtxSubject, "sid-9")

	key := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "session_route"}, c)
	if key != "rl:session:sid-9:route:GET /v1/catalog/search" {
		t.Fatalf("key = %q", key)
	}
	c.Set(CtxSubject, nil)
	key = buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "session"}, c)
	if !strings.HasPrefix(key, "rl:session:anon:") {
		t.Fatalf("anonymous key = %q", key)
	}
}

func TestAnonymousCallersGetSeparateBuckets(t *testing.T) {
	keyFor := func(strategy, addr string) string {
		req := httptest.NewRequest(http.MethodGet, "/v1/images/poster-1", nil)
		req.RemoteAddr = addr
		c := echo.New().NewContext(req, httptest.NewRecorder())
		c.SetPath("/v1/images/:id")
		return buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
	}
	for _, strategy := range []string{config.LoadRateLimitConfig().KeyStrategy, "session_route", "session"} {
		a, b := keyFor(strategy, "10.0.0.1:4000"), keyFor(strategy, "192.168.9.9:4000")
		if a == b {
			t.Fatalf("%s: two addresses share key %q", strategy, a)
		}
	}
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	mw := []echo.MiddlewareFunc{
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
	}
	if rec, _ := serve(t, "", mw...); rec.Code != http.StatusNoContent {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestCachedResponseHash(t *testing.T) {
	hdr := http.Header{"Content-Type": {"image/png"}, "Cache-Control": {"public, max-age=3600"}, "Set-Cookie": {"a=b"}}
	entry := cachedResponse{Status: http.StatusOK, Header: hdr, Body: []byte("png")}

	// HGetAll hands every field back as a string
	stored := map[string]string{}
	for k, v := range entry.fields() {
		switch v := v.(type) {
		case []byte:
			stored[k] = string(v)
		case int:
			stored[k] = strconv.Itoa(v)
		case string:
			stored[k] = v
		}
	}
	got, ok := cachedFromHash(stored)
	if !ok || got.Status != http.StatusOK || string(got.Body) != "png" {
		t.Fatalf("decoded %+v ok=%v", got, ok)
	}
	if got.Header.Get("Content-Type") != "image/png" || got.Header.Get("Cache-Control") == "" {
		t.Fatalf("headers = %v", got.Header)
	}
	if got.Header.Get("Set-Cookie") != "" {
		t.Fatalf("uncached header replayed")
	}

	delete(stored, "body")
	if _, ok := cachedFromHash(stored); ok {
		t.Fatalf("entry without body decoded")
	}
	if _, ok := cachedFromHash(map[string]string{"status": "x", "body": ""}); ok {
		t.Fatalf("bad status decoded")
	}
}

func TestParseRateDecision(t *testing.T) {
	d, ok := parseRateDecision([]any{int64(0), int64(0), int64(1500)})
	if !ok || d.allowed || d.retryAfter != 1500*time.Millisecond {
		t.Fatalf("blocked decision = %+v ok=%v", d, ok)
	}
	d, ok = parseRateDecision([]any{int64(1), int64(59), int64(0)})
	if !ok || !d.allowed || d.remaining != 59 {
		t.Fatalf("allowed decision = %+v ok=%v", d, ok)
	}
	for _, bad := range []any{nil, "x", []any{int64(1)}, []any{"1", int64(0), int64(0)}} {
		if _, ok := parseRateDecision(bad); ok {
			t.Fatalf("%#v parsed", bad)
		}
	}
}
