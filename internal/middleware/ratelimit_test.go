package middleware

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/task-manager/task-manager/internal/auth"
	"github.com/task-manager/task-manager/internal/telemetry"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newRateLimitedRouter(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(OptionalAuthMiddleware())
	r.Use(RateLimitMiddleware(rl))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

// ---------------------------------------------------------------------------
// Config constructors
// ---------------------------------------------------------------------------

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute != 120 {
		t.Errorf("RequestsPerMinute = %d, want 120", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 20 {
		t.Errorf("BurstSize = %d, want 20", cfg.BurstSize)
	}
}

func TestAuthRateLimitConfig(t *testing.T) {
	cfg := AuthRateLimitConfig()
	if cfg.RequestsPerMinute != 10 || cfg.BurstSize != 5 {
		t.Errorf("AuthRateLimitConfig() = %+v, want 10 rpm burst 5", cfg)
	}
}

func TestRateLimitConfig_BurstFallsBackToRate(t *testing.T) {
	l := RateLimitConfig{RequestsPerMinute: 30}.limit()
	if l.Burst != 30 {
		t.Errorf("Burst = %d, want 30", l.Burst)
	}
}

// ---------------------------------------------------------------------------
// RateLimitMiddleware
// ---------------------------------------------------------------------------

func TestRateLimitMiddleware_AllowsWithinBurst(t *testing.T) {
	_, rdb := newTestRedis(t)
	r := newRateLimitedRouter(NewRateLimiter(rdb, "test", RateLimitConfig{RequestsPerMinute: 60, BurstSize: 3}))

	for i := 0; i < 3; i++ {
		w := doGET(r, "/", "")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "60" {
			t.Errorf("X-RateLimit-Limit = %q, want 60", w.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimitMiddleware_RejectsOverBurst(t *testing.T) {
	_, rdb := newTestRedis(t)
	r := newRateLimitedRouter(NewRateLimiter(rdb, "test", RateLimitConfig{RequestsPerMinute: 1, BurstSize: 2}))
	before := counterValue(telemetry.RateLimitRejectionsTotal, nil)

	doGET(r, "/", "")
	doGET(r, "/", "")
	w := doGET(r, "/", "")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Errorf("Retry-After = %q, want a positive integer", w.Header().Get("Retry-After"))
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", w.Header().Get("X-RateLimit-Remaining"))
	}
	if got := counterValue(telemetry.RateLimitRejectionsTotal, nil) - before; got != 1 {
		t.Errorf("rate_limit_rejections_total += %.0f, want 1", got)
	}
}

func TestRateLimitMiddleware_SeparateBudgetsPerPrincipal(t *testing.T) {
	_, rdb := newTestRedis(t)
	r := newRateLimitedRouter(NewRateLimiter(rdb, "test", RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1}))

	alice := bearerFor(t, &auth.Principal{SubjectID: "alice", Email: "alice@acme.test", OrganizationID: "org-1", Role: auth.RoleViewer})
	bob := bearerFor(t, &auth.Principal{SubjectID: "bob", Email: "bob@acme.test", OrganizationID: "org-1", Role: auth.RoleViewer})

	if w := doGET(r, "/", alice); w.Code != http.StatusOK {
		t.Fatalf("alice first: status = %d", w.Code)
	}
	if w := doGET(r, "/", alice); w.Code != http.StatusTooManyRequests {
		t.Errorf("alice second: status = %d, want 429", w.Code)
	}
	if w := doGET(r, "/", bob); w.Code != http.StatusOK {
		t.Errorf("bob first: status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware_FailsOpenWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	r := newRateLimitedRouter(NewRateLimiter(rdb, "test", RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1}))
	mr.Close()

	for i := 0; i < 3; i++ {
		if w := doGET(r, "/", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 while redis is down", i+1, w.Code)
		}
	}
}

func TestGetRateLimitKey(t *testing.T) {
	r := gin.New()
	r.Use(OptionalAuthMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.Header("X-Key", getRateLimitKey(c))
		c.Status(http.StatusOK)
	})

	if got := doGET(r, "/", "").Header().Get("X-Key"); got != "ip:192.0.2.1" {
		t.Errorf("anonymous key = %q, want ip:192.0.2.1", got)
	}
	viewer := testPrincipal(auth.RoleViewer)
	if got := doGET(r, "/", bearerFor(t, viewer)).Header().Get("X-Key"); got != "user:"+viewer.SubjectID {
		t.Errorf("authenticated key = %q, want user:%s", got, viewer.SubjectID)
	}
}
