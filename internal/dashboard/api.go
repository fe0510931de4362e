package dashboard

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the spectator-facing view of match state, built by the
// match controller and handed to the dashboard without either package
// importing the other's internal types.
type Snapshot struct {
	Rotate    string    `json:"rotate"`
	StartFlag bool      `json:"start_flag"`
	Paused    bool      `json:"paused"`
	GameOver  bool      `json:"game_over"`
	Winner    *int      `json:"winner"`
	Teams     []TeamRow `json:"teams"`
}

// TeamRow is one team's row in the status snapshot.
type TeamRow struct {
	TeamID    int  `json:"team"`
	Connected int  `json:"connected"`
	ReadyCnt  int  `json:"ready_count"`
	InMatch   bool `json:"in_match"`
	Finished  bool `json:"finished"`
}

// MatchInfo is everything the dashboard API needs from the match
// controller. Implemented by *match.Controller.
type MatchInfo interface {
	DashboardSnapshot() Snapshot
	DashboardScoreboard() []byte
}

// AuthMiddleware validates a bearer token against DASHBOARD_AUTH_TOKEN.
// With no token configured, every request is allowed (local/dev mode) —
// the dashboard is read-only, so this is a much smaller risk than the
// teacher's analogous production API, but the same warn-on-release
// behavior is kept for parity with that judgment call.
func AuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("DASHBOARD_AUTH_TOKEN")
	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("dashboard: DASHBOARD_AUTH_TOKEN unset in release mode; spectator API is open")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or missing bearer token"})
			c.Abort()
			return
		}
		c.Next()
	}
}

const rateLimitCleanupIdle = 10 * time.Minute

type ipBucket struct {
	tokens   float64
	lastSeen time.Time
	mu       sync.Mutex
}

// authedBucketKey is the shared bucket key every holder of the
// dashboard's bearer token is rate-limited against, as opposed to the
// per-IP key anonymous callers get. It deliberately doesn't vary by
// request so one trusted operator polling from a rotating or
// load-balanced IP doesn't trip several independent anonymous buckets.
const authedBucketKey = "authed"

// RateLimiter is a token bucket guarding the dashboard's HTTP surface
// from accidental hammering. Anonymous requests are keyed per source
// IP; requests carrying a valid DASHBOARD_AUTH_TOKEN bearer share one
// bucket with a higher burst, since AuthMiddleware has already vetted
// who they are.
type RateLimiter struct {
	rate    float64
	burst   float64
	mu      sync.Mutex
	buckets map[string]*ipBucket

	trustedBurst float64
}

// NewRateLimiter allows ratePerMin requests per minute per IP, with
// burst capacity. Authenticated callers get trustedBurst instead.
func NewRateLimiter(ratePerMin, burst, trustedBurst int) *RateLimiter {
	rl := &RateLimiter{
		rate: float64(ratePerMin) / 60.0, burst: float64(burst),
		trustedBurst: float64(trustedBurst), buckets: make(map[string]*ipBucket),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) allow(key string, burst float64) (bool, time.Duration) {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &ipBucket{tokens: burst}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.tokens += now.Sub(b.lastSeen).Seconds() * rl.rate
	if b.tokens > burst {
		b.tokens = burst
	}
	b.lastSeen = now
	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}
	return false, time.Duration((1.0-b.tokens)/rl.rate*1000) * time.Millisecond
}

// Middleware enforces the rate limit on every request, bucketing
// authenticated and anonymous traffic separately. It reads
// DASHBOARD_AUTH_TOKEN itself at build time the same way AuthMiddleware
// does; the bearer check here only selects a bucket and never replaces
// AuthMiddleware's constant-time comparison, which still runs after.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	token := os.Getenv("DASHBOARD_AUTH_TOKEN")
	return func(c *gin.Context) {
		key, burst := c.ClientIP(), rl.burst
		if token != "" {
			if parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2); len(parts) == 2 &&
				parts[0] == "Bearer" && subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) == 1 {
				key, burst = authedBucketKey, rl.trustedBurst
			}
		}
		allowed, retryAfter := rl.allow(key, burst)
		if !allowed {
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rateLimitCleanupIdle)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-rateLimitCleanupIdle)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			b.mu.Lock()
			idle := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if idle {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// NewRouter builds the gin engine exposing the spectator surface:
// health, status, scoreboard, and the websocket stream.
func NewRouter(info MatchInfo, hub *Hub) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := r.Group("/")
	limited.Use(NewRateLimiter(120, 30, 120).Middleware(), AuthMiddleware())
	{
		limited.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, info.DashboardSnapshot())
		})
		limited.GET("/scoreboard", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", info.DashboardScoreboard())
		})
		limited.GET("/ws", hub.Subscribe)
	}

	return r
}
