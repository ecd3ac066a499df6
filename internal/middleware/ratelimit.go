package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gatewise/traffic-report/internal/config"
	"github.com/gatewise/traffic-report/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	rateLimitKeyPrefix = "ratelimit:ip:"
	rateLimitKeyTTL    = 60 // seconds
)

// tokenBucketScript implements an atomic token bucket in Redis so the
// limit holds across replicas.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = now - last_update
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after}
`)

// RateLimitMiddleware applies per-client token bucket rate limiting.
// With a Redis client it enforces the limit across instances; without
// one it falls back to in-process per-IP limiters.
type RateLimitMiddleware struct {
	cfg     config.RateLimitConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	redis   *redis.Client

	mu         sync.Mutex
	ipLimiters map[string]*rate.Limiter
}

// NewRateLimitMiddleware creates a new rate limiting middleware. The
// redis client may be nil.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, redisClient *redis.Client, logger *zap.Logger, m *metrics.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		redis:      redisClient,
		ipLimiters: make(map[string]*rate.Limiter),
	}
}

// Handler wraps an http.Handler with rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		allowed, retryAfter := rl.allow(r, ip)
		if !allowed {
			rl.logger.Warn("rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			rl.metrics.RecordRateLimitHit(rl.limiterName())
			rl.tooManyRequests(w, retryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) allow(r *http.Request, ip string) (bool, time.Duration) {
	if rl.redis != nil {
		res, err := tokenBucketScript.Run(r.Context(), rl.redis,
			[]string{rateLimitKeyPrefix + ip},
			rl.cfg.RPS, rl.cfg.Burst, time.Now().Unix(), rateLimitKeyTTL,
		).Int64Slice()
		if err == nil && len(res) == 2 {
			return res[0] == 1, time.Duration(res[1]) * time.Second
		}
		// Redis trouble must not take the read path down; fall back to
		// the local limiter.
		rl.logger.Warn("redis rate limit check failed", zap.Error(err))
	}

	return rl.localLimiter(ip).Allow(), time.Second
}

func (rl *RateLimitMiddleware) localLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.ipLimiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)
		rl.ipLimiters[ip] = limiter
	}
	return limiter
}

func (rl *RateLimitMiddleware) limiterName() string {
	if rl.redis != nil {
		return "redis"
	}
	return "local"
}

func (rl *RateLimitMiddleware) tooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded"}`))
}
