package ratelimiting

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

type RateLimiter interface {
	Consume(key string) bool
}

type tokenBucketRateLimiter struct {
	limiterByKey    *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond int
	burstSize       int
}

func (rateLimiter *tokenBucketRateLimiter) Consume(key string) bool {
	limiter, _ := rateLimiter.limiterByKey.GetOrSet(key, rate.NewLimiter(rate.Limit(rateLimiter.refillPerSecond), rateLimiter.burstSize))
	return limiter.Value().Allow()
}

type RefillPerSecond int
type BurstSize int

// NewTokenBucketRateLimiter returns a limiter with one bucket per key, and a function to stop
// the expiry of idle buckets.
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (RateLimiter, func()) {
	limiterTTLCache := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](30 * time.Minute),
	)
	go limiterTTLCache.Start()

	return &tokenBucketRateLimiter{
		limiterByKey:    limiterTTLCache,
		refillPerSecond: int(refillPerSecond),
		burstSize:       int(burstSize),
	}, limiterTTLCache.Stop
}

type RequestRateLimiter interface {
	Consume(r *http.Request) bool
	KeyFor(r *http.Request) string
}

type requestBasedRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

func (rateLimiter *requestBasedRateLimiter) Consume(r *http.Request) bool {
	return rateLimiter.limiter.Consume(rateLimiter.keyFunc(r))
}

func (rateLimiter *requestBasedRateLimiter) KeyFor(r *http.Request) string {
	return rateLimiter.keyFunc(r)
}

func NewRequestBasedRateLimiter(limiter RateLimiter, keyFunc func(r *http.Request) string) RequestRateLimiter {
	return &requestBasedRateLimiter{
		limiter: limiter,
		keyFunc: keyFunc,
	}
}

func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// No port
		host = r.RemoteAddr
	}

	return fmt.Sprintf("ip: %s", host)
}

// NewForwardedIPKeyFunc keys on the X-Forwarded-For entry added by the proxy trustedHops hops
// in front of us, counted from the end of the header. Entries before it are client controlled.
// Falls back to the remote address when the header is missing or has fewer entries.
func NewForwardedIPKeyFunc(trustedHops int) func(r *http.Request) string {
	return func(r *http.Request) string {
		if trustedHops < 1 {
			return IPKeyFunc(r)
		}

		var entries []string
		for _, header := range r.Header.Values("X-Forwarded-For") {
			entries = append(entries, strings.Split(header, ",")...)
		}
		if len(entries) < trustedHops {
			return IPKeyFunc(r)
		}

		client := strings.TrimSpace(entries[len(entries)-trustedHops])
		if client == "" {
			return IPKeyFunc(r)
		}
		return fmt.Sprintf("ip: %.50s", client)
	}
}
