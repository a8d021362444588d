package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/logger"
)

const defaultMaxClients = 10000

// RateLimiter hands out one token bucket per client address. Buckets for
// the least recently seen clients are evicted once maxClients is reached.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter allows perSecond requests per client with bursts of up to
// burst. maxClients <= 0 uses a default of 10000.
func NewRateLimiter(perSecond float64, burst, maxClients int) (*RateLimiter, error) {
	if perSecond <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %v", perSecond)
	}
	if burst < 1 {
		burst = int(math.Ceil(perSecond))
	}
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	clients, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, fmt.Errorf("creating client cache: %w", err)
	}
	return &RateLimiter{limit: rate.Limit(perSecond), burst: burst, clients: clients}, nil
}

// Reserve takes a token for client. It returns 0 when the request may
// proceed, otherwise how many seconds the client should wait.
func (l *RateLimiter) Reserve(client string) int {
	lim, ok := l.clients.Get(client)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		if prev, found, _ := l.clients.PeekOrAdd(client, lim); found {
			lim = prev
		}
	}
	r := lim.Reserve()
	d := r.Delay()
	if d == 0 {
		return 0
	}
	r.Cancel()
	return int(math.Ceil(d.Seconds()))
}

// RateLimit rejects clients over their budget with 429 and a Retry-After
// header. Health endpoints are never limited.
func RateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			client := clientAddr(r)
			if wait := l.Reserve(client); wait > 0 {
				logger.FromContext(r.Context()).Debug("rate limited", "client", client, "retry_after", wait)
				w.Header().Set("Retry-After", strconv.Itoa(wait))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
