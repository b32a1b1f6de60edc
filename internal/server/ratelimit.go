package server

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alfredjeanlab/cadence/internal/identity"
	"github.com/alfredjeanlab/cadence/internal/model"
)

const (
	// limiterIdleTTL is how long a user's bucket survives without requests.
	limiterIdleTTL = 10 * time.Minute
	// limiterSweepInterval is the minimum gap between eviction sweeps.
	limiterSweepInterval = time.Minute
)

type userBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// userLimiter keeps one token bucket per user id. Idle buckets are evicted
// lazily so the map stays bounded by recently active users.
type userLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[int64]*userBucket
	lastSweep time.Time
}

// newUserLimiter returns nil when rps <= 0, which disables limiting.
func newUserLimiter(rps float64, burst int) *userLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &userLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		buckets: make(map[int64]*userBucket),
	}
}

func (l *userLimiter) allow(userID int64) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) > limiterSweepInterval {
		l.sweep(now)
	}
	b, ok := l.buckets[userID]
	if !ok {
		b = &userBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// sweep drops buckets idle longer than limiterIdleTTL. Caller holds mu.
func (l *userLimiter) sweep(now time.Time) {
	l.lastSweep = now
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(l.buckets, id)
		}
	}
}

func (l *userLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// rateLimited rejects a caller that exceeds its registration budget with 429.
// It must run inside withIdentity.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		if !s.limiter.allow(id.UserID) {
			w.Header().Set("Retry-After", "1")
			writeErrorStatus(w, http.StatusTooManyRequests, model.KindRateLimited, "too many registration requests")
			return
		}
		next(w, r)
	}
}
