package httpmw

import (
	"net/http"

	"github.com/kartnagrale/auctionhouse/internal/ratelimit"
)

// RateLimit rejects requests beyond the per-identity limiter's budget
// with 503 (transient, per §7 — the caller may retry). Identity is the
// authenticated user id where available, falling back to remote addr
// for unauthenticated routes.
func RateLimit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := r.RemoteAddr
			if userID, ok := UserID(r.Context()); ok {
				identity = userID
			}
			if !l.Allow(identity) {
				http.Error(w, "rate limit exceeded", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
