package httpapi

import (
	"net/http"

	"golang.org/x/time/rate"
)

// submissionRateLimit bounds offer submissions from a single process
// talking to this node's ingress. The kernel has no way to distinguish
// callers on this endpoint (it's meant for a local or trusted wallet
// process, not public internet exposure), so one shared bucket is enough.
const (
	submissionRateLimit = 20 // offers per second
	submissionBurst     = 40
)

// rateLimit wraps next with a shared token-bucket limiter, responding
// 429 once the bucket is empty rather than queuing requests.
func rateLimit(next http.HandlerFunc) http.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(submissionRateLimit), submissionBurst)
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}
