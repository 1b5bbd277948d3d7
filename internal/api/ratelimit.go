package api

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/kalambet/artisan/internal/pipeline"
)

// MsgBusy answers /ask requests turned away by the limiter.
const MsgBusy = "Service indisponible: trop de requêtes, veuillez réessayer dans un instant"

// RateLimit throttles a route with a shared token bucket refilled at
// perSecond with the given burst. perSecond <= 0 disables limiting.
// Rejected requests still get a 200 {"response": ...} payload.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lim := rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				w.Header().Set("Retry-After", "1")
				writeAnswer(w, pipeline.Response{Text: MsgBusy})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
