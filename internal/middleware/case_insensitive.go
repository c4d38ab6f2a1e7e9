package middleware

import (
	"net/http"
	"strings"
)

// routeWords are the static path segments the API routes on. Only
// these are folded; anything else in the path can be a record id, and
// record ids are case-significant.
var routeWords = map[string]bool{
	"api": true, "auth": true, "register": true, "login": true,
	"refresh": true, "me": true, "health": true, "sync": true,
	"status": true, "devices": true, "trips": true, "days": true,
	"activities": true, "budget-items": true, "budget": true,
	"notes": true, "ai": true, "itinerary": true, "generate": true,
	"refine": true, "export": true, "pdf": true,
}

// CaseInsensitiveMiddleware folds the static route segments of the URL
// path to lowercase, so /API/Sync and /api/sync hit the same handler.
// It wraps the router itself: mux matches on the rewritten path.
func CaseInsensitiveMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		for i, part := range parts {
			if low := strings.ToLower(part); routeWords[low] {
				parts[i] = low
			}
		}
		r.URL.Path = strings.Join(parts, "/")
		next.ServeHTTP(w, r)
	})
}
