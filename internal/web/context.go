package web

import (
	"net/http"

	"github.com/JonMunkholm/xlcalc/internal/core"
	"github.com/JonMunkholm/xlcalc/internal/web/middleware"
)

// clientContext stores the caller's address and user agent in the request
// context for the calculation history. It runs after TrustedRealIP.
func clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if addr, ok := middleware.ClientAddr(r.RemoteAddr); ok {
			ip = addr.String()
		}
		ctx := core.ContextWithClient(r.Context(), ip, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
