package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl marks successful GET responses as cacheable by the shopper's
// browser for maxAge seconds. Responses are private because they may depend
// on the signed-in user and language.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	value := fmt.Sprintf("private, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && maxAge > 0 {
				w.Header().Set("Cache-Control", value)
				w.Header().Add("Vary", "Accept-Language")
			}
			next.ServeHTTP(w, r)
		})
	}
}
