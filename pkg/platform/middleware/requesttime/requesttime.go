// Package requesttime pins one "now" per request so registration timestamps,
// order updates and notifications written during a request agree.
package requesttime

import (
	"net/http"
	"time"

	"campusreg/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
