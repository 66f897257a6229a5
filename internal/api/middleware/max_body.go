package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/lessonindex/internal/api"
)

// DefaultMaxBodyBytes bounds JSON request bodies. Media never passes
// through the API; clients upload it straight to object storage.
const DefaultMaxBodyBytes int64 = 5 << 20

// MaxBodyBytes rejects declared oversize bodies with 413 and caps the
// rest while they stream. A non-positive limit disables the check.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
