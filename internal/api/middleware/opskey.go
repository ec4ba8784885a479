package middleware

import "net/http"

// OpsKeyHeader guards the /internal routes that trigger batch jobs.
const OpsKeyHeader = "X-Ops-Key"

// OpsKeyAuth admits requests whose X-Ops-Key header matches the configured
// key. With no key configured the routes are disabled outright rather than
// left open.
func OpsKeyAuth(opsKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opsKey == "" {
				writeError(w, http.StatusServiceUnavailable, "ops endpoints are disabled")
				return
			}
			if r.Header.Get(OpsKeyHeader) != opsKey {
				writeError(w, http.StatusUnauthorized, "invalid ops key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
