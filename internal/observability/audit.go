package observability

import (
	"log/slog"
	"net/http"
)

// Audit emits the delegation audit trail: one structured record per
// security-relevant action (the auth.* sign-in lifecycle and the
// relationship.* grant changes), correlated to the originating
// request. Event names are shared wire vocabulary; renaming one breaks
// downstream log queries.
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"),
		"remote_ip", r.RemoteAddr,
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}
