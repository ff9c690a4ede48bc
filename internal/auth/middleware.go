package auth

import (
	"log/slog"
	"net/http"
)

// Middleware rejects requests without a valid session and stores the owner
// id in the request context. onFail writes the rejection response.
func Middleware(v *Verifier, onFail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r)
			if err != nil {
				onFail(w, r, err)
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				slog.WarnContext(r.Context(), "Session token rejected",
					"error", err,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr)
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), claims.OwnerID())))
		})
	}
}
