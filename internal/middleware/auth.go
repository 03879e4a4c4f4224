package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"infostore/internal/auth"
	"infostore/internal/httputil"
)

// publicPaths skip authentication.
var publicPaths = map[string]bool{
	"/health": true,
}

// AuthMiddleware verifies the bearer token and stores the caller's context
// and user id on the request.
func AuthMiddleware(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("rejected token", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithCaller(r, claims.Caller()))
		})
	}
}
