package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/josh-kwaku/pix-ledger/internal/auth"
	"github.com/josh-kwaku/pix-ledger/internal/handler"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
)

type tokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// Auth requires a bearer token and puts its claims on the request context.
func Auth(tokens tokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				logging.FromContext(r.Context()).Debug("bearer token rejected", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.WithClaims(r.Context(), claims)
			ctx = logging.With(ctx, "user_id", claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

const adminTokenHeader = "X-Admin-Token"

// AdminToken guards operator routes with a static shared token. An empty
// configured token disables the routes.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(adminTokenHeader)
			if token == "" || got == "" {
				handler.RespondAppError(w, handler.ErrForbidden, nil)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logging.FromContext(r.Context()).Warn("admin token mismatch")
				handler.RespondAppError(w, handler.ErrForbidden, nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(logging.With(r.Context(), "actor", "admin")))
		})
	}
}
