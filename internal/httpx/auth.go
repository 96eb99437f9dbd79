package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(ctx context.Context, key string) (auth.Principal, error)
}

// Authenticate resolves "Authorization: Token <key>" into a principal on
// the request context and rejects requests without one.
func Authenticate(a Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, key, _ := strings.Cut(r.Header.Get("Authorization"), " ")
			if !strings.EqualFold(scheme, "Token") || strings.TrimSpace(key) == "" {
				writeError(w, log, apperr.Unauthorized("authentication credentials were not provided"))
				return
			}
			p, err := a.Authenticate(r.Context(), strings.TrimSpace(key))
			if err != nil {
				writeError(w, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func requireRole(role auth.Role, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, log, apperr.Unauthorized("authentication credentials were not provided"))
				return
			}
			if p.Role() != role {
				writeError(w, log, apperr.Forbidden("for %ss only", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireClient(log *zap.Logger) func(http.Handler) http.Handler {
	return requireRole(auth.RoleClient, log)
}

func RequireRetailer(log *zap.Logger) func(http.Handler) http.Handler {
	return requireRole(auth.RoleRetailer, log)
}
