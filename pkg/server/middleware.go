package server

import (
	"context"
	"net/http"

	"github.com/jakechorley/shift-selector/pkg/core/services"
)

type contextKey struct{}

var authKey = contextKey{}

// authMiddleware resolves the Authorization header and rejects the request when it does not name a user
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, err := services.Authenticate(r.Context(), s.directory, s.logger, r.Header.Get("Authorization"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), authKey, auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authFromContext(ctx context.Context) *services.AuthResult {
	auth, _ := ctx.Value(authKey).(*services.AuthResult)
	return auth
}
