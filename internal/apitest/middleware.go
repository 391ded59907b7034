package apitest

import (
	"context"
	"net/http"
	"strings"

	"github.com/erazemk/izposoja/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// authMiddleware validates the bearer token and adds its claims to the context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "Login failed.")
			return
		}

		claims, err := auth.ValidateToken(s.secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Login failed.")
			return
		}

		s.mu.Lock()
		_, known := s.users[claims.UserID]
		s.mu.Unlock()
		if !known {
			jsonError(w, http.StatusUnauthorized, "Login failed.")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getClaims retrieves the JWT claims from the context.
func getClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// track counts requests per route, records the Authorization header and
// serves any failure queued with FailNext.
func (s *Server) track(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.counts[route]++
		s.authHeaders = append(s.authHeaders, r.Header.Get("Authorization"))
		s.requestIDs = append(s.requestIDs, r.Header.Get("X-Request-ID"))
		f, failing := s.failures[route]
		if failing {
			delete(s.failures, route)
		}
		s.mu.Unlock()

		if failing {
			if f.message == "" {
				w.WriteHeader(f.status)
				return
			}
			jsonError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}
