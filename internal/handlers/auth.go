package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/slotcal/slotcal/libs/auth"
)

type ctxKey int

const ownerIDKey ctxKey = iota

// OwnerID returns the authenticated owner id placed in the request context by
// RequireOwner; empty on unauthenticated requests.
func OwnerID(r *http.Request) string {
	id, _ := r.Context().Value(ownerIDKey).(string)
	return id
}

// RequireOwner authenticates the Bearer token and stores the token subject in
// the request context. RS256 tokens are verified against the JWKS client when
// one is configured; everything else falls back to the shared HS256 secret.
func RequireOwner(next http.Handler, jwtSecret string, jwksClient *auth.JWKSClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		var claims *auth.Claims
		var err error
		if jwksClient != nil {
			header, herr := auth.ParseHeader(token)
			if herr != nil {
				writeError(w, http.StatusUnauthorized, "invalid token header")
				return
			}
			if header.Alg == "RS256" && header.Kid != "" {
				pub, kerr := jwksClient.Get(r.Context(), header.Kid)
				if kerr != nil {
					writeError(w, http.StatusUnauthorized, "invalid token key")
					return
				}
				claims, err = auth.VerifyRS256(token, pub)
			} else {
				claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
			}
		} else {
			claims, err = auth.ParseAndVerifyHS256(token, jwtSecret)
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ownerIDKey, claims.Sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
