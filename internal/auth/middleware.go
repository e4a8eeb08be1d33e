package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or shadow the
// identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity Identify attached, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id != nil
}

// UserIDFromContext returns the user ID of an Authenticated caller.
// Guests and unresolved External identities report ("", false).
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	a, ok := id.(Authenticated)
	if !ok || a.UserID == "" {
		return "", false
	}
	return a.UserID, true
}

// Identify attaches an Identity to the request when it carries credentials
// and never rejects the request itself; handlers decide what an anonymous
// caller may do.
//
// A session JWT (cookie or bearer) becomes Authenticated. A bearer token
// that is not a session JWT is offered to verifier, when one is configured,
// and becomes External on success.
func Identify(tokens *TokenService, verifier IDTokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, fromHeader := tokenFromRequest(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			if claims, err := tokens.Validate(raw); err == nil {
				id := Authenticated{UserID: claims.UserID(), Name: claims.Name}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			if fromHeader && verifier != nil {
				ext, err := verifier.VerifyIDToken(r.Context(), raw)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *ext)))
					return
				}
				logger.Debug("bearer token rejected", slog.String("error", err.Error()))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests that carry no credentials: only a session
// (Authenticated) or a verified provider token (External) passes. It must be
// mounted after Identify.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFromContext(r.Context())
		switch v := id.(type) {
		case Authenticated:
			if v.UserID != "" {
				next.ServeHTTP(w, r)
				return
			}
		case External:
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized","message":"User not authenticated"}`))
	})
}

// tokenFromRequest prefers the Authorization header over the session cookie.
func tokenFromRequest(r *http.Request) (token string, fromHeader bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			return t, true
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, false
	}
	return "", false
}
