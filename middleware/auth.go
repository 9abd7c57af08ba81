package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"orbit/handlers/auth"
)

type contextKey string

const (
	ClaimsContextKey = contextKey("claims")
	UserContextKey   = contextKey("user_id")
)

func unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"detail": detail})
}

// AuthJWT requires a valid bearer token and stores its claims and subject in
// the request context.
func AuthJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, r, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			unauthorized(w, r, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := auth.ParseJWT(parts[1])
		if err != nil {
			logrus.WithError(err).Debug("Rejected bearer token")
			unauthorized(w, r, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		ctx = context.WithValue(ctx, UserContextKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// QueryUser takes the user from the user_id query parameter. It is used when
// no JWT secret is configured.
func QueryUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if userID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"detail": "user_id is required"})
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser picks AuthJWT when tokens are enabled and QueryUser otherwise.
// With tokens, a user_id parameter naming someone else is forbidden.
func RequireUser(next http.Handler) http.Handler {
	if !auth.Enabled() {
		return QueryUser(next)
	}
	return AuthJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("user_id"); q != "" && q != UserID(r.Context()) {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"detail": "user_id does not match token"})
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// UserID returns the user resolved by AuthJWT or QueryUser.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserContextKey).(string)
	return id
}

// Claims returns the verified token claims, if any.
func Claims(ctx context.Context) (*auth.AppClaims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.AppClaims)
	return claims, ok
}
