package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"inmo-payments/internal/repository"
)

type ctxKey string

const (
	userIDKey   ctxKey = "userID"
	tenantIDKey ctxKey = "tenantID"
)

// TokenMiddleware resolves a bearer token (header, or query parameter for
// websocket clients) to a user and tenant. Both are stored in the request
// context at the transport edge only; handlers read them out and pass the
// tenant explicitly into every service call.
func TokenMiddleware(tokenRepo *repository.PersonalAccessTokenRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plainToken := ""
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				plainToken = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			}
			if plainToken == "" {
				plainToken = r.URL.Query().Get("token")
			}
			if plainToken == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			pat, err := tokenRepo.FindTokenByPlainToken(r.Context(), plainToken)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if pat.ExpiresAt != nil && pat.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, pat.UserID)
			ctx = context.WithValue(ctx, tenantIDKey, pat.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}

func GetTenantID(ctx context.Context) (string, error) {
	tenantID, ok := ctx.Value(tenantIDKey).(string)
	if !ok || tenantID == "" {
		return "", errors.New("tenantID not found in context")
	}
	return tenantID, nil
}

// WithIdentity injects a user and tenant directly, for tests and internal
// callers that bypass the HTTP middleware.
func WithIdentity(ctx context.Context, userID int64, tenantID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, tenantIDKey, tenantID)
}
