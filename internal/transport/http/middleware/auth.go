package middleware

import (
	"context"
	"net/http"
	"strings"

	"clinic/internal/domain/auth"
	"clinic/internal/transport/http/api"
)

type ctxKey string

const ctxKeyOperator ctxKey = "operator"

// Auth attaches the operator context when a valid bearer token is present.
// Requests without one pass through unauthenticated; route guards decide
// what requires an operator.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyOperator, auth.OperatorContext{
				OperatorID: claims.OperatorID,
				Name:       claims.Name,
				Role:       claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetOperator(ctx context.Context) (auth.OperatorContext, bool) {
	operator, ok := ctx.Value(ctxKeyOperator).(auth.OperatorContext)
	return operator, ok
}

// RequireOperator rejects requests that carry no authenticated operator.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetOperator(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
