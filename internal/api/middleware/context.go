package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	clientIPKey contextKey = "client_ip"
	userIDKey   contextKey = "user_id"
)

// SetClientIP stores the resolved client address for downstream handlers.
func SetClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetClientIP returns the resolved client address, or "" when the resolver
// middleware did not run.
func GetClientIP(r *http.Request) string {
	ip, _ := r.Context().Value(clientIPKey).(string)
	return ip
}

// SetUserID stores the authenticated site user's ID, when the submitting
// client identified one.
func SetUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// GetUserID returns the submitting user's ID when present.
func GetUserID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(userIDKey).(int64)
	return id, ok
}
