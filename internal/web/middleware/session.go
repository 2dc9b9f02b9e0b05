package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/assetconsole/internal/core"
	"github.com/JonMunkholm/assetconsole/internal/session"
)

type contextKey struct{}

// SessionResolver looks up a live console session by token.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// SessionFromContext returns the session attached by RequireSession.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(contextKey{}).(*session.Session)
	return s
}

// ContextWithSession attaches a session and its user to ctx.
func ContextWithSession(ctx context.Context, s *session.Session) context.Context {
	ctx = context.WithValue(ctx, contextKey{}, s)
	return core.ContextWithUser(ctx, s.User)
}

// SessionToken returns the console token of a request: the session cookie,
// or an "Authorization: Bearer" header for non-browser clients.
func SessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireSession rejects requests without a live console session.
// Accepted requests carry the session, the acting user, the client IP and
// the user agent in their context.
func RequireSession(resolver SessionResolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r, cookieName)
			if token == "" {
				unauthorized(w, r, "missing session")
				return
			}

			s, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrExpired) {
					slog.Error("auth: session lookup failed", "path", r.URL.Path, "error", err)
					http.Error(w, `{"error":"session lookup failed","code":"ERR000"}`, http.StatusInternalServerError)
					return
				}
				unauthorized(w, r, err.Error())
				return
			}

			ctx := ContextWithSession(r.Context(), s)
			ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
			ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Warn("auth: rejected",
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
		"reason", reason,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"로그인이 필요합니다.","code":"AUTH001","redirect":"/login"}`))
}
