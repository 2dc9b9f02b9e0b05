package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/assetconsole/internal/core"
	"github.com/JonMunkholm/assetconsole/internal/session"
	"github.com/JonMunkholm/assetconsole/internal/web/middleware"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
// Session-guarded routes get these from middleware.RequireSession; login
// and signup call it themselves.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr) // resolved by TrustedRealIP
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// WithSession attaches a freshly opened session, as RequireSession does for
// later requests.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return middleware.ContextWithSession(ctx, s)
}
