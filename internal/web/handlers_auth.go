package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/assetconsole/internal/backend"
	"github.com/JonMunkholm/assetconsole/internal/core"
	"github.com/JonMunkholm/assetconsole/internal/logging"
	"github.com/JonMunkholm/assetconsole/internal/web/middleware"
)

// loginResponse is returned by a successful login. Token is the console
// session token for clients that send it as a bearer header instead of
// the cookie.
type loginResponse struct {
	User      core.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

var loginRejected = core.UserMessage{
	Message: "아이디 또는 비밀번호를 확인하세요.",
	Code:    "AUTH003",
}

// handleLogin authenticates against the backend and opens a console session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req backend.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || req.UserPw == "" {
		writeError(w, http.StatusBadRequest, "userId and userPw are required")
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.backend.Bind(nil).Login(ctx, req)
	if errors.Is(err, core.ErrUnauthorized) {
		s.respondError(w, r, &core.UserError{Technical: err, User: loginRejected})
		return
	}
	if err != nil {
		s.respondError(w, r, &core.RequestError{Op: "login", Message: "로그인에 실패했습니다.", Err: err})
		return
	}

	sess, err := s.sessions.Open(ctx, res.AccessToken, res.User)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	ctx = WithSession(ctx, sess)
	s.service.Auditor().Log(ctx, core.AuditLogParams{Action: core.ActionLogin})
	logging.FromContext(ctx).Info("user logged in")

	writeJSON(w, loginResponse{User: sess.User, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// handleSignup creates a backend account. It does not log the user in.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req backend.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" || req.UserPw == "" {
		writeError(w, http.StatusBadRequest, "userId and userPw are required")
		return
	}

	if err := s.backend.Bind(nil).Signup(r.Context(), req); err != nil {
		s.respondError(w, r, &core.RequestError{Op: "signup", Message: "회원가입에 실패했습니다.", Err: err})
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]string{"userId": req.UserID})
}

// handleLogout ends the session on the backend and in the console. The
// console session ends even when the backend call fails.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFromContext(ctx)

	if err := s.conn(r).Logout(ctx); err != nil {
		logging.FromContext(ctx).Warn("backend logout failed", "error", err)
	}
	s.service.Auditor().Log(ctx, core.AuditLogParams{Action: core.ActionLogout})
	s.sessions.Teardown(ctx, sess.Token)
	s.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetMe returns the caller's backend profile.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	me, err := s.conn(r).Me(r.Context())
	if err != nil {
		s.respondError(w, r, &core.RequestError{Op: "me", Message: "내 정보를 불러오지 못했습니다.", Err: err})
		return
	}
	writeJSON(w, map[string]any{
		"user":    core.UserFromContext(r.Context()),
		"profile": me,
	})
}

// handleUpdateMe updates the caller's backend profile.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var profile core.Row
	if err := decodeJSON(w, r, &profile); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	me, err := s.conn(r).UpdateMe(r.Context(), profile)
	if err != nil {
		s.respondError(w, r, &core.RequestError{Op: "update me", Message: "내 정보를 수정하지 못했습니다.", Err: err})
		return
	}
	writeJSON(w, map[string]any{"profile": me})
}

// handleGrantAuth grants a permission to a user.
func (s *Server) handleGrantAuth(w http.ResponseWriter, r *http.Request) {
	s.changeAuth(w, r, core.ActionGrantAuth)
}

// handleRevokeAuth revokes a permission from a user.
func (s *Server) handleRevokeAuth(w http.ResponseWriter, r *http.Request) {
	s.changeAuth(w, r, core.ActionRevokeAuth)
}

func (s *Server) changeAuth(w http.ResponseWriter, r *http.Request, action core.AuditAction) {
	var g backend.AuthGrant
	if err := decodeJSON(w, r, &g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if g.UserID == "" || g.AuthCode == "" {
		writeError(w, http.StatusBadRequest, "userId and authCode are required")
		return
	}

	conn := s.conn(r)
	call, msg := conn.GrantAuth, "권한 부여에 실패했습니다."
	if action == core.ActionRevokeAuth {
		call, msg = conn.RevokeAuth, "권한 회수에 실패했습니다."
	}
	if err := call(r.Context(), g); err != nil {
		s.respondError(w, r, &core.RequestError{Op: string(action), Message: msg, Err: err})
		return
	}

	s.service.Auditor().Log(r.Context(), core.AuditLogParams{
		Action:  action,
		RowKeys: []string{g.UserID},
		Detail:  map[string]any{"authCode": g.AuthCode},
	})
	writeJSON(w, g)
}
