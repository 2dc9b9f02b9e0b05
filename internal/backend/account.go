package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

// LoginRequest is the login form.
type LoginRequest struct {
	UserID string `json:"userId"`
	UserPw string `json:"userPw"`
}

// SignupRequest is the signup form.
type SignupRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	UserPw   string `json:"userPw"`
}

// LoginResult is what the backend returns on a successful login.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	User        core.User `json:"user"`
}

// AuthGrant names a permission granted to or revoked from a user.
type AuthGrant struct {
	UserID   string `json:"userId"`
	AuthCode string `json:"authCode"`
}

// ErrNoToken is returned when a login succeeds without an access token.
var ErrNoToken = errors.New("login response carried no access token")

// Login exchanges credentials for an access token. Call it on an unbound
// Conn (Bind(nil)).
func (c *Conn) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &res); err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, ErrNoToken
	}
	if res.User.UserID == "" {
		res.User.UserID = req.UserID
	}
	return &res, nil
}

// Signup creates a backend account.
func (c *Conn) Signup(ctx context.Context, req SignupRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/signup", nil, req, nil)
}

// Logout invalidates the bound token on the backend.
func (c *Conn) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Me returns the current user's profile as the backend reports it.
func (c *Conn) Me(ctx context.Context) (core.Row, error) {
	var out core.Row
	if err := c.do(ctx, http.MethodGet, "/user/my", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMe updates the current user's profile and returns the result.
func (c *Conn) UpdateMe(ctx context.Context, profile core.Row) (core.Row, error) {
	var out core.Row
	if err := c.do(ctx, http.MethodPut, "/user/my", nil, profile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GrantAuth grants a permission to a user.
func (c *Conn) GrantAuth(ctx context.Context, g AuthGrant) error {
	return c.do(ctx, http.MethodPost, "/user/auth", nil, g, nil)
}

// RevokeAuth revokes a permission from a user.
func (c *Conn) RevokeAuth(ctx context.Context, g AuthGrant) error {
	return c.do(ctx, http.MethodDelete, "/user/auth", nil, g, nil)
}
