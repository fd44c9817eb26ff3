// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// Authenticator is the subset of *auth.Service the HTTP layer calls.
type Authenticator interface {
	Register(ctx context.Context, email, displayName, password string) (*auth.UserAccount, *auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
	ValidateSession(ctx context.Context, token string) (*auth.Session, error)
}

var _ Authenticator = (*auth.Service)(nil)

// Success messages in the "result" field.
const (
	ResultAccountCreated = "Account created successfully"
	ResultLoggedIn       = "Logged in successfully"
	ResultLoggedOut      = "Logged out successfully"
)

type signupRequest struct {
	DisplayName string `json:"user_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	Result string            `json:"result"`
	User   *auth.UserAccount `json:"user"`
}

type resultResponse struct {
	Result string `json:"result"`
}

type meResponse struct {
	UserID string `json:"user_id"`
}

// Handlers serves the account and session endpoints.
type Handlers struct {
	auth    Authenticator
	cookies CookieOptions
	logger  *slog.Logger
}

// NewHandlers creates Handlers backed by svc.
func NewHandlers(svc Authenticator, cookies CookieOptions, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{auth: svc, cookies: cookies, logger: logger}
}

func invalidRequest(err error) error {
	return oops.Code(CodeRequestInvalid).Wrapf(err, "malformed request body")
}

// Signup handles POST /signup.
func (h *Handlers) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, invalidRequest(err))
		return
	}

	account, session, err := h.auth.Register(c.Request.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	setSessionCookie(c, h.cookies, session)
	c.JSON(http.StatusOK, signupResponse{Result: ResultAccountCreated, User: account})
}

// Login handles POST /login.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, invalidRequest(err))
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	setSessionCookie(c, h.cookies, session)
	c.JSON(http.StatusOK, resultResponse{Result: ResultLoggedIn})
}

// Logout handles GET and POST /logout. It deletes the session server-side
// and clears the cookie. An unknown token still succeeds.
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), sessionToken(c)); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	clearSessionCookie(c, h.cookies)
	c.JSON(http.StatusOK, resultResponse{Result: ResultLoggedOut})
}

// Me handles GET /me, reporting the account admitted by SessionGate.
func (h *Handlers) Me(c *gin.Context) {
	userID, ok := UserIDFrom(c)
	if !ok {
		abortWithError(c, h.logger, oops.Code(auth.CodeUnauthenticated).Errorf("no authenticated user"))
		return
	}
	c.JSON(http.StatusOK, meResponse{UserID: userID.String()})
}
