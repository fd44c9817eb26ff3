// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/holomush/authd/internal/auth"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session_id"

// CookieOptions are the hardening attributes added to the session cookie.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
}

// setSessionCookie writes session_id=<token>; Path=/; Expires=...; HttpOnly.
func setSessionCookie(c *gin.Context, opts CookieOptions, session *auth.Session) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt.UTC(),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// clearSessionCookie instructs the client to discard the cookie (Max-Age=0).
func clearSessionCookie(c *gin.Context, opts CookieOptions) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// sessionToken returns the session cookie value, or "" when absent.
func sessionToken(c *gin.Context) string {
	token, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return token
}
