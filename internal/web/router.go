// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the authentication service over HTTP with gin.
package web

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds the dependencies of NewRouter.
type RouterConfig struct {
	Auth           Authenticator
	Logger         *slog.Logger
	Observer       RequestObserver // optional
	Cookies        CookieOptions
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine serving /signup, /login, /logout and the
// gated /me route.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), tracing(), requestLogger(logger))
	if cfg.Observer != nil {
		r.Use(observe(cfg.Observer))
	}
	r.Use(requestTimeout(cfg.RequestTimeout))

	h := NewHandlers(cfg.Auth, cfg.Cookies, logger)
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)
	r.POST("/logout", h.Logout)

	protected := r.Group("/", SessionGate(cfg.Auth, logger))
	protected.GET("/me", h.Me)

	return r
}
