// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

const userIDKey = "authd.user_id"

// SessionGate admits requests carrying a live session cookie and rejects
// the rest with 401. Storage failures surface as 500.
func SessionGate(svc Authenticator, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			abortWithError(c, logger, oops.Code(auth.CodeUnauthenticated).Errorf("missing session cookie"))
			return
		}

		session, err := svc.ValidateSession(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, logger, err)
			return
		}

		c.Set(userIDKey, session.UserID)
		c.Request = c.Request.WithContext(auth.WithUserID(c.Request.Context(), session.UserID))
		c.Next()
	}
}

// UserIDFrom returns the account admitted by SessionGate.
func UserIDFrom(c *gin.Context) (ulid.ULID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return ulid.ULID{}, false
	}
	id, ok := v.(ulid.ULID)
	return id, ok
}
