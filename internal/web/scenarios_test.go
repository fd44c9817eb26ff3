// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/memory"
	"github.com/holomush/authd/internal/web"
)

// client is a minimal cookie-carrying HTTP client over an in-process router.
type client struct {
	router http.Handler
	cookie *http.Cookie
}

func (c *client) send(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.Name != web.SessionCookieName {
			continue
		}
		if ck.MaxAge < 0 {
			c.cookie = nil
		} else {
			c.cookie = ck
		}
	}
	return w
}

func errorName(w *httptest.ResponseRecorder) string {
	var body struct {
		Error string `json:"error"`
	}
	Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
	return body.Error
}

var _ = Describe("Account and session lifecycle", func() {
	var (
		ctx      context.Context
		now      time.Time
		users    *memory.UserRepository
		sessions *memory.SessionStore
		router   http.Handler
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		ctx = context.Background()
		now = time.Now()

		hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())

		users = memory.NewUserRepository()
		sessions = memory.NewSessionStore(memory.WithClock(func() time.Time { return now }))
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc, err := auth.NewService(users, sessions, hasher, auth.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		router = web.NewRouter(web.RouterConfig{Auth: svc, Logger: logger})
	})

	Describe("alice", func() {
		It("registers, is admitted, logs out, is rejected, logs back in", func() {
			alice := &client{router: router}

			w := alice.send(http.MethodPost, "/signup", `{"user_name":"alice","email":"a@x.io","password":"pw1"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(alice.cookie).NotTo(BeNil())
			first := alice.cookie.Value

			Expect(alice.send(http.MethodGet, "/me", "").Code).To(Equal(http.StatusOK))

			w = alice.send(http.MethodGet, "/logout", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(alice.cookie).To(BeNil())

			// Replaying the old token after logout is refused.
			alice.cookie = &http.Cookie{Name: web.SessionCookieName, Value: first}
			w = alice.send(http.MethodGet, "/me", "")
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorName(w)).To(Equal(web.ErrorUnauthenticated))

			w = alice.send(http.MethodPost, "/login", `{"email":"a@x.io","password":"pw1"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(alice.cookie.Value).NotTo(Equal(first))
			Expect(alice.send(http.MethodGet, "/me", "").Code).To(Equal(http.StatusOK))
		})

		It("is rejected once the session reaches its expiry", func() {
			alice := &client{router: router}
			Expect(alice.send(http.MethodPost, "/signup", `{"user_name":"alice","email":"a@x.io","password":"pw1"}`).Code).
				To(Equal(http.StatusOK))

			now = now.Add(auth.SessionTTL)
			Expect(alice.send(http.MethodGet, "/me", "").Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("double registration", func() {
		It("keeps the first account and its password", func() {
			first := &client{router: router}
			second := &client{router: router}

			Expect(first.send(http.MethodPost, "/signup", `{"user_name":"a","email":"dup@x.io","password":"one"}`).Code).
				To(Equal(http.StatusOK))

			w := second.send(http.MethodPost, "/signup", `{"user_name":"b","email":"dup@x.io","password":"two"}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(errorName(w)).To(Equal(web.ErrorEmailInUse))
			Expect(second.cookie).To(BeNil())
			Expect(users.Len()).To(Equal(1))

			Expect(second.send(http.MethodPost, "/login", `{"email":"dup@x.io","password":"two"}`).Code).
				To(Equal(http.StatusUnauthorized))
			Expect(second.send(http.MethodPost, "/login", `{"email":"dup@x.io","password":"one"}`).Code).
				To(Equal(http.StatusOK))

			account, err := users.GetByEmail(ctx, "dup@x.io")
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions.CountForUser(account.ID)).To(Equal(2))
		})
	})
})
